package quota

import (
	"context"
	"sync"
	"time"

	"fundgate/internal/safeguard/ports"
	id "fundgate/pkg/domain"
)

// MemoryStore keeps quota buckets in memory. Same contract as FileStore,
// minus durability; used in tests and single-shot tooling.
type MemoryStore struct {
	mu      sync.Mutex
	records document
	clock   func() time.Time
}

// NewMemory creates an empty in-memory quota store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		records: make(document),
		clock:   time.Now,
	}
}

func (s *MemoryStore) TotalOn(_ context.Context, day string, scope id.Scope) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, entry := range s.records[day][scope.String()] {
		total += entry.AmountCents
	}
	return total, nil
}

func (s *MemoryStore) HasTransfer(_ context.Context, scope id.Scope, transferID id.TransferID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, scopes := range s.records {
		for _, entry := range scopes[scope.String()] {
			if entry.TransferID == transferID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *MemoryStore) Append(_ context.Context, day string, scope id.Scope, entry ports.QuotaEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records[day] == nil {
		s.records[day] = make(map[string][]ports.QuotaEntry)
	}
	s.records[day][scope.String()] = append(s.records[day][scope.String()], entry)

	cutoff := s.clock().UTC().AddDate(0, 0, -2).Format(time.DateOnly)
	for day := range s.records {
		if day < cutoff {
			delete(s.records, day)
		}
	}
	return nil
}
