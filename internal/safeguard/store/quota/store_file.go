// Package quota persists daily spend buckets as a single JSON document:
// date → scope → recorded entries. The document is loaded fully at start and
// replaced as a whole after each mutation; at this scale that beats running a
// database for one map.
package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fundgate/internal/safeguard/ports"
	id "fundgate/pkg/domain"
)

// document is the on-disk layout. A legacy layout stored a flat entry list
// per date; load folds those into the global scope.
type document map[string]map[string][]ports.QuotaEntry

// FileStore is the JSON-backed quota store.
type FileStore struct {
	mu      sync.Mutex
	path    string
	records document
	logger  *slog.Logger
	clock   func() time.Time
}

// Option configures the FileStore.
type Option func(*FileStore)

// WithLogger sets a logger for load warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *FileStore) { s.logger = logger }
}

// WithClock overrides the time source. Tests use this to pin "today".
func WithClock(clock func() time.Time) Option {
	return func(s *FileStore) { s.clock = clock }
}

// NewFile loads (or initializes) the quota document at path. A corrupt file
// is tolerated: the store starts fresh rather than refusing to boot, since
// the audit journal, not this cache, is the compliance record.
func NewFile(path string, opts ...Option) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	s.prune()
	if err := s.save(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) TotalOn(_ context.Context, day string, scope id.Scope) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, entry := range s.records[day][scope.String()] {
		total += entry.AmountCents
	}
	return total, nil
}

func (s *FileStore) HasTransfer(_ context.Context, scope id.Scope, transferID id.TransferID) (bool, error) {
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

func (s *FileStore) Append(_ context.Context, day string, scope id.Scope, entry ports.QuotaEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records[day] == nil {
		s.records[day] = make(map[string][]ports.QuotaEntry)
	}
	s.records[day][scope.String()] = append(s.records[day][scope.String()], entry)

	s.prune()
	return s.save()
}

// load reads the document from disk, migrating the legacy flat-list layout.
func (s *FileStore) load() error {
	s.records = make(document)

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read quota store: %w", err)
	}

	var nested document
	if err := json.Unmarshal(raw, &nested); err == nil {
		s.records = nested
		return nil
	}

	// Legacy layout: date → []entry, all under the global bucket.
	var flat map[string][]ports.QuotaEntry
	if err := json.Unmarshal(raw, &flat); err == nil {
		for day, entries := range flat {
			s.records[day] = map[string][]ports.QuotaEntry{
				id.GlobalScope.String(): entries,
			}
		}
		return nil
	}

	if s.logger != nil {
		s.logger.Warn("corrupt quota store, starting fresh", "path", s.path)
	}
	return nil
}

// prune drops date buckets older than 2 days. Today's and yesterday's buckets
// are never touched; ISO date keys compare chronologically as strings.
// Caller holds the lock.
func (s *FileStore) prune() {
	cutoff := s.clock().UTC().AddDate(0, 0, -2).Format(time.DateOnly)
	for day := range s.records {
		if day < cutoff {
			delete(s.records, day)
		}
	}
}

// save replaces the document on disk. Written to a temp file and renamed so a
// crash mid-write cannot truncate the live document. Caller holds the lock.
func (s *FileStore) save() error {
	raw, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal quota store: %w", err)
	}
	raw = append(raw, '\n')

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create quota store dir: %w", err)
	}
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write quota store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace quota store: %w", err)
	}
	return nil
}
