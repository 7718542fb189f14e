// Package staging holds staged transfers in memory. Staged records are
// ephemeral by design: a restart voids anything still pending, which is safe
// because nothing pending has moved funds yet.
package staging

import (
	"context"
	"sync"

	"fundgate/internal/safeguard/models"
	id "fundgate/pkg/domain"
	"fundgate/pkg/platform/sentinel"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records map[id.StagingID]models.StagedTransfer
}

func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[id.StagingID]models.StagedTransfer)}
}

func (s *MemoryStore) Create(_ context.Context, transfer models.StagedTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[transfer.ID]; exists {
		return sentinel.ErrAlreadyResolved
	}
	s.records[transfer.ID] = transfer
	return nil
}

func (s *MemoryStore) Get(_ context.Context, stagingID id.StagingID) (models.StagedTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transfer, ok := s.records[stagingID]
	if !ok {
		return models.StagedTransfer{}, sentinel.ErrNotFound
	}
	return transfer, nil
}

// CompareAndSwapStatus is the atomicity primitive behind resolve: the check
// and the transition happen under one lock, so two concurrent confirm/cancel
// calls on the same ID cannot both succeed.
func (s *MemoryStore) CompareAndSwapStatus(_ context.Context, stagingID id.StagingID, from, to models.StagingStatus) (models.StagedTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transfer, ok := s.records[stagingID]
	if !ok {
		return models.StagedTransfer{}, sentinel.ErrNotFound
	}
	if transfer.Status != from {
		return transfer, sentinel.ErrAlreadyResolved
	}
	transfer.Status = to
	s.records[stagingID] = transfer
	return transfer, nil
}

func (s *MemoryStore) Pending(_ context.Context) ([]models.StagedTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []models.StagedTransfer
	for _, transfer := range s.records {
		if transfer.Status == models.StagingPending {
			pending = append(pending, transfer)
		}
	}
	return pending, nil
}
