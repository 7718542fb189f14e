// Package memory implements the audit ledger in memory for tests and for
// deployments that accept losing the journal on restart.
package memory

import (
	"context"
	"iter"
	"sync"
	"time"

	"fundgate/internal/audit"
	id "fundgate/pkg/domain"
)

type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *Store) All(_ context.Context) iter.Seq2[audit.Event, error] {
	return s.scan(func(audit.Event) bool { return true })
}

func (s *Store) ByIdentity(_ context.Context, identity id.Identity) iter.Seq2[audit.Event, error] {
	return s.scan(func(e audit.Event) bool { return e.Identity == identity })
}

func (s *Store) scan(keep func(audit.Event) bool) iter.Seq2[audit.Event, error] {
	return func(yield func(audit.Event, error) bool) {
		s.mu.RLock()
		snapshot := append([]audit.Event(nil), s.events...)
		s.mu.RUnlock()

		for _, event := range snapshot {
			if !keep(event) {
				continue
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}
