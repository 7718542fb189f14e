// Package file implements the audit ledger as an append-only JSONL file,
// one self-delimited JSON record per line. This is the default production
// backend: a flat file survives restarts, appends atomically under a single
// writer, and stays greppable for compliance review.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"sync"
	"time"

	"fundgate/internal/audit"
	id "fundgate/pkg/domain"
)

// Store appends events to a JSONL journal. A mutex serializes appends so
// concurrent writers cannot interleave within a record; each append is a
// single write of one complete line followed by fsync.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a file-backed ledger writing to path. The file is created on
// first append.
func New(path string) *Store {
	return &Store{path: path}
}

// Append marshals the event and durably writes it as one line. The line is
// built in memory first so a marshal failure never leaves a partial record,
// and the write+sync completes before Append returns.
func (s *Store) Append(_ context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open audit journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync audit journal: %w", err)
	}
	return nil
}

// All yields every journal record in append order. The file is re-opened per
// iteration so the sequence is restartable; a missing journal yields nothing.
func (s *Store) All(ctx context.Context) iter.Seq2[audit.Event, error] {
	return s.scan(ctx, func(audit.Event) bool { return true })
}

// ByIdentity yields records for a single identity in append order.
func (s *Store) ByIdentity(ctx context.Context, identity id.Identity) iter.Seq2[audit.Event, error] {
	return s.scan(ctx, func(e audit.Event) bool { return e.Identity == identity })
}

func (s *Store) scan(ctx context.Context, keep func(audit.Event) bool) iter.Seq2[audit.Event, error] {
	return func(yield func(audit.Event, error) bool) {
		f, err := os.Open(s.path)
		if err != nil {
			if os.IsNotExist(err) {
				return
			}
			yield(audit.Event{}, fmt.Errorf("open audit journal: %w", err))
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if ctx.Err() != nil {
				yield(audit.Event{}, ctx.Err())
				return
			}
			var event audit.Event
			if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
				yield(audit.Event{}, fmt.Errorf("decode audit record: %w", err))
				return
			}
			if !keep(event) {
				continue
			}
			if !yield(event, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(audit.Event{}, fmt.Errorf("read audit journal: %w", err))
		}
	}
}
