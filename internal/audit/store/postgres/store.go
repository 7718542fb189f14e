// Package postgres implements the audit ledger on PostgreSQL for deployments
// that already run a database and want the journal queryable in SQL. The
// contract is identical to the file backend: append-only, fail-closed.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"time"

	"fundgate/internal/audit"
	id "fundgate/pkg/domain"
)

// Store writes audit events to the audit_events table. Rows are only ever
// inserted; there is no update or delete path.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL-backed ledger.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Schema is the DDL for the journal table. Applied by the operator or by
// tests; the store itself never migrates.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	seq          BIGSERIAL PRIMARY KEY,
	ts           TIMESTAMPTZ NOT NULL,
	event_type   TEXT NOT NULL,
	identity     TEXT NOT NULL DEFAULT '',
	transfer_id  TEXT NOT NULL DEFAULT '',
	amount_cents BIGINT NOT NULL DEFAULT 0,
	source       TEXT NOT NULL DEFAULT '',
	destination  TEXT NOT NULL DEFAULT '',
	note         TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_identity_idx ON audit_events (identity, seq);
`

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	const q = `
		INSERT INTO audit_events
			(ts, event_type, identity, transfer_id, amount_cents, source, destination, note, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, q,
		event.Timestamp, string(event.Type), string(event.Identity),
		string(event.TransferID), event.AmountCents,
		event.Source, event.Destination, event.Note, event.Error,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) All(ctx context.Context) iter.Seq2[audit.Event, error] {
	const q = `
		SELECT ts, event_type, identity, transfer_id, amount_cents, source, destination, note, error
		FROM audit_events ORDER BY seq
	`
	return s.query(ctx, q)
}

func (s *Store) ByIdentity(ctx context.Context, identity id.Identity) iter.Seq2[audit.Event, error] {
	const q = `
		SELECT ts, event_type, identity, transfer_id, amount_cents, source, destination, note, error
		FROM audit_events WHERE identity = $1 ORDER BY seq
	`
	return s.query(ctx, q, string(identity))
}

func (s *Store) query(ctx context.Context, q string, args ...any) iter.Seq2[audit.Event, error] {
	return func(yield func(audit.Event, error) bool) {
		rows, err := s.db.QueryContext(ctx, q, args...)
		if err != nil {
			yield(audit.Event{}, fmt.Errorf("query audit events: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				event      audit.Event
				eventType  string
				identity   string
				transferID string
			)
			err := rows.Scan(&event.Timestamp, &eventType, &identity, &transferID,
				&event.AmountCents, &event.Source, &event.Destination, &event.Note, &event.Error)
			if err != nil {
				yield(audit.Event{}, fmt.Errorf("scan audit event: %w", err))
				return
			}
			event.Type = audit.EventType(eventType)
			event.Identity = id.Identity(identity)
			event.TransferID = id.TransferID(transferID)
			if !yield(event, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(audit.Event{}, fmt.Errorf("iterate audit events: %w", err))
		}
	}
}
