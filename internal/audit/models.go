// Package audit defines the append-only compliance journal. Every safeguard
// decision and every executed transfer leaves exactly one record here; the
// journal is the single source of compliance truth.
package audit

import (
	"context"
	"iter"
	"time"

	id "fundgate/pkg/domain"
)

// EventType classifies journal entries.
type EventType string

const (
	// Gate outcomes. Every attempt logs transfer_requested plus exactly one
	// terminal entry: completed, failed, or rejected.
	EventTransferRequested EventType = "transfer_requested"
	EventTransferCompleted EventType = "transfer_completed"
	EventTransferFailed    EventType = "transfer_failed"
	EventTransferRejected  EventType = "transfer_rejected"

	// Two-phase confirmation lifecycle.
	EventTransferStaged    EventType = "transfer_staged"
	EventTransferConfirmed EventType = "transfer_confirmed"
	EventTransferCancelled EventType = "transfer_cancelled"
	EventTransferExpired   EventType = "transfer_expired"

	// Front-end throttle.
	EventRateLimited EventType = "rate_limited"
)

// Event is a single journal record. Immutable once written; optional fields
// are omitted from the wire format rather than zero-filled.
type Event struct {
	Timestamp   time.Time     `json:"timestamp"`
	Type        EventType     `json:"event_type"`
	Identity    id.Identity   `json:"identity,omitempty"`
	TransferID  id.TransferID `json:"transfer_id,omitempty"`
	AmountCents int64         `json:"amount_cents,omitempty"`
	Source      string        `json:"source,omitempty"`
	Destination string        `json:"destination,omitempty"`
	Note        string        `json:"note,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Ledger is the durable journal contract. Append is fail-closed: a
// persistence failure must surface to the caller, never be dropped, because
// callers treat a successful append as the compliance record existing.
type Ledger interface {
	// Append durably persists the event before returning. The event's
	// timestamp is set to the current UTC time if zero.
	Append(ctx context.Context, event Event) error

	// All yields every event in append order. Iteration is lazy and
	// restartable; each yielded error terminates the sequence.
	All(ctx context.Context) iter.Seq2[Event, error]

	// ByIdentity yields events for one identity in append order.
	ByIdentity(ctx context.Context, identity id.Identity) iter.Seq2[Event, error]
}
