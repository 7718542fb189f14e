// Package ports defines shared interfaces for the safeguard module.
// Interfaces are placed here when consumed by multiple services to avoid
// duplication; stores return sentinel errors, services translate them.
package ports

import (
	"context"
	"time"

	"fundgate/internal/safeguard/models"
	id "fundgate/pkg/domain"
)

// QuotaEntry is one recorded spend inside a daily bucket.
type QuotaEntry struct {
	TransferID  id.TransferID `json:"transfer_id"`
	AmountCents int64         `json:"amount_cents"`
	Timestamp   time.Time     `json:"timestamp"`
}

// QuotaStore persists daily spend buckets keyed by (day, scope). The day key
// is an ISO date string; implementations prune buckets older than two days on
// load and save but never the current or previous day.
type QuotaStore interface {
	// TotalOn returns the cumulative recorded cents for scope on day.
	TotalOn(ctx context.Context, day string, scope id.Scope) (int64, error)

	// HasTransfer reports whether a transfer ID was already recorded for the
	// scope anywhere in the retained window. Used for duplicate suppression.
	HasTransfer(ctx context.Context, scope id.Scope, transferID id.TransferID) (bool, error)

	// Append adds an entry to the (day, scope) bucket and persists the
	// document before returning.
	Append(ctx context.Context, day string, scope id.Scope, entry QuotaEntry) error
}

// StagingStore holds staged transfers. Resolve semantics live in the staging
// service; the store only provides atomic primitives.
type StagingStore interface {
	// Create saves a new record. Fails if the ID already exists.
	Create(ctx context.Context, transfer models.StagedTransfer) error

	// Get returns the record or sentinel.ErrNotFound.
	Get(ctx context.Context, stagingID id.StagingID) (models.StagedTransfer, error)

	// CompareAndSwapStatus transitions the record from one status to another
	// atomically. Returns sentinel.ErrNotFound if the ID is unknown and
	// sentinel.ErrAlreadyResolved if the current status is not `from`.
	CompareAndSwapStatus(ctx context.Context, stagingID id.StagingID, from, to models.StagingStatus) (models.StagedTransfer, error)

	// Pending returns all records still in PENDING status.
	Pending(ctx context.Context) ([]models.StagedTransfer, error)
}

// BucketStore manages sliding-window rate limit counters.
type BucketStore interface {
	// Allow checks if a request is allowed and consumes one slot if so.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)

	// Status reports the live window state for a key, including when the
	// oldest entry falls out, without consuming a slot.
	Status(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// ExecuteRequest is what the gate hands to the upstream executor.
type ExecuteRequest struct {
	Source      string
	Destination string
	AmountCents int64
	Note        string
	Metadata    map[string]string
}

// ExecuteResult is the upstream's acknowledgement of a completed transfer.
type ExecuteResult struct {
	TransferID id.TransferID
	Status     string
}

// Executor moves funds against the upstream ledger. It is a black box with a
// single success/failure outcome; the gate never retries and never cancels an
// in-flight call.
type Executor interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
}

// Authenticator supplies the opaque bearer credential for upstream calls.
// The engine never inspects or refreshes it.
type Authenticator interface {
	CurrentCredential(ctx context.Context) (string, error)
}
