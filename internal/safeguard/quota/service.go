// Package quota implements the daily spend tracker. Check never mutates;
// Record is the only mutator and suppresses duplicate transfer IDs, so a
// transfer that is merely evaluated, declined upstream, or retried never
// double-charges a quota.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fundgate/internal/safeguard/models"
	"fundgate/internal/safeguard/ports"
	id "fundgate/pkg/domain"
	dErrors "fundgate/pkg/domain-errors"
)

// Store is the persistence contract this tracker drives.
type Store = ports.QuotaStore

type Tracker struct {
	store  Store
	logger *slog.Logger
	clock  func() time.Time
}

type Option func(*Tracker)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithClock overrides the time source used to compute "today".
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) { t.clock = clock }
}

func New(store Store, opts ...Option) (*Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("quota store is required")
	}

	t := &Tracker{
		store: store,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Check answers whether amountCents fits in today's remaining headroom for
// the scope. No side effects: checking never consumes quota.
func (t *Tracker) Check(ctx context.Context, scope id.Scope, amountCents, dailyLimitCents int64) (models.QuotaDecision, error) {
	used, err := t.store.TotalOn(ctx, t.today(), scope)
	if err != nil {
		return models.QuotaDecision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read quota usage")
	}

	remaining := dailyLimitCents - used
	return models.QuotaDecision{
		Allowed:        amountCents <= remaining,
		RemainingCents: remaining,
	}, nil
}

// Record charges amountCents against today's bucket for the scope. Repeated
// calls with the same transfer ID change totals only once.
func (t *Tracker) Record(ctx context.Context, scope id.Scope, amountCents int64, transferID id.TransferID) error {
	if transferID.IsEmpty() {
		return dErrors.New(dErrors.CodeInvalidInput, "transfer id is required")
	}
	if amountCents <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}

	seen, err := t.store.HasTransfer(ctx, scope, transferID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for duplicate transfer")
	}
	if seen {
		if t.logger != nil {
			t.logger.DebugContext(ctx, "duplicate quota record suppressed",
				"scope", scope, "transfer_id", transferID)
		}
		return nil
	}

	entry := ports.QuotaEntry{
		TransferID:  transferID,
		AmountCents: amountCents,
		Timestamp:   t.clock().UTC(),
	}
	if err := t.store.Append(ctx, t.today(), scope, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to record quota usage")
	}

	if t.logger != nil {
		t.logger.InfoContext(ctx, "recorded transfer against daily limit",
			"scope", scope, "transfer_id", transferID, "amount_cents", amountCents)
	}
	return nil
}

func (t *Tracker) today() string {
	return t.clock().UTC().Format(time.DateOnly)
}
