// Package staging implements the two-phase confirmation workflow. A staged
// transfer is the only path by which an agent-initiated transfer reaches
// execution: the owner must confirm it within the TTL, and nobody but the
// owner can resolve it.
package staging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fundgate/internal/audit"
	"fundgate/internal/safeguard/models"
	"fundgate/internal/safeguard/ports"
	id "fundgate/pkg/domain"
	dErrors "fundgate/pkg/domain-errors"
	"fundgate/pkg/platform/sentinel"
)

// Store is the persistence contract for staged transfers.
type Store = ports.StagingStore

type Registry struct {
	store  Store
	ledger audit.Ledger
	ttl    time.Duration
	logger *slog.Logger
	clock  func() time.Time
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithClock overrides the time source. Tests use this to step past the TTL.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) { r.clock = clock }
}

func New(store Store, ledger audit.Ledger, ttl time.Duration, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("staging store is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("audit ledger is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("staging ttl must be positive")
	}

	r := &Registry{
		store:  store,
		ledger: ledger,
		ttl:    ttl,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Stage validates the request and creates a PENDING record expiring after the
// registry TTL. The staging itself is audited; no funds move here.
func (r *Registry) Stage(ctx context.Context, req models.TransferRequest) (models.StagedTransfer, error) {
	if err := req.Validate(); err != nil {
		return models.StagedTransfer{}, err
	}
	if req.Identity.IsEmpty() {
		return models.StagedTransfer{}, dErrors.New(dErrors.CodeInvalidInput, "owner identity is required")
	}

	now := r.clock()
	transfer := models.StagedTransfer{
		ID:          id.NewStagingID(),
		Owner:       req.Identity,
		Source:      req.Source,
		Destination: req.Destination,
		AmountCents: req.AmountCents,
		Note:        req.Note,
		CreatedAt:   now,
		ExpiresAt:   now.Add(r.ttl),
		Status:      models.StagingPending,
	}

	if err := r.store.Create(ctx, transfer); err != nil {
		return models.StagedTransfer{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to stage transfer")
	}

	if err := r.ledger.Append(ctx, audit.Event{
		Type:        audit.EventTransferStaged,
		Identity:    transfer.Owner,
		TransferID:  id.TransferID(transfer.ID.String()),
		AmountCents: transfer.AmountCents,
		Source:      transfer.Source,
		Destination: transfer.Destination,
		Note:        transfer.Note,
	}); err != nil {
		return models.StagedTransfer{}, dErrors.Wrap(err, dErrors.CodePersistence, "failed to audit staged transfer")
	}

	if r.logger != nil {
		r.logger.InfoContext(ctx, "transfer staged",
			"staging_id", transfer.ID, "owner", transfer.Owner,
			"source", transfer.Source, "destination", transfer.Destination,
			"amount_cents", transfer.AmountCents)
	}
	return transfer, nil
}

// Resolve drives a PENDING record to CONFIRMED or CANCELLED on behalf of
// actor. Failure order is fixed: unknown ID, then expiry (which transitions
// the record as a side effect), then ownership, then already-resolved.
func (r *Registry) Resolve(ctx context.Context, stagingID id.StagingID, actor id.Identity, action models.ResolveAction) (models.StagedTransfer, error) {
	transfer, err := r.store.Get(ctx, stagingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.StagedTransfer{}, dErrors.New(dErrors.CodeStagingNotFound, "no pending transfer found with that id")
		}
		return models.StagedTransfer{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load staged transfer")
	}

	if transfer.ExpiredAt(r.clock()) {
		if transfer.Status == models.StagingPending {
			if expired, err := r.expire(ctx, transfer); err == nil {
				transfer = expired
			}
		}
		return transfer, dErrors.New(dErrors.CodeStagingExpired, "this transfer has expired, stage a new one")
	}

	if transfer.Owner != actor {
		return models.StagedTransfer{}, dErrors.New(dErrors.CodeStagingOwnership, "only the identity that staged a transfer may resolve it")
	}

	if transfer.Status != models.StagingPending {
		return transfer, dErrors.Newf(dErrors.CodeStagingResolved, "transfer already %s", transfer.Status)
	}

	resolved, err := r.store.CompareAndSwapStatus(ctx, stagingID, models.StagingPending, action.TerminalStatus())
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyResolved) {
			return resolved, dErrors.Newf(dErrors.CodeStagingResolved, "transfer already %s", resolved.Status)
		}
		return models.StagedTransfer{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve staged transfer")
	}

	eventType := audit.EventTransferConfirmed
	if action == models.ActionCancel {
		eventType = audit.EventTransferCancelled
	}
	if err := r.ledger.Append(ctx, audit.Event{
		Type:        eventType,
		Identity:    actor,
		TransferID:  id.TransferID(resolved.ID.String()),
		AmountCents: resolved.AmountCents,
		Source:      resolved.Source,
		Destination: resolved.Destination,
	}); err != nil {
		return models.StagedTransfer{}, dErrors.Wrap(err, dErrors.CodePersistence, "failed to audit staging resolution")
	}

	if r.logger != nil {
		r.logger.InfoContext(ctx, "staged transfer resolved",
			"staging_id", resolved.ID, "actor", actor, "status", resolved.Status)
	}
	return resolved, nil
}

// SweepExpired transitions every overdue PENDING record to EXPIRED. Idempotent;
// safe to run opportunistically before resolves or on a timer.
func (r *Registry) SweepExpired(ctx context.Context) (int, error) {
	pending, err := r.store.Pending(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending transfers")
	}

	now := r.clock()
	swept := 0
	for _, transfer := range pending {
		if !transfer.ExpiredAt(now) {
			continue
		}
		if _, err := r.expire(ctx, transfer); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}

// expire CASes a pending record to EXPIRED and audits the transition. Losing
// the CAS race to another expirer is fine; the record is terminal either way.
func (r *Registry) expire(ctx context.Context, transfer models.StagedTransfer) (models.StagedTransfer, error) {
	expired, err := r.store.CompareAndSwapStatus(ctx, transfer.ID, models.StagingPending, models.StagingExpired)
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyResolved) {
			return expired, nil
		}
		return models.StagedTransfer{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire staged transfer")
	}

	if err := r.ledger.Append(ctx, audit.Event{
		Type:        audit.EventTransferExpired,
		Identity:    expired.Owner,
		TransferID:  id.TransferID(expired.ID.String()),
		AmountCents: expired.AmountCents,
		Source:      expired.Source,
		Destination: expired.Destination,
	}); err != nil {
		return models.StagedTransfer{}, dErrors.Wrap(err, dErrors.CodePersistence, "failed to audit expiry")
	}

	if r.logger != nil {
		r.logger.InfoContext(ctx, "staged transfer expired", "staging_id", expired.ID)
	}
	return expired, nil
}

// Pending lists the records still awaiting resolution, for callers that
// present them to the owner.
func (r *Registry) Pending(ctx context.Context) ([]models.StagedTransfer, error) {
	pending, err := r.store.Pending(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending transfers")
	}
	return pending, nil
}
