// Package gate orchestrates the safeguards into a single admission decision.
// Exactly one gate instance is authoritative per deployment: every check and
// record for a scope funnels through it, which is what makes the daily limits
// race-free.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fundgate/internal/audit"
	"fundgate/internal/platform/metrics"
	"fundgate/internal/safeguard/models"
	"fundgate/internal/safeguard/ports"
	"fundgate/internal/safeguard/quota"
	"fundgate/internal/safeguard/ratelimit"
	"fundgate/internal/safeguard/staging"
	id "fundgate/pkg/domain"
	dErrors "fundgate/pkg/domain-errors"
)

// Limits are the policy caps the gate enforces. The per-transfer cap and the
// daily caps are independent gates; every one of them must pass before the
// executor is invoked.
type Limits struct {
	PerTransferCents   int64
	DailyIdentityCents int64
	DailyGlobalCents   int64
}

type Service struct {
	ledger   audit.Ledger
	quotas   *quota.Tracker
	staging  *staging.Registry
	rate     *ratelimit.Service
	executor ports.Executor
	limits   Limits

	locks scopeLocks

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(
	ledger audit.Ledger,
	quotas *quota.Tracker,
	stagingRegistry *staging.Registry,
	rate *ratelimit.Service,
	executor ports.Executor,
	limits Limits,
	opts ...Option,
) (*Service, error) {
	if ledger == nil {
		return nil, fmt.Errorf("audit ledger is required")
	}
	if quotas == nil {
		return nil, fmt.Errorf("quota tracker is required")
	}
	if stagingRegistry == nil {
		return nil, fmt.Errorf("staging registry is required")
	}
	if rate == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if limits.PerTransferCents <= 0 || limits.DailyIdentityCents <= 0 || limits.DailyGlobalCents <= 0 {
		return nil, fmt.Errorf("all limits must be positive")
	}

	svc := &Service{
		ledger:   ledger,
		quotas:   quotas,
		staging:  stagingRegistry,
		rate:     rate,
		executor: executor,
		limits:   limits,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// AdmitAndExecute runs a transfer attempt through every gate and, if
// admitted, executes it and durably records the outcome. Each attempt leaves
// exactly one terminal audit entry: rejected, completed, or failed.
func (s *Service) AdmitAndExecute(ctx context.Context, req models.TransferRequest) (models.TransferOutcome, error) {
	if err := req.Validate(); err != nil {
		return models.TransferOutcome{}, err
	}

	// Check-then-record must be atomic per scope. Locks are taken in sorted
	// order so the global and identity scopes can never deadlock.
	scopes := []id.Scope{id.GlobalScope}
	if !req.Identity.IsEmpty() {
		scopes = append(scopes, id.ScopeFor(req.Identity))
	}
	unlock := s.locks.lock(scopes)
	defer unlock()

	if req.AmountCents > s.limits.PerTransferCents {
		err := dErrors.Newf(dErrors.CodePerTransferLimit,
			"amount %d cents exceeds per-transfer limit of %d cents",
			req.AmountCents, s.limits.PerTransferCents)
		return models.TransferOutcome{}, s.reject(ctx, req, "per_transfer_limit", err)
	}

	if !req.Identity.IsEmpty() {
		decision, err := s.quotas.Check(ctx, id.ScopeFor(req.Identity), req.AmountCents, s.limits.DailyIdentityCents)
		if err != nil {
			return models.TransferOutcome{}, err
		}
		if !decision.Allowed {
			err := dErrors.Newf(dErrors.CodeDailyLimit,
				"amount %d cents exceeds daily remaining limit of %d cents",
				req.AmountCents, decision.RemainingCents)
			return models.TransferOutcome{}, s.reject(ctx, req, "daily_limit", err)
		}
	}

	decision, err := s.quotas.Check(ctx, id.GlobalScope, req.AmountCents, s.limits.DailyGlobalCents)
	if err != nil {
		return models.TransferOutcome{}, err
	}
	if !decision.Allowed {
		err := dErrors.Newf(dErrors.CodeDailyLimit,
			"amount %d cents exceeds global daily remaining limit of %d cents",
			req.AmountCents, decision.RemainingCents)
		return models.TransferOutcome{}, s.reject(ctx, req, "daily_limit_global", err)
	}

	// Past every gate. The admission itself is journaled before the executor
	// is invoked; if this write fails the transfer never happened.
	if err := s.ledger.Append(ctx, audit.Event{
		Type:        audit.EventTransferRequested,
		Identity:    req.Identity,
		AmountCents: req.AmountCents,
		Source:      req.Source,
		Destination: req.Destination,
		Note:        req.Note,
	}); err != nil {
		return models.TransferOutcome{}, dErrors.Wrap(err, dErrors.CodePersistence, "failed to audit admission")
	}
	if s.metrics != nil {
		s.metrics.TransfersAdmitted.Inc()
	}

	start := time.Now()
	result, execErr := s.executor.Execute(ctx, ports.ExecuteRequest{
		Source:      req.Source,
		Destination: req.Destination,
		AmountCents: req.AmountCents,
		Note:        req.Note,
	})
	if s.metrics != nil {
		s.metrics.ExecutorDuration.Observe(time.Since(start).Seconds())
	}

	if execErr != nil {
		if err := s.ledger.Append(ctx, audit.Event{
			Type:        audit.EventTransferFailed,
			Identity:    req.Identity,
			AmountCents: req.AmountCents,
			Source:      req.Source,
			Destination: req.Destination,
			Error:       execErr.Error(),
		}); err != nil {
			return models.TransferOutcome{}, dErrors.Wrap(err, dErrors.CodePersistence, "failed to audit executor failure")
		}
		if s.metrics != nil {
			s.metrics.TransfersFailed.Inc()
		}
		return models.TransferOutcome{}, dErrors.Wrap(execErr, dErrors.CodeUpstream, "transfer failed upstream")
	}

	transferID := result.TransferID
	if transferID.IsEmpty() {
		transferID = id.TransferID(uuid.NewString())
	}

	// Quota is charged only for transfers that actually moved funds, and the
	// completion entry is fail-closed like every other decision record.
	if !req.Identity.IsEmpty() {
		if err := s.quotas.Record(ctx, id.ScopeFor(req.Identity), req.AmountCents, transferID); err != nil {
			return models.TransferOutcome{}, err
		}
	}
	if err := s.quotas.Record(ctx, id.GlobalScope, req.AmountCents, transferID); err != nil {
		return models.TransferOutcome{}, err
	}

	if err := s.ledger.Append(ctx, audit.Event{
		Type:        audit.EventTransferCompleted,
		Identity:    req.Identity,
		TransferID:  transferID,
		AmountCents: req.AmountCents,
		Source:      req.Source,
		Destination: req.Destination,
		Note:        req.Note,
	}); err != nil {
		return models.TransferOutcome{}, dErrors.Wrap(err, dErrors.CodePersistence, "failed to audit completion")
	}
	if s.metrics != nil {
		s.metrics.TransfersCompleted.Inc()
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "transfer completed",
			"identity", req.Identity, "transfer_id", transferID,
			"source", req.Source, "destination", req.Destination,
			"amount_cents", req.AmountCents)
	}

	return models.TransferOutcome{
		TransferID:  transferID,
		Source:      req.Source,
		Destination: req.Destination,
		AmountCents: req.AmountCents,
		CompletedAt: time.Now().UTC(),
	}, nil
}

// reject journals a policy rejection and returns the rejection error. A
// failed journal write outranks the rejection: the caller must know the
// compliance record is broken.
func (s *Service) reject(ctx context.Context, req models.TransferRequest, reason string, cause error) error {
	if err := s.ledger.Append(ctx, audit.Event{
		Type:        audit.EventTransferRejected,
		Identity:    req.Identity,
		AmountCents: req.AmountCents,
		Source:      req.Source,
		Destination: req.Destination,
		Error:       cause.Error(),
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to audit rejection")
	}
	if s.metrics != nil {
		s.metrics.TransfersRejected.WithLabelValues(reason).Inc()
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "transfer rejected",
			"identity", req.Identity, "reason", reason,
			"amount_cents", req.AmountCents)
	}
	return cause
}

// Stage validates the request against current policy and parks it for
// confirmation. The caps are rechecked at confirmation time; this precheck
// just refuses to stage something that could never be admitted.
func (s *Service) Stage(ctx context.Context, req models.TransferRequest) (models.StagedTransfer, error) {
	if err := req.Validate(); err != nil {
		return models.StagedTransfer{}, err
	}
	if req.AmountCents > s.limits.PerTransferCents {
		return models.StagedTransfer{}, dErrors.Newf(dErrors.CodePerTransferLimit,
			"amount %d cents exceeds per-transfer limit of %d cents",
			req.AmountCents, s.limits.PerTransferCents)
	}
	if !req.Identity.IsEmpty() {
		decision, err := s.quotas.Check(ctx, id.ScopeFor(req.Identity), req.AmountCents, s.limits.DailyIdentityCents)
		if err != nil {
			return models.StagedTransfer{}, err
		}
		if !decision.Allowed {
			return models.StagedTransfer{}, dErrors.Newf(dErrors.CodeDailyLimit,
				"amount %d cents exceeds daily remaining limit of %d cents",
				req.AmountCents, decision.RemainingCents)
		}
	}
	if s.metrics != nil {
		s.metrics.StagedTransfers.Inc()
	}
	return s.staging.Stage(ctx, req)
}

// Confirm resolves a staged transfer as its owner and, on success, runs the
// admission pipeline. Expiry can prevent a confirmation; it never cancels an
// execution already in flight.
func (s *Service) Confirm(ctx context.Context, stagingID id.StagingID, actor id.Identity) (models.TransferOutcome, error) {
	resolved, err := s.staging.Resolve(ctx, stagingID, actor, models.ActionConfirm)
	if err != nil {
		return models.TransferOutcome{}, err
	}
	if s.metrics != nil {
		s.metrics.StagingResolved.WithLabelValues(string(models.StagingConfirmed)).Inc()
	}

	return s.AdmitAndExecute(ctx, models.TransferRequest{
		Identity:    resolved.Owner,
		Source:      resolved.Source,
		Destination: resolved.Destination,
		AmountCents: resolved.AmountCents,
		Note:        resolved.Note,
	})
}

// Cancel resolves a staged transfer as CANCELLED.
func (s *Service) Cancel(ctx context.Context, stagingID id.StagingID, actor id.Identity) (models.StagedTransfer, error) {
	cancelled, err := s.staging.Resolve(ctx, stagingID, actor, models.ActionCancel)
	if err != nil {
		return models.StagedTransfer{}, err
	}
	if s.metrics != nil {
		s.metrics.StagingResolved.WithLabelValues(string(models.StagingCancelled)).Inc()
	}
	return cancelled, nil
}

// CheckRate reports whether the identity may send another message.
func (s *Service) CheckRate(ctx context.Context, identity id.Identity) (bool, error) {
	allowed, err := s.rate.Allow(ctx, identity)
	if err != nil {
		return false, err
	}
	if !allowed && s.metrics != nil {
		s.metrics.RateLimitDenials.Inc()
	}
	return allowed, nil
}

// RateStatus reports the identity's live throttle window without consuming a
// slot. Transports use it to tell a denied caller when to retry.
func (s *Service) RateStatus(ctx context.Context, identity id.Identity) (*models.RateLimitResult, error) {
	return s.rate.Status(ctx, identity)
}

// Pending lists staged transfers awaiting resolution.
func (s *Service) Pending(ctx context.Context) ([]models.StagedTransfer, error) {
	return s.staging.Pending(ctx)
}

// SweepExpired expires overdue staged transfers. Wired to a ticker in main;
// resolve also expires lazily, so the sweep is hygiene, not correctness.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	swept, err := s.staging.SweepExpired(ctx)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		for range swept {
			s.metrics.StagingResolved.WithLabelValues(string(models.StagingExpired)).Inc()
		}
	}
	return swept, nil
}

// LimitsReport is the remaining daily headroom for an identity and the
// account as a whole.
type LimitsReport struct {
	PerTransferCents        int64 `json:"per_transfer_limit_cents"`
	IdentityRemainingCents  int64 `json:"identity_remaining_cents"`
	GlobalRemainingCents    int64 `json:"global_remaining_cents"`
	DailyIdentityLimitCents int64 `json:"daily_identity_limit_cents"`
	DailyGlobalLimitCents   int64 `json:"daily_global_limit_cents"`
}

// Remaining reports current headroom without consuming anything.
func (s *Service) Remaining(ctx context.Context, identity id.Identity) (LimitsReport, error) {
	report := LimitsReport{
		PerTransferCents:        s.limits.PerTransferCents,
		DailyIdentityLimitCents: s.limits.DailyIdentityCents,
		DailyGlobalLimitCents:   s.limits.DailyGlobalCents,
	}

	if !identity.IsEmpty() {
		decision, err := s.quotas.Check(ctx, id.ScopeFor(identity), 0, s.limits.DailyIdentityCents)
		if err != nil {
			return LimitsReport{}, err
		}
		report.IdentityRemainingCents = decision.RemainingCents
	}

	decision, err := s.quotas.Check(ctx, id.GlobalScope, 0, s.limits.DailyGlobalCents)
	if err != nil {
		return LimitsReport{}, err
	}
	report.GlobalRemainingCents = decision.RemainingCents
	return report, nil
}
