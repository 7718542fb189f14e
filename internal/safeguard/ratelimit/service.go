// Package ratelimit throttles the conversational front end per identity.
// Local, in-process, best-effort: the single-authoritative-process deployment
// makes the in-memory window accurate enough, and a missed throttle costs at
// worst one extra message, never funds.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fundgate/internal/audit"
	"fundgate/internal/safeguard/models"
	"fundgate/internal/safeguard/ports"
	id "fundgate/pkg/domain"
	dErrors "fundgate/pkg/domain-errors"
)

// Store is the counter backend.
type Store = ports.BucketStore

type Service struct {
	buckets Store
	ledger  audit.Ledger
	limit   int
	window  time.Duration
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithLedger enables journaling of rate-limit denials. Best-effort: a failed
// append is logged, not surfaced, because a throttle answer is not a
// compliance decision.
func WithLedger(ledger audit.Ledger) Option {
	return func(s *Service) { s.ledger = ledger }
}

func New(buckets Store, limit int, window time.Duration, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, fmt.Errorf("bucket store is required")
	}
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("rate limit and window must be positive")
	}

	svc := &Service{
		buckets: buckets,
		limit:   limit,
		window:  window,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Allow reports whether the identity may send another message now, recording
// the attempt when accepted.
func (s *Service) Allow(ctx context.Context, identity id.Identity) (bool, error) {
	if identity.IsEmpty() {
		return false, dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}

	result, err := s.buckets.Allow(ctx, identity.String(), s.limit, s.window)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}

	if !result.Allowed {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "rate limit exceeded",
				"identity", identity, "limit", s.limit, "window", s.window)
		}
		if s.ledger != nil {
			if err := s.ledger.Append(ctx, audit.Event{
				Type:     audit.EventRateLimited,
				Identity: identity,
			}); err != nil && s.logger != nil {
				s.logger.WarnContext(ctx, "failed to audit rate limit denial", "error", err)
			}
		}
	}
	return result.Allowed, nil
}

// Status returns the live window state without consuming a slot. Transport
// layers use it to tell a throttled caller when to come back.
func (s *Service) Status(ctx context.Context, identity id.Identity) (*models.RateLimitResult, error) {
	if identity.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}
	result, err := s.buckets.Status(ctx, identity.String(), s.limit, s.window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read rate limit state")
	}
	return result, nil
}
