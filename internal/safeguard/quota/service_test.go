package quota

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	quotaStore "fundgate/internal/safeguard/store/quota"
	id "fundgate/pkg/domain"
	dErrors "fundgate/pkg/domain-errors"
)

// =============================================================================
// Quota Tracker Test Suite
// =============================================================================
// Justification for unit tests: the tracker carries the money invariants of
// the daily limits (check is side-effect free, record is idempotent, day
// rollover resets headroom). These are exercised here against the in-memory
// store with a pinned clock.

type QuotaTrackerSuite struct {
	suite.Suite
	store   *quotaStore.MemoryStore
	tracker *Tracker
	now     time.Time
}

func TestQuotaTrackerSuite(t *testing.T) {
	suite.Run(t, new(QuotaTrackerSuite))
}

func (s *QuotaTrackerSuite) SetupTest() {
	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s.store = quotaStore.NewMemory()

	var err error
	s.tracker, err = New(s.store, WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
}

func (s *QuotaTrackerSuite) record(scope id.Scope, amount int64, transferID string) {
	s.Require().NoError(s.tracker.Record(context.Background(), scope, amount, id.TransferID(transferID)))
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *QuotaTrackerSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.Error(err)
		s.Contains(err.Error(), "quota store is required")
	})

	s.Run("valid store returns configured tracker", func() {
		tracker, err := New(s.store)
		s.NoError(err)
		s.NotNil(tracker)
	})
}

// =============================================================================
// Check Tests
// =============================================================================

func (s *QuotaTrackerSuite) TestCheck() {
	ctx := context.Background()
	scope := id.ScopeFor("alice")

	s.Run("empty day allows up to the full limit", func() {
		decision, err := s.tracker.Check(ctx, scope, 2_500_000, 2_500_000)
		s.NoError(err)
		s.True(decision.Allowed)
		s.Equal(int64(2_500_000), decision.RemainingCents)
	})

	s.Run("check consumes nothing", func() {
		for i := 0; i < 5; i++ {
			_, err := s.tracker.Check(ctx, scope, 2_500_000, 2_500_000)
			s.NoError(err)
		}
		decision, err := s.tracker.Check(ctx, scope, 2_500_000, 2_500_000)
		s.NoError(err)
		s.True(decision.Allowed)
	})

	s.Run("exact remaining amount is allowed", func() {
		s.record(scope, 2_400_000, "t-exact-1")
		decision, err := s.tracker.Check(ctx, scope, 100_000, 2_500_000)
		s.NoError(err)
		s.True(decision.Allowed)
		s.Equal(int64(100_000), decision.RemainingCents)
	})

	s.Run("one cent over remaining is rejected", func() {
		decision, err := s.tracker.Check(ctx, scope, 100_001, 2_500_000)
		s.NoError(err)
		s.False(decision.Allowed)
	})
}

// =============================================================================
// Record Tests
// =============================================================================

func (s *QuotaTrackerSuite) TestRecord() {
	ctx := context.Background()
	scope := id.ScopeFor("bob")

	s.Run("rejects empty transfer id", func() {
		err := s.tracker.Record(ctx, scope, 100, id.TransferID(""))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects non-positive amount", func() {
		err := s.tracker.Record(ctx, scope, 0, id.TransferID("t-zero"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		err = s.tracker.Record(ctx, scope, -5, id.TransferID("t-neg"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("accumulates spend within the day", func() {
		s.record(scope, 300_000, "t-1")
		s.record(scope, 200_000, "t-2")

		decision, err := s.tracker.Check(ctx, scope, 0, 2_500_000)
		s.NoError(err)
		s.Equal(int64(2_000_000), decision.RemainingCents)
	})

	s.Run("same transfer id charges only once", func() {
		s.record(scope, 100_000, "t-dup")
		s.record(scope, 100_000, "t-dup")
		s.record(scope, 100_000, "t-dup")

		decision, err := s.tracker.Check(ctx, scope, 0, 2_500_000)
		s.NoError(err)
		s.Equal(int64(1_900_000), decision.RemainingCents)
	})

	s.Run("scopes are independent", func() {
		other := id.ScopeFor("carol")
		decision, err := s.tracker.Check(ctx, other, 2_500_000, 2_500_000)
		s.NoError(err)
		s.True(decision.Allowed)
	})
}

// =============================================================================
// Day Rollover Tests
// =============================================================================

func (s *QuotaTrackerSuite) TestDayRollover() {
	ctx := context.Background()
	scope := id.ScopeFor("dana")

	// Fill the day to one transfer short of the cap.
	s.record(scope, 2_400_000, "t-day1-1")

	decision, err := s.tracker.Check(ctx, scope, 200_000, 2_500_000)
	s.NoError(err)
	s.False(decision.Allowed)

	// Step past midnight UTC. Headroom returns to the full limit.
	s.now = s.now.AddDate(0, 0, 1)

	decision, err = s.tracker.Check(ctx, scope, 200_000, 2_500_000)
	s.NoError(err)
	s.True(decision.Allowed)
	s.Equal(int64(2_500_000), decision.RemainingCents)

	// Yesterday's duplicate suppression still holds across the rollover.
	s.record(scope, 500_000, "t-day1-1")
	decision, err = s.tracker.Check(ctx, scope, 0, 2_500_000)
	s.NoError(err)
	s.Equal(int64(2_500_000), decision.RemainingCents)
}

// =============================================================================
// Admission Sequence Tests
// =============================================================================

// A sequence of admitted transfers stops exactly at the cap: 2.4M spent, a
// 200k attempt fails, a 100k attempt still fits.
func (s *QuotaTrackerSuite) TestAdmissionSequenceAtTheCap() {
	ctx := context.Background()
	scope := id.ScopeFor("erin")
	const limit = int64(2_500_000)

	for i, amount := range []int64{1_000_000, 900_000, 500_000} {
		decision, err := s.tracker.Check(ctx, scope, amount, limit)
		s.Require().NoError(err)
		s.Require().True(decision.Allowed)
		s.record(scope, amount, fmt.Sprintf("t-seq-%d", i))
	}

	decision, err := s.tracker.Check(ctx, scope, 200_000, limit)
	s.NoError(err)
	s.False(decision.Allowed)
	s.Equal(int64(100_000), decision.RemainingCents)

	decision, err = s.tracker.Check(ctx, scope, 100_000, limit)
	s.NoError(err)
	s.True(decision.Allowed)
}
