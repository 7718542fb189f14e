package staging

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fundgate/internal/audit"
	auditmem "fundgate/internal/audit/store/memory"
	"fundgate/internal/safeguard/models"
	stagingstore "fundgate/internal/safeguard/store/staging"
	id "fundgate/pkg/domain"
	dErrors "fundgate/pkg/domain-errors"
)

// =============================================================================
// Staging Registry Test Suite
// =============================================================================
// Justification for unit tests: the resolve path has a fixed failure ordering
// (unknown, expired, ownership, already-resolved) and every terminal
// transition must appear in the journal exactly once. Both are awkward to pin
// down through the HTTP surface.

type StagingRegistrySuite struct {
	suite.Suite
	store    *stagingstore.MemoryStore
	ledger   *auditmem.Store
	registry *Registry
	now      time.Time
}

func TestStagingRegistrySuite(t *testing.T) {
	suite.Run(t, new(StagingRegistrySuite))
}

func (s *StagingRegistrySuite) SetupTest() {
	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s.store = stagingstore.NewMemory()
	s.ledger = auditmem.New()

	var err error
	s.registry, err = New(s.store, s.ledger, 5*time.Minute,
		WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
}

func (s *StagingRegistrySuite) stage(owner string) models.StagedTransfer {
	staged, err := s.registry.Stage(context.Background(), models.TransferRequest{
		Identity:    id.Identity(owner),
		Source:      "checking",
		Destination: "savings",
		AmountCents: 50_000,
		Note:        "rent",
	})
	s.Require().NoError(err)
	return staged
}

func (s *StagingRegistrySuite) journalTypes() []audit.EventType {
	var types []audit.EventType
	for event, err := range s.ledger.All(context.Background()) {
		s.Require().NoError(err)
		types = append(types, event.Type)
	}
	return types
}

// =============================================================================
// Stage Tests
// =============================================================================

func (s *StagingRegistrySuite) TestStage() {
	ctx := context.Background()

	s.Run("creates a pending record with ttl expiry", func() {
		staged := s.stage("alice")
		s.Equal(models.StagingPending, staged.Status)
		s.Equal(id.Identity("alice"), staged.Owner)
		s.Equal(s.now.Add(5*time.Minute), staged.ExpiresAt)
		s.False(staged.ID.IsNil())
	})

	s.Run("requires an owner", func() {
		_, err := s.registry.Stage(ctx, models.TransferRequest{
			Source:      "checking",
			Destination: "savings",
			AmountCents: 100,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects invalid requests", func() {
		_, err := s.registry.Stage(ctx, models.TransferRequest{
			Identity:    "alice",
			Source:      "checking",
			Destination: "savings",
			AmountCents: -1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("journals the staging", func() {
		s.stage("alice")
		s.Contains(s.journalTypes(), audit.EventTransferStaged)
	})
}

// =============================================================================
// Resolve Tests
// =============================================================================

func (s *StagingRegistrySuite) TestResolveConfirm() {
	ctx := context.Background()
	staged := s.stage("alice")

	resolved, err := s.registry.Resolve(ctx, staged.ID, "alice", models.ActionConfirm)
	s.NoError(err)
	s.Equal(models.StagingConfirmed, resolved.Status)
	s.Contains(s.journalTypes(), audit.EventTransferConfirmed)
}

func (s *StagingRegistrySuite) TestResolveCancel() {
	ctx := context.Background()
	staged := s.stage("alice")

	resolved, err := s.registry.Resolve(ctx, staged.ID, "alice", models.ActionCancel)
	s.NoError(err)
	s.Equal(models.StagingCancelled, resolved.Status)
	s.Contains(s.journalTypes(), audit.EventTransferCancelled)
}

func (s *StagingRegistrySuite) TestResolveUnknownID() {
	_, err := s.registry.Resolve(context.Background(), id.NewStagingID(), "alice", models.ActionConfirm)
	s.True(dErrors.HasCode(err, dErrors.CodeStagingNotFound))
}

func (s *StagingRegistrySuite) TestResolveWrongOwner() {
	ctx := context.Background()
	staged := s.stage("alice")

	_, err := s.registry.Resolve(ctx, staged.ID, "mallory", models.ActionConfirm)
	s.True(dErrors.HasCode(err, dErrors.CodeStagingOwnership))

	// The record is untouched and the owner can still resolve it.
	resolved, err := s.registry.Resolve(ctx, staged.ID, "alice", models.ActionConfirm)
	s.NoError(err)
	s.Equal(models.StagingConfirmed, resolved.Status)
}

func (s *StagingRegistrySuite) TestResolveTwice() {
	ctx := context.Background()
	staged := s.stage("alice")

	_, err := s.registry.Resolve(ctx, staged.ID, "alice", models.ActionCancel)
	s.Require().NoError(err)

	resolved, err := s.registry.Resolve(ctx, staged.ID, "alice", models.ActionConfirm)
	s.True(dErrors.HasCode(err, dErrors.CodeStagingResolved))
	s.Equal(models.StagingCancelled, resolved.Status, "first resolution wins")
}

func (s *StagingRegistrySuite) TestResolveExpired() {
	ctx := context.Background()
	staged := s.stage("alice")

	s.now = s.now.Add(5*time.Minute + time.Second)

	resolved, err := s.registry.Resolve(ctx, staged.ID, "alice", models.ActionConfirm)
	s.True(dErrors.HasCode(err, dErrors.CodeStagingExpired))
	s.Equal(models.StagingExpired, resolved.Status)
	s.Contains(s.journalTypes(), audit.EventTransferExpired)

	// Expiry outranks ownership: a stranger probing an expired ID learns it
	// expired, not whose it was.
	_, err = s.registry.Resolve(ctx, staged.ID, "mallory", models.ActionConfirm)
	s.True(dErrors.HasCode(err, dErrors.CodeStagingExpired))
}

func (s *StagingRegistrySuite) TestResolveAtExactExpiry() {
	ctx := context.Background()
	staged := s.stage("alice")

	// The boundary instant is still inside the window.
	s.now = staged.ExpiresAt

	resolved, err := s.registry.Resolve(ctx, staged.ID, "alice", models.ActionConfirm)
	s.NoError(err)
	s.Equal(models.StagingConfirmed, resolved.Status)
}

// =============================================================================
// Sweep Tests
// =============================================================================

func (s *StagingRegistrySuite) TestSweepExpired() {
	ctx := context.Background()

	first := s.stage("alice")
	s.now = s.now.Add(2 * time.Minute)
	second := s.stage("bob")

	// Only the first record is past its window.
	s.now = s.now.Add(3*time.Minute + time.Second)

	swept, err := s.registry.SweepExpired(ctx)
	s.NoError(err)
	s.Equal(1, swept)

	pending, err := s.registry.Pending(ctx)
	s.NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(second.ID, pending[0].ID)

	_, err = s.registry.Resolve(ctx, first.ID, "alice", models.ActionConfirm)
	s.True(dErrors.HasCode(err, dErrors.CodeStagingExpired))

	// Sweeping again finds nothing new.
	swept, err = s.registry.SweepExpired(ctx)
	s.NoError(err)
	s.Zero(swept)
}

// =============================================================================
// Store Contract Tests
// =============================================================================

// wrappingStore decorates the memory store, wrapping every sentinel it
// returns the way a remote-backed store would annotate its errors.
type wrappingStore struct {
	inner *stagingstore.MemoryStore
}

func (w *wrappingStore) Create(ctx context.Context, transfer models.StagedTransfer) error {
	if err := w.inner.Create(ctx, transfer); err != nil {
		return fmt.Errorf("staging backend: %w", err)
	}
	return nil
}

func (w *wrappingStore) Get(ctx context.Context, stagingID id.StagingID) (models.StagedTransfer, error) {
	transfer, err := w.inner.Get(ctx, stagingID)
	if err != nil {
		return transfer, fmt.Errorf("staging backend: %w", err)
	}
	return transfer, nil
}

func (w *wrappingStore) CompareAndSwapStatus(ctx context.Context, stagingID id.StagingID, from, to models.StagingStatus) (models.StagedTransfer, error) {
	transfer, err := w.inner.CompareAndSwapStatus(ctx, stagingID, from, to)
	if err != nil {
		return transfer, fmt.Errorf("staging backend: %w", err)
	}
	return transfer, nil
}

func (w *wrappingStore) Pending(ctx context.Context) ([]models.StagedTransfer, error) {
	return w.inner.Pending(ctx)
}

func (s *StagingRegistrySuite) TestWrappedSentinelsStillTranslate() {
	ctx := context.Background()

	registry, err := New(&wrappingStore{inner: s.store}, s.ledger, 5*time.Minute,
		WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)

	s.Run("wrapped not-found maps to staging_not_found", func() {
		_, err := registry.Resolve(ctx, id.NewStagingID(), "alice", models.ActionConfirm)
		s.True(dErrors.HasCode(err, dErrors.CodeStagingNotFound))
	})

	s.Run("wrapped already-resolved maps to staging_already_resolved", func() {
		staged := s.stage("alice")
		_, err := registry.Resolve(ctx, staged.ID, "alice", models.ActionCancel)
		s.Require().NoError(err)

		_, err = registry.Resolve(ctx, staged.ID, "alice", models.ActionConfirm)
		s.True(dErrors.HasCode(err, dErrors.CodeStagingResolved))
	})
}
