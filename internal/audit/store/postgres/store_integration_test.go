//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fundgate/internal/audit"
	auditpg "fundgate/internal/audit/store/postgres"
	id "fundgate/pkg/domain"
	"fundgate/pkg/testutil/containers"
)

type PostgresLedgerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auditpg.Store
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	_, err := s.postgres.DB.Exec(auditpg.Schema)
	s.Require().NoError(err)
	s.store = auditpg.New(s.postgres.DB)
}

func (s *PostgresLedgerSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *PostgresLedgerSuite) collect(events func(yield func(audit.Event, error) bool)) []audit.Event {
	var out []audit.Event
	for event, err := range events {
		s.Require().NoError(err)
		out = append(out, event)
	}
	return out
}

func (s *PostgresLedgerSuite) TestAppendAndReadBack() {
	ctx := context.Background()
	pinned := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp:   pinned,
		Type:        audit.EventTransferCompleted,
		Identity:    "alice",
		TransferID:  "t-1",
		AmountCents: 250_000,
		Source:      "checking",
		Destination: "savings",
		Note:        "rent",
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Type:     audit.EventTransferRejected,
		Identity: "bob",
		Error:    "daily limit exceeded",
	}))

	events := s.collect(s.store.All(ctx))
	s.Require().Len(events, 2)

	s.Equal(audit.EventTransferCompleted, events[0].Type)
	s.True(pinned.Equal(events[0].Timestamp))
	s.Equal(int64(250_000), events[0].AmountCents)
	s.Equal("rent", events[0].Note)

	s.Equal(audit.EventTransferRejected, events[1].Type)
	s.Equal("daily limit exceeded", events[1].Error)
	s.False(events[1].Timestamp.IsZero(), "missing timestamps are stamped on append")
}

func (s *PostgresLedgerSuite) TestOrderSurvivesIdenticalTimestamps() {
	ctx := context.Background()
	pinned := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	for _, identity := range []string{"first", "second", "third"} {
		s.Require().NoError(s.store.Append(ctx, audit.Event{
			Timestamp: pinned,
			Type:      audit.EventTransferRequested,
			Identity:  id.Identity(identity),
		}))
	}

	events := s.collect(s.store.All(ctx))
	s.Require().Len(events, 3)
	s.Equal("first", string(events[0].Identity))
	s.Equal("third", string(events[2].Identity))
}

func (s *PostgresLedgerSuite) TestByIdentity() {
	ctx := context.Background()

	s.Require().NoError(s.store.Append(ctx, audit.Event{Type: audit.EventTransferCompleted, Identity: "alice"}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{Type: audit.EventTransferFailed, Identity: "bob"}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{Type: audit.EventTransferFailed, Identity: "alice"}))

	events := s.collect(s.store.ByIdentity(ctx, "alice"))
	s.Require().Len(events, 2)
	s.Equal(audit.EventTransferCompleted, events[0].Type)
	s.Equal(audit.EventTransferFailed, events[1].Type)
}

func (s *PostgresLedgerSuite) TestIterationIsRestartable() {
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.Require().NoError(s.store.Append(ctx, audit.Event{Type: audit.EventTransferRequested}))
	}

	seen := 0
	for _, err := range s.store.All(ctx) {
		s.Require().NoError(err)
		seen++
		if seen == 2 {
			break
		}
	}
	s.Len(s.collect(s.store.All(ctx)), 5)
}
