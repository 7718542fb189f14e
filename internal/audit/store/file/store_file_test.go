package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundgate/internal/audit"
)

func collect(t *testing.T, store *Store) []audit.Event {
	t.Helper()
	var events []audit.Event
	for event, err := range store.All(context.Background()) {
		require.NoError(t, err)
		events = append(events, event)
	}
	return events
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	ctx := context.Background()
	store := New(filepath.Join(t.TempDir(), "audit.jsonl"))

	for _, eventType := range []audit.EventType{
		audit.EventTransferRequested,
		audit.EventTransferCompleted,
		audit.EventTransferRejected,
	} {
		require.NoError(t, store.Append(ctx, audit.Event{
			Type:     eventType,
			Identity: "alice",
		}))
	}

	events := collect(t, store)
	require.Len(t, events, 3)
	assert.Equal(t, audit.EventTransferRequested, events[0].Type)
	assert.Equal(t, audit.EventTransferCompleted, events[1].Type)
	assert.Equal(t, audit.EventTransferRejected, events[2].Type)
}

func TestStore_AppendStampsTimestamp(t *testing.T) {
	ctx := context.Background()
	store := New(filepath.Join(t.TempDir(), "audit.jsonl"))

	before := time.Now().UTC()
	require.NoError(t, store.Append(ctx, audit.Event{Type: audit.EventRateLimited}))

	events := collect(t, store)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.Before(before))

	// An explicit timestamp survives untouched.
	pinned := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(ctx, audit.Event{Type: audit.EventRateLimited, Timestamp: pinned}))
	events = collect(t, store)
	assert.True(t, pinned.Equal(events[1].Timestamp))
}

func TestStore_MissingJournalYieldsNothing(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "never-written.jsonl"))
	assert.Empty(t, collect(t, store))
}

func TestStore_IterationIsRestartable(t *testing.T) {
	ctx := context.Background()
	store := New(filepath.Join(t.TempDir(), "audit.jsonl"))

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, audit.Event{Type: audit.EventTransferRequested}))
	}

	// Breaking out early must not poison a second iteration.
	seen := 0
	for _, err := range store.All(ctx) {
		require.NoError(t, err)
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Len(t, collect(t, store), 5)
}

func TestStore_ByIdentity(t *testing.T) {
	ctx := context.Background()
	store := New(filepath.Join(t.TempDir(), "audit.jsonl"))

	require.NoError(t, store.Append(ctx, audit.Event{Type: audit.EventTransferCompleted, Identity: "alice"}))
	require.NoError(t, store.Append(ctx, audit.Event{Type: audit.EventTransferCompleted, Identity: "bob"}))
	require.NoError(t, store.Append(ctx, audit.Event{Type: audit.EventTransferFailed, Identity: "alice"}))

	var events []audit.Event
	for event, err := range store.ByIdentity(ctx, "alice") {
		require.NoError(t, err)
		events = append(events, event)
	}

	require.Len(t, events, 2)
	assert.Equal(t, audit.EventTransferCompleted, events[0].Type)
	assert.Equal(t, audit.EventTransferFailed, events[1].Type)
}

func TestStore_OneLinePerRecord(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	store := New(path)

	require.NoError(t, store.Append(ctx, audit.Event{
		Type:        audit.EventTransferCompleted,
		Identity:    "alice",
		AmountCents: 100_000,
		Note:        "contains \"quotes\" and\nnewlines",
	}))
	require.NoError(t, store.Append(ctx, audit.Event{Type: audit.EventTransferFailed}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	assert.Len(t, lines, 2, "each record is exactly one line")
}

func TestStore_CorruptLineSurfacesError(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	store := New(path)

	require.NoError(t, store.Append(ctx, audit.Event{Type: audit.EventTransferRequested}))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("{torn write\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var sawErr bool
	var sawEvents int
	for _, err := range store.All(ctx) {
		if err != nil {
			sawErr = true
			break
		}
		sawEvents++
	}
	assert.Equal(t, 1, sawEvents, "intact prefix is still readable")
	assert.True(t, sawErr, "corruption is reported, not skipped")
}
