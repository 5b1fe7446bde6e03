package repo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypolab/internal/db"
	"hypolab/internal/events"
	"hypolab/internal/migrate"
)

func setupJournal(t *testing.T) (Repo, events.Journal) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(context.Background(), conn))
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return Repo{DB: conn}, events.Journal{DB: conn, Now: func() time.Time { return fixed }}
}

func appendEvent(t *testing.T, j events.Journal, ev events.Event) int64 {
	t.Helper()
	env, err := events.Wrap(ev)
	require.NoError(t, err)
	id, err := j.Append(context.Background(), env, "tester")
	require.NoError(t, err)
	return id
}

func TestJournalRoundTrip(t *testing.T) {
	r, j := setupJournal(t)
	ctx := context.Background()

	empty, err := r.LatestEventID(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty)

	first := appendEvent(t, j, events.HypothesisDeleted{ID: "HYP-001"})
	second := appendEvent(t, j, events.ExperimentDeleted{ID: "EXP-001"})
	third := appendEvent(t, j, events.HypothesisDeleted{ID: "HYP-002"})

	latest, err := r.LatestEventID(ctx)
	require.NoError(t, err)
	assert.Equal(t, third, latest)

	after, err := r.EventsAfter(ctx, 10, first)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, second, after[0].ID)
	assert.Equal(t, "experimentDeleted", after[0].Type)

	page, err := r.LatestEvents(ctx, 10, 0, "hypothesisDeleted")
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, third, page[0].ID)
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(page[0].Payload), &payload))
	assert.Equal(t, "HYP-002", payload["id"])

	older, err := r.LatestEvents(ctx, 10, third, "")
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, second, older[0].ID)

	got, err := r.GetEvent(ctx, page[0].UID)
	require.NoError(t, err)
	assert.Equal(t, page[0], got)
	_, err = r.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	counts, err := r.CountByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"hypothesisDeleted": 2, "experimentDeleted": 1}, counts)
}

func TestMigrateIsIdempotent(t *testing.T) {
	r, _ := setupJournal(t)
	ctx := context.Background()
	require.NoError(t, migrate.Migrate(ctx, r.DB))
	v, err := migrate.Version(ctx, r.DB)
	require.NoError(t, err)
	latest, err := migrate.Latest()
	require.NoError(t, err)
	assert.Equal(t, latest, v)
}
