package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woodshedapp/woodshed/internal/logger"
	"github.com/woodshedapp/woodshed/models"
)

func TestReconciler_RegisterAndLookup(t *testing.T) {
	r := New(logger.Nop())
	r.Register("1700000000000")

	mapping, ok := r.Lookup("1700000000000")
	require.True(t, ok)
	assert.Equal(t, "1700000000000", mapping.LocalID)
	assert.False(t, mapping.Resolved())

	_, ok = r.Lookup("unknown")
	assert.False(t, ok)
}

func TestReconciler_ResolveIndexesBothIDs(t *testing.T) {
	r := New(logger.Nop())
	r.Register("1700000000000")

	require.NoError(t, r.Resolve("1700000000000", "c0ffee11-0000-4000-8000-000000000001"))

	byLocal, ok := r.Lookup("1700000000000")
	require.True(t, ok)
	byCanonical, ok2 := r.Lookup("c0ffee11-0000-4000-8000-000000000001")
	require.True(t, ok2)

	assert.Equal(t, byLocal, byCanonical)
	assert.True(t, byLocal.Resolved())
	assert.False(t, byLocal.Conflict)
}

func TestReconciler_ResolveIsIdempotent(t *testing.T) {
	r := New(logger.Nop())
	require.NoError(t, r.Resolve("1700000000000", "canonical-1"))
	require.NoError(t, r.Resolve("1700000000000", "canonical-1"))

	mapping, _ := r.Lookup("1700000000000")
	assert.Equal(t, "canonical-1", mapping.CanonicalID)
	assert.False(t, mapping.Conflict)
}

func TestReconciler_ConflictKeepsOriginalBinding(t *testing.T) {
	r := New(logger.Nop())
	require.NoError(t, r.Resolve("1700000000000", "canonical-1"))

	err := r.Resolve("1700000000000", "canonical-2")
	assert.ErrorIs(t, err, ErrConflict)

	mapping, _ := r.Lookup("1700000000000")
	assert.Equal(t, "canonical-1", mapping.CanonicalID)
	assert.True(t, mapping.Conflict)
}

func TestReconciler_ResolveRejectsEmptyCanonical(t *testing.T) {
	r := New(logger.Nop())
	assert.ErrorIs(t, r.Resolve("1700000000000", ""), ErrConflict)
}

func TestReconciler_OnResolveFiresOnce(t *testing.T) {
	r := New(logger.Nop())
	r.Register("1700000000000")

	var fired []models.IdentityMapping
	r.OnResolve("1700000000000", func(m models.IdentityMapping) {
		fired = append(fired, m)
	})

	require.NoError(t, r.Resolve("1700000000000", "canonical-1"))
	// idempotent re-resolve must not re-fire
	require.NoError(t, r.Resolve("1700000000000", "canonical-1"))

	require.Len(t, fired, 1)
	assert.Equal(t, "canonical-1", fired[0].CanonicalID)
}

func TestReconciler_OnResolveAfterResolutionFiresImmediately(t *testing.T) {
	r := New(logger.Nop())
	require.NoError(t, r.Resolve("1700000000000", "canonical-1"))

	var fired bool
	r.OnResolve("1700000000000", func(m models.IdentityMapping) {
		fired = true
		assert.Equal(t, "canonical-1", m.CanonicalID)
	})
	assert.True(t, fired)
}

type stubSessions struct {
	sessions []models.Session
	err      error
}

func (s *stubSessions) ListSessions(context.Context) ([]models.Session, error) {
	return s.sessions, s.err
}

type stubQueue struct {
	entries []models.SyncQueueEntry
	err     error
}

func (s *stubQueue) ListEntries(context.Context) ([]models.SyncQueueEntry, error) {
	return s.entries, s.err
}

func TestReconciler_Rebuild(t *testing.T) {
	sessions := &stubSessions{sessions: []models.Session{
		{LocalID: "1700000000000", CanonicalID: "canonical-1", SyncState: models.SyncStateSynced},
		{LocalID: "1700000000001", SyncState: models.SyncStateLocal},
	}}
	queue := &stubQueue{entries: []models.SyncQueueEntry{
		{LocalID: "1700000000001"},
	}}

	r := New(logger.Nop())
	require.NoError(t, r.Rebuild(context.Background(), sessions, queue))

	synced, ok := r.Lookup("canonical-1")
	require.True(t, ok)
	assert.Equal(t, "1700000000000", synced.LocalID)

	pending, ok := r.Lookup("1700000000001")
	require.True(t, ok)
	assert.False(t, pending.Resolved())
}

func TestReconciler_RebuildPropagatesStoreError(t *testing.T) {
	boom := errors.New("db closed")
	r := New(logger.Nop())

	err := r.Rebuild(context.Background(), &stubSessions{err: boom}, &stubQueue{})
	assert.ErrorIs(t, err, boom)
}
