package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeet-socket/yeet/internal/db"
	"github.com/yeet-socket/yeet/internal/model"
	"github.com/yeet-socket/yeet/internal/repository"
)

func setupTestManager(t *testing.T) (*Manager, *repository.SessionRepository) {
	t.Helper()
	database, err := db.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	repo := repository.NewSessionRepository(database)
	return NewManager(repo, nil), repo
}

func TestManager_Lifecycle(t *testing.T) {
	manager, repo := setupTestManager(t)
	ctx := context.Background()

	s := manager.Open(ctx, "10.0.0.1:5555")
	require.NotEmpty(t, s.ID)
	assert.Equal(t, model.SessionStatusOpen, s.Status)
	assert.Equal(t, 1, manager.ActiveCount())

	manager.Identify(ctx, s.ID, "TOM")
	manager.RecordPrompt(ctx, s.ID, false)
	manager.RecordPrompt(ctx, s.ID, true)

	live, err := manager.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "TOM", live.Identity)
	assert.Equal(t, 2, live.Prompts)
	assert.Equal(t, 1, live.Failures)

	stored, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "TOM", stored.Identity)
	assert.Equal(t, 2, stored.Prompts)
	assert.Equal(t, 1, stored.Failures)

	manager.Close(ctx, s.ID)
	manager.Close(ctx, s.ID)
	assert.Equal(t, 0, manager.ActiveCount())

	closed, err := manager.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	// Updates after close are ignored.
	manager.RecordPrompt(ctx, s.ID, false)
	closed, err = manager.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, closed.Prompts)
}

func TestManager_List(t *testing.T) {
	manager, _ := setupTestManager(t)
	ctx := context.Background()

	first := manager.Open(ctx, "10.0.0.1:1")
	second := manager.Open(ctx, "10.0.0.2:2")
	manager.Close(ctx, first.ID)

	sessions, err := manager.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	byID := map[string]*model.Session{}
	for _, s := range sessions {
		byID[s.ID] = s
	}
	assert.Equal(t, model.SessionStatusClosed, byID[first.ID].Status)
	assert.Equal(t, model.SessionStatusOpen, byID[second.ID].Status)
}

func TestManager_WithoutStore(t *testing.T) {
	manager := NewManager(nil, nil)
	ctx := context.Background()

	require.NoError(t, manager.Recover(ctx))

	a := manager.Open(ctx, "a")
	b := manager.Open(ctx, "b")

	sessions, err := manager.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	manager.Close(ctx, a.ID)
	_, err = manager.Get(ctx, a.ID)
	assert.True(t, IsNotFound(err))

	got, err := manager.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", got.RemoteAddr)
}

func TestManager_Recover(t *testing.T) {
	manager, repo := setupTestManager(t)
	ctx := context.Background()

	stale := manager.Open(ctx, "old")

	restarted := NewManager(repo, nil)
	require.NoError(t, restarted.Recover(ctx))

	got, err := repo.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusClosed, got.Status)
}
