package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Togather-Foundation/attendance/internal/domain/participants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "participants.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestOpen_IsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "participants.db")

	first, err := Open(path)
	require.NoError(t, err)
	repo := first.Participants()
	_, err = repo.Create(context.Background(), participants.CreateParams{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	list, err := second.Participants().List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ana", list[0].Name)

	version, dirty, err := MigrationVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestParticipantRepository_Lifecycle(t *testing.T) {
	store := openTestStore(t)
	repo := store.Participants()
	repo.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	ctx := context.Background()

	created, err := repo.Create(ctx, participants.CreateParams{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.False(t, created.Present)
	assert.Nil(t, created.Evaluation)

	_, err = repo.SetEvaluation(ctx, created.ID, participants.Evaluation{Score: 4, Comment: "great"})
	require.ErrorIs(t, err, participants.ErrNotEligible)

	present, err := repo.MarkPresent(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, present.Present)

	again, err := repo.MarkPresent(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, again.Present)

	evaluated, err := repo.SetEvaluation(ctx, created.ID, participants.Evaluation{Score: 4, Comment: "great"})
	require.NoError(t, err)
	require.NotNil(t, evaluated.Evaluation)
	assert.Equal(t, 4, evaluated.Evaluation.Score)
	assert.Equal(t, "great", evaluated.Evaluation.Comment)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, evaluated, got)
	assert.Equal(t, time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), got.RegisteredAt)
}

func TestParticipantRepository_EmptyCommentIsStored(t *testing.T) {
	store := openTestStore(t)
	repo := store.Participants()
	ctx := context.Background()

	p, err := repo.Create(ctx, participants.CreateParams{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	_, err = repo.MarkPresent(ctx, p.ID)
	require.NoError(t, err)

	got, err := repo.SetEvaluation(ctx, p.ID, participants.Evaluation{Score: 1})
	require.NoError(t, err)
	require.NotNil(t, got.Evaluation)
	assert.Equal(t, "", got.Evaluation.Comment)
}

func TestParticipantRepository_UnknownID(t *testing.T) {
	store := openTestStore(t)
	repo := store.Participants()
	ctx := context.Background()

	_, err := repo.Get(ctx, 42)
	require.ErrorIs(t, err, participants.ErrNotFound)
	_, err = repo.MarkPresent(ctx, 42)
	require.ErrorIs(t, err, participants.ErrNotFound)
	_, err = repo.SetEvaluation(ctx, 42, participants.Evaluation{Score: 3})
	require.ErrorIs(t, err, participants.ErrNotFound)
}

func TestParticipantRepository_ListOrder(t *testing.T) {
	store := openTestStore(t)
	repo := store.Participants()
	ctx := context.Background()

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	for _, name := range []string{"Ana", "Bruno", "Carla"} {
		_, err := repo.Create(ctx, participants.CreateParams{Name: name, Email: name + "@example.com"})
		require.NoError(t, err)
	}
	_, err = repo.MarkPresent(ctx, 3)
	require.NoError(t, err)

	list, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Ana", "Bruno", "Carla"}, []string{list[0].Name, list[1].Name, list[2].Name})
	assert.True(t, list[2].Present)
	assert.False(t, list[0].Present)
}

func TestParticipantRepository_ConcurrentWrites(t *testing.T) {
	store := openTestStore(t)
	repo := store.Participants()
	ctx := context.Background()

	p, err := repo.Create(ctx, participants.CreateParams{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = repo.MarkPresent(ctx, p.ID)
		}()
		go func(score int) {
			defer wg.Done()
			_, _ = repo.SetEvaluation(ctx, p.ID, participants.Evaluation{Score: score})
		}(i%5 + 1)
	}
	wg.Wait()

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Present)
	if got.Evaluation != nil {
		assert.GreaterOrEqual(t, got.Evaluation.Score, 1)
		assert.LessOrEqual(t, got.Evaluation.Score, 5)
	}
}

func TestMigrateDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "participants.db")
	require.NoError(t, MigrateUp(path))
	require.NoError(t, MigrateDown(path, 1))

	version, _, err := MigrationVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.Error(t, MigrateDown(path, 0))
}
