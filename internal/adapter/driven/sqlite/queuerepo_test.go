package sqlite

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/port/driven"
)

func TestQueueRepo_EnqueueAssignsIncreasingIDs(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQueueRepo(db)
	ctx := context.Background()

	id1, err := repo.Enqueue(ctx, "personal", "# note one")
	require.NoError(t, err)
	id2, err := repo.Enqueue(ctx, "personal", "# note two")
	require.NoError(t, err)

	assert.Greater(t, id2, id1)
}

func TestQueueRepo_Get(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQueueRepo(db)
	ctx := context.Background()

	id, err := repo.Enqueue(ctx, "personal", "# hello")
	require.NoError(t, err)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "personal", got.Vault)
	assert.Equal(t, "# hello", got.Note)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestQueueRepo_Get_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQueueRepo(db)
	ctx := context.Background()

	got, err := repo.Get(ctx, 12345)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, driven.ErrNoteNotFound)
}

func TestQueueRepo_Dequeue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQueueRepo(db)
	ctx := context.Background()

	id, err := repo.Enqueue(ctx, "personal", "# note")
	require.NoError(t, err)

	require.NoError(t, repo.Dequeue(ctx, id))

	notes, err := repo.ListPending(ctx, "personal")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestQueueRepo_Dequeue_MissingIDIsNoop(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQueueRepo(db)
	ctx := context.Background()

	assert.NoError(t, repo.Dequeue(ctx, 999))
}

func TestQueueRepo_ListPending_OldestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQueueRepo(db)
	ctx := context.Background()

	idA, err := repo.Enqueue(ctx, "personal", "A")
	require.NoError(t, err)
	idB, err := repo.Enqueue(ctx, "personal", "B")
	require.NoError(t, err)
	idC, err := repo.Enqueue(ctx, "personal", "C")
	require.NoError(t, err)

	notes, err := repo.ListPending(ctx, "personal")
	require.NoError(t, err)
	require.Len(t, notes, 3)

	assert.Equal(t, []int64{idA, idB, idC}, []int64{notes[0].ID, notes[1].ID, notes[2].ID})
	assert.Equal(t, "A", notes[0].Note)
	assert.Equal(t, "C", notes[2].Note)
}

func TestQueueRepo_ListPending_ScopedToVault(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQueueRepo(db)
	ctx := context.Background()

	_, err := repo.Enqueue(ctx, "personal", "mine")
	require.NoError(t, err)
	_, err = repo.Enqueue(ctx, "work", "theirs")
	require.NoError(t, err)

	notes, err := repo.ListPending(ctx, "personal")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "mine", notes[0].Note)
}

func TestQueueRepo_DequeueMany(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQueueRepo(db)
	ctx := context.Background()

	idA, err := repo.Enqueue(ctx, "personal", "A")
	require.NoError(t, err)
	idB, err := repo.Enqueue(ctx, "personal", "B")
	require.NoError(t, err)
	idC, err := repo.Enqueue(ctx, "personal", "C")
	require.NoError(t, err)

	require.NoError(t, repo.DequeueMany(ctx, []int64{idA, idC}))

	notes, err := repo.ListPending(ctx, "personal")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, idB, notes[0].ID)
}

func TestQueueRepo_DequeueMany_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQueueRepo(db)
	ctx := context.Background()

	assert.NoError(t, repo.DequeueMany(ctx, nil))
	assert.NoError(t, repo.DequeueMany(ctx, []int64{}))
}

func TestQueueRepo_ConcurrentEnqueue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQueueRepo(db)
	ctx := context.Background()

	const n = 20
	ids := make(chan int64, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := repo.Enqueue(ctx, "personal", "# concurrent")
			if err != nil {
				t.Error(err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	notes, err := repo.ListPending(ctx, "personal")
	require.NoError(t, err)
	assert.Len(t, notes, n)
}
