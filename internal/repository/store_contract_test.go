package repository

import (
	"context"
	"sort"
	"sync"
	"testing"

	"fiction-server/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoryStoreContract проверяет поведение, общее для всех реализаций StoryStore.
func runStoryStoreContract(t *testing.T, newStore func(t *testing.T) StoryStore) {
	ctx := context.Background()

	t.Run("load of unknown id returns default state", func(t *testing.T) {
		store := newStore(t)

		state, err := store.Load(ctx, "deadbeef")
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultStoryState(), state)

		summaries, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, summaries, "default state must not be persisted")
	})

	t.Run("create builds initial state", func(t *testing.T) {
		store := newStore(t)

		id, err := store.Create(ctx, "T", "Once upon a time.")
		require.NoError(t, err)
		assert.Len(t, id, 8)

		state, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StoryState{
			Title: "T",
			Mode:  domain.ModeGame,
			Steps: 0,
			Log:   []domain.LogEntry{domain.Background("Once upon a time.")},
		}, state)
	})

	t.Run("save then load round trips", func(t *testing.T) {
		store := newStore(t)

		id, err := store.Create(ctx, "Башня", "Ветер.")
		require.NoError(t, err)

		state := domain.StoryState{
			Title: "Башня",
			Mode:  domain.ModeGame,
			Steps: 2,
			Log: []domain.LogEntry{
				domain.Background("Ветер."),
				domain.Choice("Подняться"),
				domain.Story("Лестница скрипит. A) выше B) вниз C) ждать"),
				domain.Choice("выше"),
				domain.Story("Крыша."),
			},
		}
		require.NoError(t, store.Save(ctx, id, state))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, state, loaded)
	})

	t.Run("zero state is stored normalized", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.Save(ctx, "zero0000", domain.StoryState{}))
		loaded, err := store.Load(ctx, "zero0000")
		require.NoError(t, err)
		assert.Equal(t, domain.StoryState{}.Normalize(), loaded)
	})

	t.Run("list returns every story", func(t *testing.T) {
		store := newStore(t)

		idA, err := store.Create(ctx, "A", "a")
		require.NoError(t, err)
		idB, err := store.Create(ctx, "B", "b")
		require.NoError(t, err)

		state, err := store.Load(ctx, idB)
		require.NoError(t, err)
		state.Log = append(state.Log, domain.Choice("go"), domain.Story("gone"))
		state.Steps = 1
		require.NoError(t, store.Save(ctx, idB, state))

		summaries, err := store.List(ctx)
		require.NoError(t, err)
		sort.Slice(summaries, func(i, j int) bool { return summaries[i].Title < summaries[j].Title })
		assert.Equal(t, []domain.StorySummary{
			{ID: idA, Title: "A", Steps: 0},
			{ID: idB, Title: "B", Steps: 1},
		}, summaries)
	})

	t.Run("create allocates distinct ids concurrently", func(t *testing.T) {
		store := newStore(t)

		const n = 20
		ids := make(chan string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := store.Create(ctx, "x", "y")
				assert.NoError(t, err)
				ids <- id
			}()
		}
		wg.Wait()
		close(ids)

		seen := map[string]bool{}
		for id := range ids {
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
		assert.Len(t, seen, n)
	})
}

// withFixedIDs подменяет генератор идентификаторов на заданную последовательность.
func withFixedIDs(t *testing.T, ids ...string) {
	t.Helper()
	orig := newStoryID
	i := 0
	newStoryID = func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
	t.Cleanup(func() { newStoryID = orig })
}

func runCollisionContract(t *testing.T, store StoryStore) {
	ctx := context.Background()

	withFixedIDs(t, "aaaaaaaa", "aaaaaaaa", "bbbbbbbb")

	first, err := store.Create(ctx, "first", "1")
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaaa", first)

	second, err := store.Create(ctx, "second", "2")
	require.NoError(t, err)
	assert.Equal(t, "bbbbbbbb", second)

	state, err := store.Load(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "first", state.Title, "collision must not overwrite the existing story")
}

func runExhaustedIDsContract(t *testing.T, store StoryStore) {
	ctx := context.Background()

	withFixedIDs(t, "cccccccc")

	_, err := store.Create(ctx, "first", "1")
	require.NoError(t, err)

	_, err = store.Create(ctx, "second", "2")
	assert.ErrorIs(t, err, domain.ErrIOFailure)
}
