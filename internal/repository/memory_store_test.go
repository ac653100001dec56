package repository

import (
	"context"
	"testing"

	"fiction-server/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	runStoryStoreContract(t, func(t *testing.T) StoryStore {
		return NewMemoryStore()
	})
}

func TestMemoryStore_IDCollision(t *testing.T) {
	runCollisionContract(t, NewMemoryStore())
}

func TestMemoryStore_IDsExhausted(t *testing.T) {
	runExhaustedIDsContract(t, NewMemoryStore())
}

func TestMemoryStore_IsolatesCallerSlices(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.Create(ctx, "T", "bg")
	require.NoError(t, err)

	state, err := store.Load(ctx, id)
	require.NoError(t, err)
	state.Log[0].Text = "mutated"
	state.Log = append(state.Log, domain.Choice("not saved"))

	again, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.NewStoryState("T", "bg"), again)
}
