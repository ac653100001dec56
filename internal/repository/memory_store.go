package repository

import (
	"context"
	"sync"

	"fiction-server/internal/domain"
)

var _ StoryStore = (*MemoryStore)(nil)

// MemoryStore хранит истории в памяти процесса. Используется в тестах и при STORE_DRIVER=memory.
type MemoryStore struct {
	mu      sync.RWMutex
	stories map[string]domain.StoryState
}

// NewMemoryStore создает пустое хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{stories: make(map[string]domain.StoryState)}
}

func (m *MemoryStore) Load(_ context.Context, id string) (domain.StoryState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.stories[id]
	if !ok {
		return domain.DefaultStoryState(), nil
	}
	return state.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, id string, state domain.StoryState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stories[id] = state.Normalize().Clone()
	return nil
}

func (m *MemoryStore) Create(ctx context.Context, title, background string) (string, error) {
	return createWithRetry(ctx, domain.NewStoryState(title, background), func(_ context.Context, id string, state domain.StoryState) error {
		m.mu.Lock()
		defer m.mu.Unlock()

		if _, exists := m.stories[id]; exists {
			return errIDTaken
		}
		m.stories[id] = state.Normalize().Clone()
		return nil
	})
}

func (m *MemoryStore) List(_ context.Context) ([]domain.StorySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make([]domain.StorySummary, 0, len(m.stories))
	for id, state := range m.stories {
		summaries = append(summaries, summaryOf(id, state))
	}
	return summaries, nil
}
