package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fiction-server/internal/deepseek"
	"fiction-server/internal/domain"
	"fiction-server/internal/messaging"
	"fiction-server/internal/mocks"
	"fiction-server/internal/repository"
	"fiction-server/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T, gen service.Generator, publisher messaging.EventPublisher) (*service.StoryService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	engine := service.NewNarrativeEngine(gen, service.EngineConfig{}, zap.NewNop())
	return service.NewStoryService(store, engine, publisher, zap.NewNop()), store
}

func TestStoryService_CreateStory(t *testing.T) {
	publisher := mocks.NewMockEventPublisher(t)
	svc, _ := newService(t, mocks.NewMockGenerator(t), publisher)
	ctx := context.Background()

	publisher.On("PublishStoryEvent", mock.Anything, mock.MatchedBy(func(e messaging.StoryEvent) bool {
		return e.Type == messaging.EventStoryCreated && e.Title == "T" && e.Steps == 0 && !e.Timestamp.IsZero()
	})).Return(nil).Once()

	id, err := svc.CreateStory(ctx, "  T ", "Once upon a time.")
	require.NoError(t, err)
	assert.Len(t, id, 8)

	state, err := svc.GetStory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StoryState{
		Title: "T",
		Mode:  domain.ModeGame,
		Steps: 0,
		Log:   []domain.LogEntry{domain.Background("Once upon a time.")},
	}, state)
}

func TestStoryService_CreateStory_DefaultTitle(t *testing.T) {
	svc, _ := newService(t, mocks.NewMockGenerator(t), nil)
	ctx := context.Background()

	id, err := svc.CreateStory(ctx, "   ", "")
	require.NoError(t, err)

	state, err := svc.GetStory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.UntitledStory, state.Title)
	assert.Equal(t, []domain.LogEntry{domain.Background("")}, state.Log)
}

func TestStoryService_CreateStory_PublishFailureIgnored(t *testing.T) {
	publisher := mocks.NewMockEventPublisher(t)
	svc, _ := newService(t, mocks.NewMockGenerator(t), publisher)
	publisher.On("PublishStoryEvent", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	id, err := svc.CreateStory(context.Background(), "T", "bg")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestStoryService_ListStories_SortedByTitle(t *testing.T) {
	svc, store := newService(t, mocks.NewMockGenerator(t), nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "b2", domain.NewStoryState("Beta", "")))
	require.NoError(t, store.Save(ctx, "a1", domain.NewStoryState("Alpha", "")))
	require.NoError(t, store.Save(ctx, "b1", domain.NewStoryState("Beta", "")))

	stories, err := svc.ListStories(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(stories))
	for _, s := range stories {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"a1", "b1", "b2"}, ids)
}

func TestStoryService_GetStory_Unknown(t *testing.T) {
	svc, store := newService(t, mocks.NewMockGenerator(t), nil)
	ctx := context.Background()

	state, err := svc.GetStory(ctx, "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultStoryState(), state)

	stories, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, stories, "default state must not be persisted by a read")
}

func TestStoryService_PlayTurn(t *testing.T) {
	gen := mocks.NewMockGenerator(t)
	publisher := mocks.NewMockEventPublisher(t)
	svc, _ := newService(t, gen, publisher)
	ctx := context.Background()

	publisher.On("PublishStoryEvent", mock.Anything, mock.MatchedBy(func(e messaging.StoryEvent) bool {
		return e.Type == messaging.EventStoryCreated
	})).Return(nil).Once()
	publisher.On("PublishStoryEvent", mock.Anything, mock.MatchedBy(func(e messaging.StoryEvent) bool {
		return e.Type == messaging.EventStoryAdvanced && e.Steps == 1 && !e.Ended
	})).Return(nil).Once()

	output := "The door creaks open... A) flee B) enter C) listen"
	gen.On("Generate", mock.Anything, mock.Anything).Return(output, nil).Once()

	id, err := svc.CreateStory(ctx, "T", "Once upon a time.")
	require.NoError(t, err)

	next, err := svc.PlayTurn(ctx, id, "Open the door.")
	require.NoError(t, err)

	persisted, err := svc.GetStory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, next, persisted)
	assert.Equal(t, 1, persisted.Steps)
	assert.Equal(t, []domain.LogEntry{
		domain.Background("Once upon a time."),
		domain.Choice("Open the door."),
		domain.Story(output),
	}, persisted.Log)
}

func TestStoryService_PlayTurn_GenerationFailureKeepsState(t *testing.T) {
	gen := mocks.NewMockGenerator(t)
	svc, store := newService(t, gen, nil)
	ctx := context.Background()

	before := storyAtStep(3)
	require.NoError(t, store.Save(ctx, "abc12345", before))
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("boom")).Once()

	_, err := svc.PlayTurn(ctx, "abc12345", "Jump.")
	assert.ErrorIs(t, err, domain.ErrGenerationFailure)

	after, err := store.Load(ctx, "abc12345")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStoryService_PlayTurn_ProviderHTTP500(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "internal error"}})
	}))
	t.Cleanup(server.Close)

	client, err := deepseek.NewClient(deepseek.Config{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
		Timeout: 5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)

	svc, store := newService(t, client, nil)
	ctx := context.Background()

	id, err := svc.CreateStory(ctx, "T", "Once upon a time.")
	require.NoError(t, err)
	before, err := store.Load(ctx, id)
	require.NoError(t, err)

	_, err = svc.PlayTurn(ctx, id, "Open the door.")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationFailure)

	after, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStoryService_PlayTurn_UnknownStory(t *testing.T) {
	// Генератор и издатель не должны вызываться
	svc, store := newService(t, mocks.NewMockGenerator(t), mocks.NewMockEventPublisher(t))
	ctx := context.Background()

	got, err := svc.PlayTurn(ctx, "deadbeef", "hi")
	assert.ErrorIs(t, err, domain.ErrStoryNotFound)
	assert.Equal(t, domain.DefaultStoryState(), got)

	stories, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, stories, "nothing may be persisted for an uncreated story")

	state, err := svc.GetStory(ctx, "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultStoryState(), state)
}

func TestStoryService_PlayTurn_EndedRejected(t *testing.T) {
	svc, store := newService(t, mocks.NewMockGenerator(t), nil)
	ctx := context.Background()

	ended := storyAtStep(50)
	require.NoError(t, store.Save(ctx, "e1", ended))

	_, err := svc.PlayTurn(ctx, "e1", "more")
	assert.ErrorIs(t, err, domain.ErrStoryEnded)

	after, err := store.Load(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, ended, after)
}

func TestStoryService_PlayTurn_EndingPublishesEnded(t *testing.T) {
	gen := mocks.NewMockGenerator(t)
	publisher := mocks.NewMockEventPublisher(t)
	svc, store := newService(t, gen, publisher)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s49", storyAtStep(49)))
	gen.On("Generate", mock.Anything, mock.Anything).Return("The end.", nil).Once()
	publisher.On("PublishStoryEvent", mock.Anything, mock.MatchedBy(func(e messaging.StoryEvent) bool {
		return e.Type == messaging.EventStoryAdvanced && e.Steps == 50 && e.Ended
	})).Return(nil).Once()

	next, err := svc.PlayTurn(ctx, "s49", "Finish.")
	require.NoError(t, err)
	assert.Equal(t, 50, next.Steps)
}

func TestStoryService_PlayTurn_SaveFailure(t *testing.T) {
	gen := mocks.NewMockGenerator(t)
	store := mocks.NewMockStoryStore(t)
	engine := service.NewNarrativeEngine(gen, service.EngineConfig{}, zap.NewNop())
	svc := service.NewStoryService(store, engine, nil, zap.NewNop())
	ctx := context.Background()

	state := domain.NewStoryState("T", "bg")
	ioErr := errors.Join(domain.ErrIOFailure, errors.New("disk full"))
	store.On("Load", mock.Anything, "x").Return(state, nil).Once()
	gen.On("Generate", mock.Anything, mock.Anything).Return("text", nil).Once()
	store.On("Save", mock.Anything, "x", mock.Anything).Return(ioErr).Once()

	_, err := svc.PlayTurn(ctx, "x", "go")
	assert.ErrorIs(t, err, domain.ErrIOFailure)
}

func TestStoryService_PlayTurn_SerializedPerStory(t *testing.T) {
	const turns = 10
	gen := mocks.NewMockGenerator(t)
	svc, store := newService(t, gen, nil)
	ctx := context.Background()

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	gen.On("Generate", mock.Anything, mock.Anything).Return(func(context.Context, string) string {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return "ok"
	}, nil).Times(turns)

	id, err := svc.CreateStory(ctx, "T", "bg")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlayTurn(ctx, id, "step")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, turns, state.Steps, "no turn may be lost")
	assert.Equal(t, state.Steps, state.ChoiceCount())
	assert.Equal(t, 1, maxInFlight)
	assert.True(t, strings.HasPrefix(service.HistoryText(state.Log), "bg\nstep\nok"))
}
