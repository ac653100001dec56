package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"fiction-server/internal/domain"
	"fiction-server/internal/messaging"
	"fiction-server/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	storyTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiction_story_turns_total",
			Help: "Total number of play turns by outcome.",
		},
		[]string{"outcome"}, // advanced, ended, generation_failed, rejected, not_found, io_failed
	)
	storiesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fiction_stories_created_total",
			Help: "Total number of created stories.",
		},
	)
)

// StoryService связывает хранилище, движок и публикацию событий.
// Ход по одной истории выполняется под блокировкой ее идентификатора.
type StoryService struct {
	store     repository.StoryStore
	engine    *NarrativeEngine
	publisher messaging.EventPublisher
	locks     *keyedMutex
	logger    *zap.Logger
}

// NewStoryService создает сервис. publisher может быть nil, тогда события не публикуются.
func NewStoryService(store repository.StoryStore, engine *NarrativeEngine, publisher messaging.EventPublisher, logger *zap.Logger) *StoryService {
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	return &StoryService{
		store:     store,
		engine:    engine,
		publisher: publisher,
		locks:     newKeyedMutex(),
		logger:    logger.Named("StoryService"),
	}
}

// Engine возвращает движок истории.
func (s *StoryService) Engine() *NarrativeEngine {
	return s.engine
}

// CreateStory создает историю. Пустое название заменяется на domain.UntitledStory.
func (s *StoryService) CreateStory(ctx context.Context, title, background string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.UntitledStory
	}

	id, err := s.store.Create(ctx, title, background)
	if err != nil {
		s.logger.Error("Failed to create story", zap.String("title", title), zap.Error(err))
		return "", err
	}
	storiesCreatedTotal.Inc()
	s.logger.Info("Story created", zap.String("storyID", id), zap.String("title", title))

	s.publish(ctx, messaging.StoryEvent{
		Type:    messaging.EventStoryCreated,
		StoryID: id,
		Title:   title,
	})
	return id, nil
}

// ListStories возвращает истории, отсортированные по названию, затем по id.
func (s *StoryService) ListStories(ctx context.Context) ([]domain.StorySummary, error) {
	stories, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list stories", zap.Error(err))
		return nil, err
	}
	sort.Slice(stories, func(i, j int) bool {
		if stories[i].Title != stories[j].Title {
			return stories[i].Title < stories[j].Title
		}
		return stories[i].ID < stories[j].ID
	})
	return stories, nil
}

// GetStory загружает историю. Для неизвестного id возвращается состояние по умолчанию.
func (s *StoryService) GetStory(ctx context.Context, id string) (domain.StoryState, error) {
	return s.store.Load(ctx, id)
}

// PlayTurn выполняет один ход: загрузка, продвижение, сохранение.
// При ошибке состояние в хранилище не изменяется. Для несозданной истории
// возвращается domain.ErrStoryNotFound.
func (s *StoryService) PlayTurn(ctx context.Context, id, choice string) (domain.StoryState, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	log := s.logger.With(zap.String("storyID", id))

	state, err := s.store.Load(ctx, id)
	if err != nil {
		storyTurnsTotal.WithLabelValues("io_failed").Inc()
		log.Error("Failed to load story", zap.Error(err))
		return domain.StoryState{}, err
	}
	// Неизвестный id загружается как состояние по умолчанию без Background, такой ход не сохраняем
	if !state.Created() {
		storyTurnsTotal.WithLabelValues("not_found").Inc()
		log.Info("Turn rejected: story was never created")
		return state, fmt.Errorf("%w: %s", domain.ErrStoryNotFound, id)
	}

	next, err := s.engine.Advance(ctx, state, choice)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrStoryEnded):
			storyTurnsTotal.WithLabelValues("rejected").Inc()
		default:
			storyTurnsTotal.WithLabelValues("generation_failed").Inc()
		}
		return state, err
	}

	if err := s.store.Save(ctx, id, next); err != nil {
		storyTurnsTotal.WithLabelValues("io_failed").Inc()
		log.Error("Failed to save story", zap.Error(err))
		return state, err
	}

	ended := s.engine.Phase(next) == domain.PhaseEnded
	if ended {
		storyTurnsTotal.WithLabelValues("ended").Inc()
	} else {
		storyTurnsTotal.WithLabelValues("advanced").Inc()
	}

	s.publish(ctx, messaging.StoryEvent{
		Type:    messaging.EventStoryAdvanced,
		StoryID: id,
		Title:   next.Title,
		Steps:   next.Steps,
		Ended:   ended,
	})
	return next, nil
}

// publish отправляет событие. Ошибка публикации только логируется.
func (s *StoryService) publish(ctx context.Context, event messaging.StoryEvent) {
	event.Timestamp = time.Now().UTC()
	if err := s.publisher.PublishStoryEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish story event",
			zap.String("type", string(event.Type)),
			zap.String("storyID", event.StoryID),
			zap.Error(err),
		)
	}
}
