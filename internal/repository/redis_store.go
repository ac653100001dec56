package repository

import (
	"context"
	"errors"
	"fmt"

	"fiction-server/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	storyKeyPrefix = "story:"
	storyIndexKey  = "stories:index"
)

var _ StoryStore = (*RedisStoryStore)(nil)

// RedisStoryStore хранит документ истории под ключом story:{id},
// а множество stories:index содержит все идентификаторы для List.
type RedisStoryStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStoryStore создает Redis-хранилище историй.
func NewRedisStoryStore(client *redis.Client, logger *zap.Logger) *RedisStoryStore {
	return &RedisStoryStore{
		client: client,
		logger: logger.Named("RedisStoryStore"),
	}
}

func storyKey(id string) string {
	return storyKeyPrefix + id
}

func (r *RedisStoryStore) Load(ctx context.Context, id string) (domain.StoryState, error) {
	data, err := r.client.Get(ctx, storyKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.DefaultStoryState(), nil
		}
		r.logger.Error("Failed to load story from redis", zap.String("storyID", id), zap.Error(err))
		return domain.StoryState{}, fmt.Errorf("%w: load story %s: %v", domain.ErrIOFailure, id, err)
	}
	return domain.UnmarshalStory(data)
}

// Save пишет документ и индекс в одной транзакции MULTI/EXEC.
func (r *RedisStoryStore) Save(ctx context.Context, id string, state domain.StoryState) error {
	data, err := domain.MarshalStory(state)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, storyKey(id), data, 0)
	pipe.SAdd(ctx, storyIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to save story to redis", zap.String("storyID", id), zap.Error(err))
		return fmt.Errorf("%w: save story %s: %v", domain.ErrIOFailure, id, err)
	}
	return nil
}

func (r *RedisStoryStore) Create(ctx context.Context, title, background string) (string, error) {
	return createWithRetry(ctx, domain.NewStoryState(title, background), func(ctx context.Context, id string, state domain.StoryState) error {
		data, err := domain.MarshalStory(state)
		if err != nil {
			return err
		}
		created, err := r.client.SetNX(ctx, storyKey(id), data, 0).Result()
		if err != nil {
			r.logger.Error("Failed to create story in redis", zap.String("storyID", id), zap.Error(err))
			return fmt.Errorf("%w: create story: %v", domain.ErrIOFailure, err)
		}
		if !created {
			return errIDTaken
		}
		if err := r.client.SAdd(ctx, storyIndexKey, id).Err(); err != nil {
			return fmt.Errorf("%w: index story %s: %v", domain.ErrIOFailure, id, err)
		}
		r.logger.Info("Story created", zap.String("storyID", id))
		return nil
	})
}

func (r *RedisStoryStore) List(ctx context.Context) ([]domain.StorySummary, error) {
	ids, err := r.client.SMembers(ctx, storyIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list story ids: %v", domain.ErrIOFailure, err)
	}
	summaries := make([]domain.StorySummary, 0, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = storyKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: load stories: %v", domain.ErrIOFailure, err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// ключ истории исчез, а индекс остался
			r.logger.Warn("Story indexed but missing", zap.String("storyID", ids[i]))
			continue
		}
		state, err := domain.UnmarshalStory([]byte(raw))
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summaryOf(ids[i], state))
	}
	return summaries, nil
}
