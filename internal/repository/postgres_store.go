package repository

import (
	"context"
	"errors"
	"fmt"

	"fiction-server/internal/domain"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	getStoryDocumentQuery = `SELECT document FROM stories WHERE id = $1`

	upsertStoryQuery = `
        INSERT INTO stories (id, title, mode, steps, document, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
        ON CONFLICT (id) DO UPDATE SET
            title = EXCLUDED.title,
            mode = EXCLUDED.mode,
            steps = EXCLUDED.steps,
            document = EXCLUDED.document,
            updated_at = NOW()
    `
	insertStoryQuery = `
        INSERT INTO stories (id, title, mode, steps, document, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
        ON CONFLICT (id) DO NOTHING
    `
	listStoriesQuery = `SELECT id, title, steps FROM stories ORDER BY updated_at DESC`
)

// DBTX - общий интерфейс для *pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ StoryStore = (*PgStoryStore)(nil)

// PgStoryStore хранит истории в таблице stories. Документ истории лежит в колонке JSONB,
// title и steps продублированы для списка.
type PgStoryStore struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgStoryStore создает PostgreSQL-хранилище историй.
func NewPgStoryStore(db DBTX, logger *zap.Logger) *PgStoryStore {
	return &PgStoryStore{
		db:     db,
		logger: logger.Named("PgStoryStore"),
	}
}

func (r *PgStoryStore) Load(ctx context.Context, id string) (domain.StoryState, error) {
	var document []byte
	err := r.db.QueryRow(ctx, getStoryDocumentQuery, id).Scan(&document)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DefaultStoryState(), nil
		}
		r.logger.Error("Failed to load story", zap.String("storyID", id), zap.Error(err))
		return domain.StoryState{}, fmt.Errorf("%w: load story %s: %v", domain.ErrIOFailure, id, err)
	}
	return domain.UnmarshalStory(document)
}

// Save выполняет один upsert, поэтому запись видна либо целиком, либо не видна вовсе.
func (r *PgStoryStore) Save(ctx context.Context, id string, state domain.StoryState) error {
	document, err := domain.MarshalStory(state)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, upsertStoryQuery, id, state.Title, state.Mode, state.Steps, document); err != nil {
		r.logger.Error("Failed to save story", zap.String("storyID", id), zap.Error(err))
		return fmt.Errorf("%w: save story %s: %v", domain.ErrIOFailure, id, err)
	}
	r.logger.Debug("Story saved", zap.String("storyID", id), zap.Int("steps", state.Steps))
	return nil
}

func (r *PgStoryStore) Create(ctx context.Context, title, background string) (string, error) {
	return createWithRetry(ctx, domain.NewStoryState(title, background), func(ctx context.Context, id string, state domain.StoryState) error {
		document, err := domain.MarshalStory(state)
		if err != nil {
			return err
		}
		tag, err := r.db.Exec(ctx, insertStoryQuery, id, state.Title, state.Mode, state.Steps, document)
		if err != nil {
			r.logger.Error("Failed to insert story", zap.String("storyID", id), zap.Error(err))
			return fmt.Errorf("%w: create story: %v", domain.ErrIOFailure, err)
		}
		if tag.RowsAffected() == 0 {
			r.logger.Warn("Story id collision, retrying", zap.String("storyID", id))
			return errIDTaken
		}
		r.logger.Info("Story created", zap.String("storyID", id))
		return nil
	})
}

func (r *PgStoryStore) List(ctx context.Context) ([]domain.StorySummary, error) {
	var summaries []domain.StorySummary
	if err := pgxscan.Select(ctx, r.db, &summaries, listStoriesQuery); err != nil {
		r.logger.Error("Failed to list stories", zap.Error(err))
		return nil, fmt.Errorf("%w: list stories: %v", domain.ErrIOFailure, err)
	}
	if summaries == nil {
		summaries = []domain.StorySummary{}
	}
	return summaries, nil
}
