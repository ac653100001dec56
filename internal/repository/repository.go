package repository

import (
	"context"
	"errors"
	"fmt"

	"fiction-server/internal/domain"

	"github.com/google/uuid"
)

// maxCreateAttempts - сколько раз пытаемся выделить свободный идентификатор при создании истории.
const maxCreateAttempts = 5

// errIDTaken возвращается реализациями, когда сгенерированный идентификатор уже занят.
var errIDTaken = errors.New("story id already taken")

// StoryStore определяет хранилище историй, ключом служит идентификатор истории.
type StoryStore interface {
	// Load возвращает сохраненное состояние истории.
	// Для неизвестного id возвращается domain.DefaultStoryState() без ошибки, и оно не сохраняется.
	Load(ctx context.Context, id string) (domain.StoryState, error)
	// Save атомарно перезаписывает состояние истории целиком.
	Save(ctx context.Context, id string, state domain.StoryState) error
	// Create выделяет новый идентификатор, сохраняет начальное состояние и возвращает id.
	Create(ctx context.Context, title, background string) (string, error)
	// List перечисляет все сохраненные истории. Порядок не определен.
	List(ctx context.Context) ([]domain.StorySummary, error)
}

// newStoryID генерирует короткий идентификатор: первые 8 hex-символов UUID v4 (32 бита энтропии).
var newStoryID = func() string {
	return uuid.NewString()[:8]
}

// createWithRetry повторяет insert, пока не найдется свободный идентификатор.
func createWithRetry(ctx context.Context, state domain.StoryState, insert func(ctx context.Context, id string, state domain.StoryState) error) (string, error) {
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		id := newStoryID()
		err := insert(ctx, id, state)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, errIDTaken) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: could not allocate story id after %d attempts", domain.ErrIOFailure, maxCreateAttempts)
}

// summaryOf строит элемент списка по состоянию истории.
func summaryOf(id string, state domain.StoryState) domain.StorySummary {
	return domain.StorySummary{ID: id, Title: state.Title, Steps: state.Steps}
}
