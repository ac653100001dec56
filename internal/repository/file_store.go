package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"fiction-server/internal/domain"

	"go.uber.org/zap"
)

const (
	storyFileExt = ".json"
	// storyFileMode - права файла истории после переименования (CreateTemp создает 0600).
	storyFileMode = 0o644
)

var _ StoryStore = (*FileStore)(nil)

// FileStore хранит каждую историю в отдельном JSON-файле <dir>/<id>.json.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore создает хранилище и при необходимости саму директорию.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create story dir %s: %v", domain.ErrIOFailure, dir, err)
	}
	return &FileStore{
		dir:    dir,
		logger: logger.Named("FileStoryStore"),
	}, nil
}

// validID не допускает выхода за пределы директории хранилища.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+storyFileExt)
}

func (s *FileStore) Load(_ context.Context, id string) (domain.StoryState, error) {
	if !validID(id) {
		return domain.DefaultStoryState(), nil
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.DefaultStoryState(), nil
		}
		s.logger.Error("Failed to read story file", zap.String("storyID", id), zap.Error(err))
		return domain.StoryState{}, fmt.Errorf("%w: read story %s: %v", domain.ErrIOFailure, id, err)
	}
	return domain.UnmarshalStory(data)
}

// Save пишет документ во временный файл рядом с целевым и переименовывает его,
// так что читатель видит либо старую, либо новую версию целиком.
func (s *FileStore) Save(_ context.Context, id string, state domain.StoryState) error {
	if !validID(id) {
		return fmt.Errorf("%w: invalid story id %q", domain.ErrInvalidInput, id)
	}
	data, err := domain.MarshalStory(state)
	if err != nil {
		return err
	}
	if err := s.writeAtomic(s.path(id), data); err != nil {
		s.logger.Error("Failed to write story file", zap.String("storyID", id), zap.Error(err))
		return fmt.Errorf("%w: write story %s: %v", domain.ErrIOFailure, id, err)
	}
	s.logger.Debug("Story saved", zap.String("storyID", id), zap.Int("steps", state.Steps))
	return nil
}

// writeTemp пишет данные во временный файл в директории хранилища и возвращает его имя.
func (s *FileStore) writeTemp(data []byte) (string, error) {
	tmp, err := os.CreateTemp(s.dir, ".story-*.tmp")
	if err != nil {
		return "", err
	}
	if err := tmp.Chmod(storyFileMode); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (s *FileStore) writeAtomic(target string, data []byte) error {
	tmpName, err := s.writeTemp(data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *FileStore) Create(ctx context.Context, title, background string) (string, error) {
	return createWithRetry(ctx, domain.NewStoryState(title, background), func(_ context.Context, id string, state domain.StoryState) error {
		data, err := domain.MarshalStory(state)
		if err != nil {
			return err
		}
		tmpName, err := s.writeTemp(data)
		if err != nil {
			return fmt.Errorf("%w: write story %s: %v", domain.ErrIOFailure, id, err)
		}
		defer os.Remove(tmpName)

		// Link не перезаписывает существующий файл, поэтому занятый id не теряет данные.
		if err := os.Link(tmpName, s.path(id)); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return errIDTaken
			}
			return fmt.Errorf("%w: create story %s: %v", domain.ErrIOFailure, id, err)
		}
		s.logger.Info("Story created", zap.String("storyID", id))
		return nil
	})
}

func (s *FileStore) List(ctx context.Context) ([]domain.StorySummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list story dir: %v", domain.ErrIOFailure, err)
	}

	summaries := make([]domain.StorySummary, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, storyFileExt) {
			continue
		}
		id := strings.TrimSuffix(name, storyFileExt)
		state, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summaryOf(id, state))
	}
	return summaries, nil
}
