package domain

import (
	"encoding/json"
	"fmt"
)

// storyRecord - формат хранимого документа истории.
// Поле history зарезервировано и всегда пишется пустым массивом.
type storyRecord struct {
	Title   string            `json:"title"`
	Mode    string            `json:"mode"`
	Steps   int               `json:"steps"`
	History []json.RawMessage `json:"history"`
	Log     []LogEntry        `json:"log"`
}

// MarshalStory кодирует состояние в документ хранилища.
// Пишется нормализованное состояние (см. StoryState.Normalize), поэтому
// UnmarshalStory(MarshalStory(x)) == x.Normalize().
func MarshalStory(s StoryState) ([]byte, error) {
	s = s.Normalize()
	rec := storyRecord{
		Title:   s.Title,
		Mode:    s.Mode,
		Steps:   s.Steps,
		History: []json.RawMessage{},
		Log:     s.Log,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode story: %v", ErrIOFailure, err)
	}
	return data, nil
}

// UnmarshalStory декодирует документ хранилища.
func UnmarshalStory(data []byte) (StoryState, error) {
	var rec storyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return StoryState{}, fmt.Errorf("%w: decode story: %v", ErrIOFailure, err)
	}
	// Старые документы могут не содержать mode
	return StoryState{
		Title: rec.Title,
		Mode:  rec.Mode,
		Steps: rec.Steps,
		Log:   rec.Log,
	}.Normalize(), nil
}
