package domain

import (
	"encoding/json"
	"fmt"
)

// DefaultStepLimit - количество принятых выборов, после которого история считается завершенной.
const DefaultStepLimit = 50

// ModeGame - единственный поддерживаемый тип истории.
const ModeGame = "game"

// UntitledStory отображается вместо пустого заголовка.
const UntitledStory = "Untitled"

// EntryKind определяет тип записи в журнале истории.
type EntryKind string

const (
	EntryBackground EntryKind = "background" // Исходная завязка, ровно одна на историю
	EntryChoice     EntryKind = "choice"     // Выбор пользователя
	EntryStory      EntryKind = "story"      // Текст, сгенерированный провайдером
)

// Valid сообщает, является ли тип записи известным.
func (k EntryKind) Valid() bool {
	switch k {
	case EntryBackground, EntryChoice, EntryStory:
		return true
	}
	return false
}

// LogEntry - одна запись журнала истории.
type LogEntry struct {
	Kind EntryKind `json:"type"`
	Text string    `json:"text"`
}

// Background создает запись с завязкой истории.
func Background(text string) LogEntry { return LogEntry{Kind: EntryBackground, Text: text} }

// Choice создает запись с выбором пользователя.
func Choice(text string) LogEntry { return LogEntry{Kind: EntryChoice, Text: text} }

// Story создает запись со сгенерированным текстом.
func Story(text string) LogEntry { return LogEntry{Kind: EntryStory, Text: text} }

// UnmarshalJSON отклоняет записи с неизвестным типом.
func (e *LogEntry) UnmarshalJSON(data []byte) error {
	type rawEntry LogEntry
	var raw rawEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !raw.Kind.Valid() {
		return fmt.Errorf("unknown log entry type %q", raw.Kind)
	}
	*e = LogEntry(raw)
	return nil
}

// StoryState - полное состояние одной истории.
// Журнал только дополняется, Steps всегда равен числу записей EntryChoice.
type StoryState struct {
	Title string
	Mode  string
	Steps int
	Log   []LogEntry
}

// NewStoryState строит начальное состояние только что созданной истории.
func NewStoryState(title, background string) StoryState {
	return StoryState{
		Title: title,
		Mode:  ModeGame,
		Steps: 0,
		Log:   []LogEntry{Background(background)},
	}
}

// DefaultStoryState возвращается хранилищем для несуществующего идентификатора.
func DefaultStoryState() StoryState {
	return StoryState{Mode: ModeGame, Log: []LogEntry{}}
}

// Clone возвращает копию состояния с независимым журналом.
func (s StoryState) Clone() StoryState {
	out := s
	out.Log = make([]LogEntry, len(s.Log))
	copy(out.Log, s.Log)
	return out
}

// Normalize приводит состояние к каноничному виду хранилища: пустой mode
// становится ModeGame, nil-журнал - пустым срезом. Все состояния, которые строит
// сам сервер, уже нормализованы.
func (s StoryState) Normalize() StoryState {
	if s.Mode == "" {
		s.Mode = ModeGame
	}
	if s.Log == nil {
		s.Log = []LogEntry{}
	}
	return s
}

// Created сообщает, что состояние было создано через NewStoryState: журнал начинается с Background.
// Состояние по умолчанию для неизвестного id не создано.
func (s StoryState) Created() bool {
	return len(s.Log) > 0 && s.Log[0].Kind == EntryBackground
}

// ChoiceCount считает записи EntryChoice в журнале.
func (s StoryState) ChoiceCount() int {
	n := 0
	for _, e := range s.Log {
		if e.Kind == EntryChoice {
			n++
		}
	}
	return n
}

// DisplayTitle возвращает заголовок для отображения.
func (s StoryState) DisplayTitle() string {
	if s.Title == "" {
		return UntitledStory
	}
	return s.Title
}

// StorySummary - краткая информация для списка историй.
type StorySummary struct {
	ID    string `json:"id" db:"id"`
	Title string `json:"title" db:"title"`
	Steps int    `json:"steps" db:"steps"`
}
