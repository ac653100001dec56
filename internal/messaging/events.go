package messaging

import (
	"context"
	"time"
)

// EventType - тип события истории.
type EventType string

const (
	EventStoryCreated  EventType = "story.created"
	EventStoryAdvanced EventType = "story.advanced"
)

// StoryEvent публикуется после создания истории и после каждого успешного хода.
type StoryEvent struct {
	Type      EventType `json:"type"`
	StoryID   string    `json:"story_id"`
	Title     string    `json:"title"`
	Steps     int       `json:"steps"`
	Ended     bool      `json:"ended"`
	Timestamp time.Time `json:"timestamp"`
}

// EventPublisher публикует события историй.
type EventPublisher interface {
	PublishStoryEvent(ctx context.Context, event StoryEvent) error
}

// NoopPublisher используется, когда брокер не настроен.
type NoopPublisher struct{}

func (NoopPublisher) PublishStoryEvent(context.Context, StoryEvent) error { return nil }
