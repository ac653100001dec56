package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ExchangeStoryEvents - fanout exchange для событий историй.
const ExchangeStoryEvents = "story_events"

var _ EventPublisher = (*RabbitMQPublisher)(nil)

// RabbitMQPublisher публикует StoryEvent в fanout exchange.
// Соединение принадлежит вызывающему коду.
type RabbitMQPublisher struct {
	ch     *amqp.Channel
	logger *zap.Logger
}

// NewRabbitMQPublisher открывает канал и объявляет durable exchange.
func NewRabbitMQPublisher(conn *amqp.Connection, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	log := logger.Named("StoryEventPublisher")

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeStoryEvents, // name
		"fanout",            // type
		true,                // durable
		false,               // auto-deleted
		false,               // internal
		false,               // no-wait
		nil,                 // arguments
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", ExchangeStoryEvents, err)
	}

	log.Info("Story events exchange declared", zap.String("exchange", ExchangeStoryEvents))
	return &RabbitMQPublisher{ch: ch, logger: log}, nil
}

// PublishStoryEvent сериализует событие в JSON и публикует его.
func (p *RabbitMQPublisher) PublishStoryEvent(ctx context.Context, event StoryEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal story event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		ExchangeStoryEvents, // exchange
		"",                  // routing key не используется для fanout
		false,               // mandatory
		false,               // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Type:         string(event.Type),
			Timestamp:    event.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish story event", zap.String("storyID", event.StoryID), zap.Error(err))
		return fmt.Errorf("failed to publish story event: %w", err)
	}

	p.logger.Debug("Story event published", zap.String("type", string(event.Type)), zap.String("storyID", event.StoryID))
	return nil
}

// Close закрывает канал RabbitMQ.
func (p *RabbitMQPublisher) Close() error {
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}

// Connect подключается к RabbitMQ с повторными попытками.
func Connect(uri string, maxRetries int, retryDelay time.Duration, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(uri)
		if err == nil {
			logger.Info("Подключение к RabbitMQ успешно установлено")
			go func() {
				closeErr := <-conn.NotifyClose(make(chan *amqp.Error, 1))
				if closeErr != nil {
					logger.Error("Соединение с RabbitMQ разорвано", zap.Error(closeErr))
				}
			}()
			return conn, nil
		}
		logger.Warn("Не удалось подключиться к RabbitMQ, попытка переподключения...",
			zap.Error(err),
			zap.Int("retry", i+1),
			zap.Duration("delay", retryDelay),
		)
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("не удалось подключиться к RabbitMQ после %d попыток: %w", maxRetries, err)
}
