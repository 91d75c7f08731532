package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"feed-server/internal/models"
)

// DefaultEngagementQueue - очередь, в которую API публикует события счетчиков.
const DefaultEngagementQueue = "engagement_events"

// EngagementEventPublisher defines the interface for publishing engagement counter updates.
type EngagementEventPublisher interface {
	PublishEngagementEvent(ctx context.Context, payload models.EngagementEventPayload) error
}

// rabbitMQPublisher implements the EngagementEventPublisher interface for RabbitMQ.
type rabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
}

// NewRabbitMQEngagementEventPublisher creates a new instance of EngagementEventPublisher.
// Паблишер объявляет очередь сам, чтобы система не зависела от порядка запуска
// сервисов. Параметры очереди должны совпадать с параметрами у консьюмера.
func NewRabbitMQEngagementEventPublisher(conn *amqp.Connection, queueName string) (EngagementEventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("engagement event publisher: не удалось открыть канал: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		log.Printf("EngagementEventPublisher ERROR: Не удалось объявить очередь '%s': %v", queueName, err)
		ch.Close()
		return nil, fmt.Errorf("engagement event publisher: не удалось объявить очередь '%s': %w", queueName, err)
	}

	log.Printf("EngagementEventPublisher: Очередь '%s' успешно объявлена/найдена.", queueName)
	return &rabbitMQPublisher{channel: ch, queueName: queueName}, nil
}

// PublishEngagementEvent publishes a counter update event for a post.
func (p *rabbitMQPublisher) PublishEngagementEvent(ctx context.Context, payload models.EngagementEventPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[PostID: %s] Ошибка сериализации EngagementEventPayload: %v", payload.PostID, err)
		return fmt.Errorf("ошибка сериализации события счетчиков для поста %s: %w", payload.PostID, err)
	}

	if err := p.publishMessage(ctx, body); err != nil {
		log.Printf("[PostID: %s] Ошибка публикации EngagementEvent: %v", payload.PostID, err)
		return fmt.Errorf("ошибка публикации события счетчиков для поста %s: %w", payload.PostID, err)
	}
	return nil
}

// publishMessage is a helper method for publishing a message.
func (p *rabbitMQPublisher) publishMessage(ctx context.Context, body []byte) error {
	if p.channel == nil {
		log.Println("Ошибка публикации: канал RabbitMQ не инициализирован (nil)")
		return errors.New("канал RabbitMQ не инициализирован")
	}
	// Устанавливаем таймаут на публикацию
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	// Попытка публикации с retry до 3 раз
	for attempt := 1; attempt <= 3; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // exchange (используем default)
			p.queueName, // routing key (имя очереди)
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        "engagement-api", // Идентификатор отправителя
			},
		)
		if err == nil {
			break
		}
		log.Printf("Ошибка публикации (attempt %d) в очередь '%s': %v", attempt, p.queueName, err)
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("ошибка публикации в очередь %s после retries: %w", p.queueName, err)
	}
	return nil
}
