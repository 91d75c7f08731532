package gateway

import (
	"encoding/json"
	"fmt"
	"log"

	"feed-server/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer отвечает за получение событий вовлеченности из RabbitMQ
// и их раздачу подписчикам через Hub.
type Consumer struct {
	conn        *amqp.Connection
	hub         *Hub
	queueName   string
	stopChannel chan struct{} // Канал для остановки консьюмера
}

// NewConsumer создает нового консьюмера RabbitMQ.
func NewConsumer(conn *amqp.Connection, hub *Hub, queueName string) (*Consumer, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	if hub == nil {
		return nil, fmt.Errorf("hub is nil")
	}
	return &Consumer{
		conn:        conn,
		hub:         hub,
		queueName:   queueName,
		stopChannel: make(chan struct{}),
	}, nil
}

// StartConsuming начинает прослушивание очереди событий вовлеченности.
// Эта функция блокирующая, поэтому ее следует запускать в отдельной горутине.
func (c *Consumer) StartConsuming() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("не удалось открыть канал RabbitMQ: %w", err)
	}
	defer ch.Close()

	// Объявляем очередь (на случай, если она еще не создана engagement-api)
	// Важно: параметры должны совпадать с теми, что у publisher'а (особенно durable=true)
	q, err := ch.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("не удалось объявить очередь '%s': %w", c.queueName, err)
	}
	log.Printf("Очередь событий '%s' успешно объявлена/найдена", q.Name)

	// Устанавливаем QoS (prefetch count = 1), чтобы обрабатывать по одному сообщению за раз
	err = ch.Qos(1, 0, false)
	if err != nil {
		return fmt.Errorf("не удалось установить QoS: %w", err)
	}
	log.Println("QoS (prefetch count=1) установлен для консьюмера")

	msgs, err := ch.Consume(
		q.Name,
		"gateway-consumer", // consumer tag
		false,              // auto-ack (false, т.к. будем подтверждать вручную)
		false,              // exclusive
		false,              // no-local (не поддерживается RabbitMQ)
		false,              // no-wait
		nil,                // args
	)
	if err != nil {
		return fmt.Errorf("не удалось зарегистрировать консьюмера: %w", err)
	}

	log.Printf("Консьюмер запущен, ожидание событий из очереди '%s'...", q.Name)

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				log.Println("Канал сообщений RabbitMQ закрыт")
				return nil // Нормальное завершение, если канал закрыт
			}

			var payload models.EngagementEventPayload
			if err := json.Unmarshal(d.Body, &payload); err != nil {
				log.Printf("Ошибка десериализации события (DeliveryTag: %d): %v. Nack.", d.DeliveryTag, err)
				eventsConsumedTotal.WithLabelValues("malformed").Inc()
				_ = d.Nack(false, false)
				continue
			}

			// Проверяем обязательные поля; события без корректного post_id бесполезны
			update, err := payload.Validate()
			if err != nil {
				log.Printf("Невалидное событие вовлеченности (DeliveryTag: %d): %v. Nack.", d.DeliveryTag, err)
				eventsConsumedTotal.WithLabelValues("malformed").Inc()
				_ = d.Nack(false, false)
				continue
			}

			delivered := c.hub.Fanout(update.PostID, payload)
			eventsConsumedTotal.WithLabelValues("ok").Inc()
			log.Printf("Событие post_id=%s revision=%d доставлено в %d подписок", update.PostID, update.Revision, delivered)
			_ = d.Ack(false)

		case <-c.stopChannel:
			log.Println("Получен сигнал остановки консьюмера RabbitMQ")
			return nil
		}
	}
}

// Stop останавливает консьюмер.
func (c *Consumer) Stop() {
	log.Println("Остановка консьюмера RabbitMQ...")
	close(c.stopChannel)
}
