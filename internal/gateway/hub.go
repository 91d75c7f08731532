package gateway

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"feed-server/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DefaultMaxIDsPerSubscription ограничивает размер одной подписки.
// Клиенты с большим видимым набором обязаны разбивать его на несколько подписок.
const DefaultMaxIDsPerSubscription = 100

// Client представляет собой одно WebSocket соединение с его подписками.
type Client struct {
	UserID uint64
	Conn   *websocket.Conn
	send   chan []byte // Канал для отправки кадров этому клиенту

	// Карта subscriptionID -> набор постов. Защищена мьютексом хаба.
	subscriptions map[string]map[uuid.UUID]struct{}
}

// NewClient создает клиента с буферизованным каналом отправки.
func NewClient(userID uint64, conn *websocket.Conn, sendBufferSize int) *Client {
	if sendBufferSize <= 0 {
		sendBufferSize = 32
	}
	return &Client{
		UserID:        userID,
		Conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		subscriptions: make(map[string]map[uuid.UUID]struct{}),
	}
}

// Hub управляет активными WebSocket соединениями и их подписками
// и раздает события вовлеченности по фильтрам подписок.
type Hub struct {
	maxIDsPerSubscription int

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub создает менеджер соединений.
func NewHub(maxIDsPerSubscription int) *Hub {
	if maxIDsPerSubscription <= 0 {
		maxIDsPerSubscription = DefaultMaxIDsPerSubscription
	}
	return &Hub{
		maxIDsPerSubscription: maxIDsPerSubscription,
		clients:               make(map[*Client]struct{}),
	}
}

// Register регистрирует нового клиента.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	log.Printf("Регистрация клиента: UserID=%d", client.UserID)
}

// Unregister удаляет клиента и закрывает его канал отправки.
// Повторный вызов для уже удаленного клиента безопасен.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		activeSubscriptions.Sub(float64(len(client.subscriptions)))
		client.subscriptions = make(map[string]map[uuid.UUID]struct{})
		close(client.send)
	}
	h.mu.Unlock()
	if ok {
		log.Printf("Дерегистрация клиента: UserID=%d", client.UserID)
	}
}

// Subscribe открывает или заменяет подписку клиента на набор постов.
// Возвращает ошибку, если набор превышает допустимый размер.
func (h *Hub) Subscribe(client *Client, subscriptionID string, postIDs []uuid.UUID) error {
	if subscriptionID == "" {
		return fmt.Errorf("subscription_id is required")
	}
	if len(postIDs) > h.maxIDsPerSubscription {
		return fmt.Errorf("too many post ids in subscription: %d > %d", len(postIDs), h.maxIDsPerSubscription)
	}

	filter := make(map[uuid.UUID]struct{}, len(postIDs))
	for _, id := range postIDs {
		if id != uuid.Nil {
			filter[id] = struct{}{}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return fmt.Errorf("client is not registered")
	}
	if _, exists := client.subscriptions[subscriptionID]; !exists {
		activeSubscriptions.Inc()
	}
	client.subscriptions[subscriptionID] = filter
	log.Printf("Подписка %s клиента UserID=%d: %d постов", subscriptionID, client.UserID, len(filter))
	return nil
}

// Unsubscribe закрывает подписку клиента. Отсутствующая подписка игнорируется.
func (h *Hub) Unsubscribe(client *Client, subscriptionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := client.subscriptions[subscriptionID]; exists {
		delete(client.subscriptions, subscriptionID)
		activeSubscriptions.Dec()
		log.Printf("Подписка %s клиента UserID=%d закрыта", subscriptionID, client.UserID)
	}
}

// Fanout рассылает событие всем подпискам, чей фильтр содержит пост.
// Клиенты с переполненным каналом отправки отключаются. Возвращает число
// кадров, поставленных в очереди клиентов.
func (h *Hub) Fanout(postID uuid.UUID, payload models.EngagementEventPayload) int {
	delivered := 0
	var slow []*Client

	h.mu.RLock()
	for client := range h.clients {
		for subscriptionID, filter := range client.subscriptions {
			if _, ok := filter[postID]; !ok {
				continue
			}

			frame := ServerFrame{
				Type:           FrameTypeEngagement,
				SubscriptionID: subscriptionID,
				Payload:        &payload,
			}
			data, err := json.Marshal(frame)
			if err != nil {
				log.Printf("Не удалось сериализовать кадр события для подписки %s: %v", subscriptionID, err)
				continue
			}

			select {
			case client.send <- data:
				delivered++
			default:
				// Канал переполнен, клиент не успевает читать
				log.Printf("Очередь отправки UserID=%d переполнена, клиент будет отключен", client.UserID)
				slow = append(slow, client)
			}
			if len(slow) > 0 && slow[len(slow)-1] == client {
				break // остальные подписки этого клиента не рассматриваем
			}
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		clientsDroppedTotal.Inc()
		h.Unregister(client)
		if client.Conn != nil {
			_ = client.Conn.Close()
		}
	}

	return delivered
}

// Enqueue кладет кадр в очередь отправки клиента.
// Возвращает false, если очередь переполнена.
func (h *Hub) Enqueue(client *Client, frame ServerFrame) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("Не удалось сериализовать кадр %s: %v", frame.Type, err)
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client]; !ok {
		return false
	}
	select {
	case client.send <- data:
		return true
	default:
		log.Printf("Очередь отправки UserID=%d переполнена, кадр %s отброшен", client.UserID, frame.Type)
		return false
	}
}

// ClientCount возвращает число активных соединений.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
