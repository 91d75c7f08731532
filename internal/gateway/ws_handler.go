package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"feed-server/internal/authutils"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	// Время, разрешенное для записи сообщения клиенту.
	writeWait = 10 * time.Second
	// Время, разрешенное для чтения следующего pong сообщения от клиента.
	pongWait = 60 * time.Second
	// Отправлять пинги клиенту с этим периодом. Должно быть меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Максимальный размер сообщения, разрешенный от клиента.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Проверяем origin запроса (в продакшене здесь должна быть проверка)
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler обрабатывает запросы на установку WebSocket соединения
// и ведет клиентский протокол подписок.
type WebSocketHandler struct {
	hub            *Hub
	verifier       *authutils.JWTVerifier
	sendBufferSize int
	logger         zerolog.Logger
}

// NewWebSocketHandler создает новый обработчик WebSocket.
func NewWebSocketHandler(hub *Hub, verifier *authutils.JWTVerifier, sendBufferSize int, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		verifier:       verifier,
		sendBufferSize: sendBufferSize,
		logger:         logger.With().Str("component", "WebSocketHandler").Logger(),
	}
}

// Handle обрабатывает входящий HTTP запрос для WebSocket.
func (h *WebSocketHandler) Handle(c echo.Context) error {
	r := c.Request()

	// Извлекаем токен из query-параметра 'token'
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		h.logger.Warn().Msg("Missing 'token' query parameter")
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized: Missing token")
	}

	// Валидируем токен и извлекаем UserID
	claims, err := h.verifier.VerifyToken(r.Context(), tokenString)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Invalid token")
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized: Invalid token")
	}

	// Обновляем соединение до WebSocket
	conn, err := upgrader.Upgrade(c.Response(), r, nil)
	if err != nil {
		h.logger.Error().Err(err).Uint64("userID", claims.UserID).Msg("Failed to upgrade connection")
		// Не пишем ошибку в ответ, так как upgrader уже это сделал
		return nil
	}

	h.logger.Info().Uint64("userID", claims.UserID).Msg("WebSocket connection established")

	client := NewClient(claims.UserID, conn, h.sendBufferSize)
	h.hub.Register(client)
	activeConnections.Inc()

	clientLogger := h.logger.With().Uint64("userID", claims.UserID).Logger()

	// Запускаем горутины для чтения и записи в этом соединении
	go client.writePump(clientLogger)
	go h.readPump(client, clientLogger)
	return nil
}

// readPump откачивает кадры от WebSocket соединения и ведет подписки клиента.
func (h *WebSocketHandler) readPump(client *Client, logger zerolog.Logger) {
	conn := client.Conn
	defer func() {
		h.hub.Unregister(client)
		_ = conn.Close() // Закрываем соединение при выходе из readPump
		activeConnections.Dec()
		logger.Info().Msg("readPump finished")
	}()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		logger.Debug().Msg("Pong received")
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket read error")
			} else {
				logger.Info().Msg("WebSocket connection closed (expected)")
			}
			break
		}

		var frame ClientFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			logger.Warn().Err(err).Bytes("message", message).Msg("Malformed client frame")
			h.hub.Enqueue(client, ServerFrame{Type: FrameTypeError, Error: "malformed frame"})
			continue
		}

		switch frame.Type {
		case FrameTypeSubscribe:
			if err := h.hub.Subscribe(client, frame.SubscriptionID, frame.PostIDs); err != nil {
				logger.Warn().Err(err).Str("subscriptionID", frame.SubscriptionID).Msg("Subscribe rejected")
				h.hub.Enqueue(client, ServerFrame{
					Type:           FrameTypeError,
					SubscriptionID: frame.SubscriptionID,
					Error:          err.Error(),
				})
				continue
			}
			logger.Debug().Str("subscriptionID", frame.SubscriptionID).Int("postIDs", len(frame.PostIDs)).Msg("Subscribed")
			h.hub.Enqueue(client, ServerFrame{Type: FrameTypeSubscribed, SubscriptionID: frame.SubscriptionID})

		case FrameTypeUnsubscribe:
			h.hub.Unsubscribe(client, frame.SubscriptionID)
			logger.Debug().Str("subscriptionID", frame.SubscriptionID).Msg("Unsubscribed")

		default:
			logger.Warn().Str("type", frame.Type).Msg("Received unexpected frame type from client (ignored)")
		}
	}
}

// writePump откачивает кадры из канала send в WebSocket соединение.
func (c *Client) writePump(logger zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		logger.Info().Msg("writePump finished")
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				logger.Info().Msg("Send channel closed, sending CloseMessage")
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			logger.Debug().Int("messageSize", len(message)).Msg("Sending frame")
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Error().Err(err).Msg("Failed to write frame")
				return
			}
			framesSentTotal.Inc()

		case <-ticker.C:
			logger.Debug().Msg("Sending ping")
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn().Err(err).Msg("Failed to send ping")
				return
			}
		}
	}
}
