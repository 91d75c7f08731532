package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"feed-server/internal/gateway"
	"feed-server/internal/models"
	"feed-server/internal/realtime"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ realtime.Transport = (*WSRealtimeClient)(nil)

const (
	// Время на рукопожатие, запись кадра и ожидание подтверждения подписки.
	wsWriteWait  = 10 * time.Second
	wsAckTimeout = 10 * time.Second

	// Шлюз пингует каждые ~54 секунды, молчание дольше таймаута
	// означает мертвое соединение.
	wsReadIdleTimeout = 90 * time.Second

	// Буфер входящих событий одной подписки.
	wsEventBufferSize = 16
)

// WSRealtimeClient открывает подписки реального времени через WebSocket-шлюз.
// Каждая подписка живет на собственном соединении: менеджер каналов сам
// группирует посты в батчи и пересоздает подписки при смене видимого набора,
// поэтому мультиплексирование здесь не нужно.
type WSRealtimeClient struct {
	wsURL  string // WebSocket endpoint of the gateway (e.g., "ws://localhost:8081/ws")
	token  string // Bearer token identifying the current user
	dialer *websocket.Dialer
	logger *zap.Logger
	seq    uint64 // счетчик для генерации subscription_id
}

// NewWSRealtimeClient creates a new WebSocket client for the realtime gateway.
func NewWSRealtimeClient(wsURL string, token string, logger *zap.Logger) *WSRealtimeClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSRealtimeClient{
		wsURL:  wsURL,
		token:  token,
		dialer: websocket.DefaultDialer,
		logger: logger.Named("WSRealtimeClient"),
	}
}

// Subscribe открывает одну подписку: соединяется со шлюзом, отправляет кадр
// subscribe и ждет подтверждения. Отмена ctx закрывает подписку.
func (c *WSRealtimeClient) Subscribe(ctx context.Context, postIDs []uuid.UUID) (realtime.Subscription, error) {
	if len(postIDs) == 0 {
		return nil, fmt.Errorf("post ids are empty: %w", models.ErrInvalidInput)
	}

	subID := fmt.Sprintf("sub-%d", atomic.AddUint64(&c.seq, 1))
	log := c.logger.With(
		zap.String("subscriptionId", subID),
		zap.Int("postCount", len(postIDs)))

	// 1. Соединяемся со шлюзом, токен передается в query
	endpoint, err := c.subscribeURL()
	if err != nil {
		return nil, err
	}
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, models.ErrUnauthorized
			}
		}
		log.Warn("Failed to dial realtime gateway", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrNetwork, err)
	}

	// 2. Отправляем кадр подписки
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	frame := gateway.ClientFrame{
		Type:           gateway.FrameTypeSubscribe,
		SubscriptionID: subID,
		PostIDs:        postIDs,
	}
	if err := conn.WriteJSON(frame); err != nil {
		conn.Close()
		log.Warn("Failed to send subscribe frame", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrNetwork, err)
	}

	// 3. Ждем подтверждения, события до него игнорируем
	if err := awaitSubscribeAck(conn, subID); err != nil {
		conn.Close()
		log.Warn("Subscription was not confirmed", zap.Error(err))
		return nil, err
	}

	sub := &wsSubscription{
		conn:   conn,
		subID:  subID,
		events: make(chan models.EngagementUpdate, wsEventBufferSize),
		done:   make(chan struct{}),
		logger: log,
	}

	// Пинги шлюза подтверждают живость соединения
	conn.SetReadDeadline(time.Now().Add(wsReadIdleTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadIdleTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(wsWriteWait))
	})

	go sub.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	log.Debug("Realtime subscription established")
	return sub, nil
}

// subscribeURL собирает адрес шлюза с токеном аутентификации.
func (c *WSRealtimeClient) subscribeURL() (string, error) {
	endpoint, err := url.Parse(c.wsURL)
	if err != nil {
		return "", fmt.Errorf("invalid gateway url %q: %w", c.wsURL, err)
	}
	query := endpoint.Query()
	query.Set("token", c.token)
	endpoint.RawQuery = query.Encode()
	return endpoint.String(), nil
}

// awaitSubscribeAck вычитывает кадры до подтверждения или отказа шлюза.
func awaitSubscribeAck(conn *websocket.Conn, subID string) error {
	conn.SetReadDeadline(time.Now().Add(wsAckTimeout))
	for {
		var frame gateway.ServerFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("%w: %v", models.ErrNetwork, err)
		}
		switch frame.Type {
		case gateway.FrameTypeSubscribed:
			if frame.SubscriptionID != subID {
				continue
			}
			return nil
		case gateway.FrameTypeError:
			return fmt.Errorf("gateway rejected subscription: %s", frame.Error)
		default:
			// Событие от гонки с другой рассылкой, подтверждение придет следом
			continue
		}
	}
}

// wsSubscription - одна открытая подписка. Канал событий закрывается при
// любом завершении: явном Close, отмене контекста или обрыве соединения.
type wsSubscription struct {
	conn      *websocket.Conn
	subID     string
	events    chan models.EngagementUpdate
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

func (s *wsSubscription) Events() <-chan models.EngagementUpdate {
	return s.events
}

// Close закрывает подписку. Безопасен для повторных вызовов.
func (s *wsSubscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		// Вежливо сообщаем шлюзу об отписке, обрыв соединения он
		// обработает и без этого
		s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		_ = s.conn.WriteJSON(gateway.ClientFrame{
			Type:           gateway.FrameTypeUnsubscribe,
			SubscriptionID: s.subID,
		})
		s.conn.Close()
	})
	return nil
}

// readLoop вычитывает кадры до обрыва соединения и закрывает канал событий.
func (s *wsSubscription) readLoop() {
	defer close(s.events)
	defer s.Close()

	for {
		var frame gateway.ServerFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			select {
			case <-s.done:
				// Закрылись сами, это не обрыв
			default:
				s.logger.Warn("Subscription stream aborted", zap.Error(err))
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(wsReadIdleTimeout))

		switch frame.Type {
		case gateway.FrameTypeEngagement:
			if frame.Payload == nil {
				continue
			}
			update, err := frame.Payload.Validate()
			if err != nil {
				s.logger.Warn("Dropping malformed engagement frame", zap.Error(err))
				continue
			}
			select {
			case s.events <- update:
			case <-s.done:
				return
			}
		case gateway.FrameTypeError:
			s.logger.Warn("Gateway reported subscription error", zap.String("error", frame.Error))
		default:
			// Служебные кадры игнорируем
		}
	}
}
