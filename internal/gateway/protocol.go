package gateway

import (
	"feed-server/internal/models"

	"github.com/google/uuid"
)

// Типы кадров клиентского протокола поверх WebSocket.
const (
	// FrameTypeSubscribe - клиент открывает или заменяет подписку на набор постов.
	FrameTypeSubscribe = "subscribe"
	// FrameTypeUnsubscribe - клиент закрывает подписку.
	FrameTypeUnsubscribe = "unsubscribe"
	// FrameTypeSubscribed - подтверждение открытой подписки.
	FrameTypeSubscribed = "subscribed"
	// FrameTypeError - ошибка обработки клиентского кадра.
	FrameTypeError = "error"
	// FrameTypeEngagement - событие изменения счетчиков поста из подписки.
	FrameTypeEngagement = "engagement"
)

// ClientFrame - кадр, приходящий от клиента.
type ClientFrame struct {
	Type           string      `json:"type"`
	SubscriptionID string      `json:"subscription_id"`
	PostIDs        []uuid.UUID `json:"post_ids,omitempty"`
}

// ServerFrame - кадр, уходящий клиенту.
type ServerFrame struct {
	Type           string                         `json:"type"`
	SubscriptionID string                         `json:"subscription_id,omitempty"`
	Error          string                         `json:"error,omitempty"`
	Payload        *models.EngagementEventPayload `json:"payload,omitempty"`
}
