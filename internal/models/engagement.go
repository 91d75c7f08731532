package models

import (
	"fmt"

	"github.com/google/uuid"
)

// EngagementSnapshot - авторитетное состояние вовлечённости поста для
// конкретного зрителя: счётчики, ревизия и отметки самого зрителя.
// Ревизия монотонно растёт при каждой записи, значение 0 означает
// "ревизия неизвестна".
type EngagementSnapshot struct {
	PostID      uuid.UUID `json:"post_id"`
	LikeCount   int64     `json:"like_count"`
	RepostCount int64     `json:"repost_count"`
	ReplyCount  int64     `json:"reply_count"`
	Revision    int64     `json:"revision"`
	IsLiked     bool      `json:"is_liked"`
	IsReposted  bool      `json:"is_reposted"`
}

// EngagementUpdate - событие об изменении счётчиков поста, доставляемое
// подписчикам реального времени. Счётчики всегда полные, порядок событий
// гарантируется только в пределах одного поста.
type EngagementUpdate struct {
	PostID      uuid.UUID `json:"post_id"`
	LikeCount   int64     `json:"like_count"`
	RepostCount int64     `json:"repost_count"`
	ReplyCount  int64     `json:"reply_count"`
	Revision    int64     `json:"revision"`
}

// EngagementEventPayload - формат события вовлечённости на проводе: его
// публикует API-сервис в RabbitMQ, и его же шлюз пересылает в кадрах
// WebSocket. Счётчики объявлены указателями, чтобы отличать отсутствующее
// поле от нулевого значения.
type EngagementEventPayload struct {
	PostID      uuid.UUID `json:"post_id"`
	LikeCount   *int64    `json:"like_count"`
	RepostCount *int64    `json:"repost_count"`
	ReplyCount  *int64    `json:"reply_count"`
	Revision    int64     `json:"revision"`
}

// NewEngagementEventPayload упаковывает событие для публикации.
func NewEngagementEventPayload(u EngagementUpdate) EngagementEventPayload {
	likes, reposts, replies := u.LikeCount, u.RepostCount, u.ReplyCount
	return EngagementEventPayload{
		PostID:      u.PostID,
		LikeCount:   &likes,
		RepostCount: &reposts,
		ReplyCount:  &replies,
		Revision:    u.Revision,
	}
}

// Validate проверяет полезную нагрузку и возвращает событие для доставки.
func (p EngagementEventPayload) Validate() (EngagementUpdate, error) {
	if p.PostID == uuid.Nil {
		return EngagementUpdate{}, fmt.Errorf("post_id is missing: %w", ErrInvalidInput)
	}
	if p.LikeCount == nil || p.RepostCount == nil || p.ReplyCount == nil {
		return EngagementUpdate{}, fmt.Errorf("engagement counts are incomplete: %w", ErrInvalidInput)
	}
	if *p.LikeCount < 0 || *p.RepostCount < 0 || *p.ReplyCount < 0 {
		return EngagementUpdate{}, fmt.Errorf("engagement counts are negative: %w", ErrInvalidInput)
	}
	if p.Revision < 0 {
		return EngagementUpdate{}, fmt.Errorf("revision is negative: %w", ErrInvalidInput)
	}
	return EngagementUpdate{
		PostID:      p.PostID,
		LikeCount:   *p.LikeCount,
		RepostCount: *p.RepostCount,
		ReplyCount:  *p.ReplyCount,
		Revision:    p.Revision,
	}, nil
}

// LikeResult - результат переключения лайка на стороне сервера.
type LikeResult struct {
	IsLiked   bool  `json:"is_liked"`
	LikeCount int64 `json:"like_count"`
	Revision  int64 `json:"revision"`
}

// RepostResult - результат переключения репоста на стороне сервера.
type RepostResult struct {
	IsReposted  bool  `json:"is_reposted"`
	RepostCount int64 `json:"repost_count"`
	Revision    int64 `json:"revision"`
}
