package engagement

import (
	"context"

	"github.com/google/uuid"

	"feed-server/internal/models"
)

// Service performs engagement mutations against the backend. Implementations
// must translate failures into the typed errors from the models package:
// models.ErrNetwork, models.ErrPostNotFound, models.ErrUnauthorized,
// models.ErrRateLimited or *models.ServerError.
type Service interface {
	// ToggleLike flips the like mark of the post for the current user and
	// returns the authoritative server state.
	ToggleLike(ctx context.Context, postID uuid.UUID) (models.LikeResult, error)
	// ToggleRepost flips the repost mark of the post for the current user
	// and returns the authoritative server state.
	ToggleRepost(ctx context.Context, postID uuid.UUID) (models.RepostResult, error)
}

// ProgressMarker is the slice of the channel manager the engine needs:
// a post marked in-progress has its realtime emissions buffered until the
// mutation completes. A nil marker is allowed for standalone use.
type ProgressMarker interface {
	MarkInProgress(postID uuid.UUID)
	MarkCompleted(postID uuid.UUID)
}

// updateSink получает состояние движка после каждого изменения.
// Его реализует StateCache, автономный движок обходится без него.
type updateSink interface {
	UpdateState(postID uuid.UUID, isLiked bool, likeCount int64, isReposted bool, repostCount int64)
}
