package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"feed-server/internal/models"
)

// EngagementService - мок service.EngagementService на базе testify.
type EngagementService struct {
	mock.Mock
}

func (m *EngagementService) ToggleLike(ctx context.Context, userID uint64, postID uuid.UUID) (models.LikeResult, error) {
	args := m.Called(ctx, userID, postID)
	return args.Get(0).(models.LikeResult), args.Error(1)
}

func (m *EngagementService) ToggleRepost(ctx context.Context, userID uint64, postID uuid.UUID) (models.RepostResult, error) {
	args := m.Called(ctx, userID, postID)
	return args.Get(0).(models.RepostResult), args.Error(1)
}

func (m *EngagementService) GetFeed(ctx context.Context, userID uint64, cursor string, limit int) (models.FeedPage, error) {
	args := m.Called(ctx, userID, cursor, limit)
	return args.Get(0).(models.FeedPage), args.Error(1)
}

func (m *EngagementService) GetPost(ctx context.Context, userID uint64, postID uuid.UUID) (*models.Post, error) {
	args := m.Called(ctx, userID, postID)
	var post *models.Post
	if args.Get(0) != nil {
		post = args.Get(0).(*models.Post)
	}
	return post, args.Error(1)
}

func (m *EngagementService) GetEngagement(ctx context.Context, postID uuid.UUID) (models.EngagementUpdate, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).(models.EngagementUpdate), args.Error(1)
}
