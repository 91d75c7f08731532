package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"feed-server/internal/models"
)

// PostRepository - мок repository.PostRepository на базе testify.
type PostRepository struct {
	mock.Mock
}

func (m *PostRepository) Create(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *PostRepository) GetByID(ctx context.Context, postID uuid.UUID, viewerID uint64) (*models.Post, error) {
	args := m.Called(ctx, postID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *PostRepository) ListFeed(ctx context.Context, viewerID uint64, cursor string, limit int) ([]models.Post, string, error) {
	args := m.Called(ctx, viewerID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]models.Post), args.String(1), args.Error(2)
}

func (m *PostRepository) GetEngagement(ctx context.Context, postID uuid.UUID) (models.EngagementUpdate, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).(models.EngagementUpdate), args.Error(1)
}

func (m *PostRepository) IncrementLikeCount(ctx context.Context, postID uuid.UUID) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}

func (m *PostRepository) DecrementLikeCount(ctx context.Context, postID uuid.UUID) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}

func (m *PostRepository) IncrementRepostCount(ctx context.Context, postID uuid.UUID) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}

func (m *PostRepository) DecrementRepostCount(ctx context.Context, postID uuid.UUID) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}

// EngagementRepository - мок repository.EngagementRepository на базе testify.
type EngagementRepository struct {
	mock.Mock
}

func (m *EngagementRepository) AddLike(ctx context.Context, userID uint64, postID uuid.UUID) error {
	args := m.Called(ctx, userID, postID)
	return args.Error(0)
}

func (m *EngagementRepository) RemoveLike(ctx context.Context, userID uint64, postID uuid.UUID) error {
	args := m.Called(ctx, userID, postID)
	return args.Error(0)
}

func (m *EngagementRepository) CheckLike(ctx context.Context, userID uint64, postID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, postID)
	return args.Bool(0), args.Error(1)
}

func (m *EngagementRepository) AddRepost(ctx context.Context, userID uint64, postID uuid.UUID) error {
	args := m.Called(ctx, userID, postID)
	return args.Error(0)
}

func (m *EngagementRepository) RemoveRepost(ctx context.Context, userID uint64, postID uuid.UUID) error {
	args := m.Called(ctx, userID, postID)
	return args.Error(0)
}

func (m *EngagementRepository) CheckRepost(ctx context.Context, userID uint64, postID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, postID)
	return args.Bool(0), args.Error(1)
}

// SnapshotCache - мок repository.SnapshotCache на базе testify.
type SnapshotCache struct {
	mock.Mock
}

func (m *SnapshotCache) SetSnapshot(ctx context.Context, update models.EngagementUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}

func (m *SnapshotCache) GetSnapshot(ctx context.Context, postID uuid.UUID) (models.EngagementUpdate, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).(models.EngagementUpdate), args.Error(1)
}

func (m *SnapshotCache) InvalidateSnapshot(ctx context.Context, postID uuid.UUID) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}
