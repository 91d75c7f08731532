package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"feed-server/internal/models"
)

// Service - мок engagement.Service на базе testify.
type Service struct {
	mock.Mock
}

func (m *Service) ToggleLike(ctx context.Context, postID uuid.UUID) (models.LikeResult, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).(models.LikeResult), args.Error(1)
}

func (m *Service) ToggleRepost(ctx context.Context, postID uuid.UUID) (models.RepostResult, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).(models.RepostResult), args.Error(1)
}

// ProgressMarker - мок engagement.ProgressMarker на базе testify.
type ProgressMarker struct {
	mock.Mock
}

func (m *ProgressMarker) MarkInProgress(postID uuid.UUID) {
	m.Called(postID)
}

func (m *ProgressMarker) MarkCompleted(postID uuid.UUID) {
	m.Called(postID)
}
