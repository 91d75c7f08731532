package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"feed-server/internal/models"
)

// EngagementEventPublisher - мок messaging.EngagementEventPublisher на базе testify.
type EngagementEventPublisher struct {
	mock.Mock
}

func (m *EngagementEventPublisher) PublishEngagementEvent(ctx context.Context, payload models.EngagementEventPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}
