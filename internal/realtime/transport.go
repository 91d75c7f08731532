package realtime

import (
	"context"

	"github.com/google/uuid"

	"feed-server/internal/models"
)

// Transport opens engagement event subscriptions filtered by post ID.
// A single subscription carries at most MaxIDsPerChannel identifiers, the
// chunking itself is the ChannelManager's job.
type Transport interface {
	// Subscribe opens one filtered subscription. Cancelling ctx must
	// terminate the subscription and close its event channel.
	Subscribe(ctx context.Context, postIDs []uuid.UUID) (Subscription, error)
}

// Subscription is a single open event stream.
type Subscription interface {
	// Events returns the delivery channel. The implementation closes it
	// when the subscription ends, both on Close and on transport failure.
	Events() <-chan models.EngagementUpdate
	// Close tears the subscription down. Safe to call more than once.
	Close() error
}
