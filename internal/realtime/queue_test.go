package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feed-server/internal/models"
)

func TestUpdateQueueDeliversInOrder(t *testing.T) {
	q := newUpdateQueue()
	defer q.close()

	postID := uuid.New()
	for i := int64(1); i <= 100; i++ {
		q.push(models.EngagementUpdate{PostID: postID, LikeCount: i})
	}

	// Продюсер не блокируется, насос отдает все в порядке добавления
	for i := int64(1); i <= 100; i++ {
		select {
		case u := <-q.updates():
			assert.Equal(t, i, u.LikeCount)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for update %d", i)
		}
	}
}

func TestUpdateQueueCloseClosesStream(t *testing.T) {
	q := newUpdateQueue()
	q.push(models.EngagementUpdate{PostID: uuid.New()})
	q.close()

	// После close канал рано или поздно закрывается, push становится no-op
	q.push(models.EngagementUpdate{PostID: uuid.New()})

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-q.updates():
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestUpdateQueueDoubleCloseIsSafe(t *testing.T) {
	q := newUpdateQueue()
	q.close()
	q.close()
}
