package realtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feed-server/internal/models"
)

func TestInProgressBufferHoldsLatest(t *testing.T) {
	b := newInProgressBuffer()
	p := uuid.New()

	// Без пометки событие проходит мимо буфера
	assert.False(t, b.Hold(models.EngagementUpdate{PostID: p, LikeCount: 1}))

	b.Mark(p)
	assert.True(t, b.InProgress(p))
	assert.True(t, b.Hold(models.EngagementUpdate{PostID: p, LikeCount: 2}))
	assert.True(t, b.Hold(models.EngagementUpdate{PostID: p, LikeCount: 3}))

	// Хранится только самое свежее событие
	u, ok := b.Complete(p)
	require.True(t, ok)
	assert.Equal(t, int64(3), u.LikeCount)
	assert.False(t, b.InProgress(p))
}

func TestInProgressBufferCompleteWithoutEvents(t *testing.T) {
	b := newInProgressBuffer()
	p := uuid.New()

	b.Mark(p)
	_, ok := b.Complete(p)
	assert.False(t, ok)

	// Повторный Complete по снятой пометке тоже пуст
	_, ok = b.Complete(p)
	assert.False(t, ok)
}

func TestInProgressBufferIndependentPosts(t *testing.T) {
	b := newInProgressBuffer()
	p1 := uuid.New()
	p2 := uuid.New()

	b.Mark(p1)
	assert.True(t, b.Hold(models.EngagementUpdate{PostID: p1, LikeCount: 5}))
	assert.False(t, b.Hold(models.EngagementUpdate{PostID: p2, LikeCount: 7}))

	u, ok := b.Complete(p1)
	require.True(t, ok)
	assert.Equal(t, p1, u.PostID)
}
