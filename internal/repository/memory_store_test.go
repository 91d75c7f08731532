package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"feed-server/internal/models"
	"feed-server/internal/repository"
)

func newStorePost(author string, createdAt time.Time) *models.Post {
	return &models.Post{
		ID:        uuid.New(),
		AuthorID:  1,
		Author:    author,
		Text:      "пост от " + author,
		CreatedAt: createdAt,
	}
}

func TestMemoryStoreLikeMarks(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore(zap.NewNop())

	post := newStorePost("alice", time.Now().UTC())
	require.NoError(t, store.Create(ctx, post))

	const userID uint64 = 42

	liked, err := store.CheckLike(ctx, userID, post.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	require.NoError(t, store.AddLike(ctx, userID, post.ID))

	err = store.AddLike(ctx, userID, post.ID)
	assert.ErrorIs(t, err, models.ErrLikeAlreadyExists)

	liked, err = store.CheckLike(ctx, userID, post.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	require.NoError(t, store.RemoveLike(ctx, userID, post.ID))

	err = store.RemoveLike(ctx, userID, post.ID)
	assert.ErrorIs(t, err, models.ErrLikeNotFound)

	err = store.AddLike(ctx, userID, uuid.New())
	assert.ErrorIs(t, err, models.ErrPostNotFound)
}

func TestMemoryStoreRepostMarks(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore(zap.NewNop())

	post := newStorePost("bob", time.Now().UTC())
	require.NoError(t, store.Create(ctx, post))

	const userID uint64 = 7

	require.NoError(t, store.AddRepost(ctx, userID, post.ID))
	assert.ErrorIs(t, store.AddRepost(ctx, userID, post.ID), models.ErrRepostAlreadyExists)

	reposted, err := store.CheckRepost(ctx, userID, post.ID)
	require.NoError(t, err)
	assert.True(t, reposted)

	require.NoError(t, store.RemoveRepost(ctx, userID, post.ID))
	assert.ErrorIs(t, store.RemoveRepost(ctx, userID, post.ID), models.ErrRepostNotFound)
}

func TestMemoryStoreCountersAndRevision(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore(zap.NewNop())

	post := newStorePost("carol", time.Now().UTC())
	require.NoError(t, store.Create(ctx, post))

	require.NoError(t, store.IncrementLikeCount(ctx, post.ID))
	require.NoError(t, store.IncrementLikeCount(ctx, post.ID))
	require.NoError(t, store.IncrementRepostCount(ctx, post.ID))

	engagement, err := store.GetEngagement(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), engagement.LikeCount)
	assert.Equal(t, int64(1), engagement.RepostCount)
	assert.Equal(t, int64(3), engagement.Revision, "каждое изменение счетчика увеличивает ревизию")

	// Декремент ниже нуля зажимается, но ревизия все равно растет
	require.NoError(t, store.DecrementRepostCount(ctx, post.ID))
	require.NoError(t, store.DecrementRepostCount(ctx, post.ID))

	engagement, err = store.GetEngagement(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), engagement.RepostCount)
	assert.Equal(t, int64(5), engagement.Revision)

	assert.ErrorIs(t, store.IncrementLikeCount(ctx, uuid.New()), models.ErrPostNotFound)

	_, err = store.GetEngagement(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrPostNotFound)
}

func TestMemoryStoreViewerFlags(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore(zap.NewNop())

	post := newStorePost("dave", time.Now().UTC())
	require.NoError(t, store.Create(ctx, post))

	const liker uint64 = 1
	const other uint64 = 2

	require.NoError(t, store.AddLike(ctx, liker, post.ID))

	fromLiker, err := store.GetByID(ctx, post.ID, liker)
	require.NoError(t, err)
	assert.True(t, fromLiker.IsLiked)
	assert.False(t, fromLiker.IsReposted)

	fromOther, err := store.GetByID(ctx, post.ID, other)
	require.NoError(t, err)
	assert.False(t, fromOther.IsLiked)

	// Возвращаемая копия не должна быть связана с хранилищем
	fromOther.LikeCount = 999
	again, err := store.GetByID(ctx, post.ID, other)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.LikeCount)

	_, err = store.GetByID(ctx, uuid.New(), liker)
	assert.ErrorIs(t, err, models.ErrPostNotFound)
}

func TestMemoryStoreCreateIdempotent(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore(zap.NewNop())

	post := newStorePost("erin", time.Now().UTC())
	require.NoError(t, store.Create(ctx, post))
	require.NoError(t, store.IncrementLikeCount(ctx, post.ID))

	// Повторная вставка с тем же ID не затирает существующий пост
	require.NoError(t, store.Create(ctx, post))

	engagement, err := store.GetEngagement(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), engagement.LikeCount)
}

func TestMemoryStoreFeedPagination(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore(zap.NewNop())

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	created := make([]*models.Post, 0, 5)
	for i := 0; i < 5; i++ {
		post := newStorePost("feed", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Create(ctx, post))
		created = append(created, post)
	}

	const viewerID uint64 = 10
	require.NoError(t, store.AddLike(ctx, viewerID, created[4].ID))

	// Первая страница: два самых свежих поста
	page1, cursor1, err := store.ListFeed(ctx, viewerID, "", 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, created[4].ID, page1[0].ID)
	assert.Equal(t, created[3].ID, page1[1].ID)
	assert.True(t, page1[0].IsLiked, "флаги зрителя должны проставляться и в ленте")
	require.NotEmpty(t, cursor1)

	page2, cursor2, err := store.ListFeed(ctx, viewerID, cursor1, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, created[2].ID, page2[0].ID)
	assert.Equal(t, created[1].ID, page2[1].ID)
	require.NotEmpty(t, cursor2)

	page3, cursor3, err := store.ListFeed(ctx, viewerID, cursor2, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, created[0].ID, page3[0].ID)
	assert.Empty(t, cursor3, "на последней странице курсор пустой")

	_, _, err = store.ListFeed(ctx, viewerID, "not-a-cursor!", 2)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}
