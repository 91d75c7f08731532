package engagement_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"feed-server/internal/engagement"
	"feed-server/internal/engagement/mocks"
	"feed-server/internal/models"
)

func newIDs(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return ids
}

func TestStateCachePreservesIdentity(t *testing.T) {
	cache := engagement.NewStateCache(new(mocks.Service), nil, engagement.CacheConfig{}, nil)
	p := uuid.New()

	e1 := cache.GetOrCreate(p, models.EngagementSnapshot{LikeCount: 41})
	e2 := cache.GetOrCreate(p, models.EngagementSnapshot{LikeCount: 41})

	require.NotNil(t, e1)
	assert.Same(t, e1, e2, "повторный запрос должен вернуть тот же движок")
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, p, e1.PostID())

	// Нулевой идентификатор не кэшируется
	assert.Nil(t, cache.GetOrCreate(uuid.Nil, models.EngagementSnapshot{}))
	assert.Equal(t, 1, cache.Len())
}

func TestStateCacheReconcileAppliesNewerSnapshot(t *testing.T) {
	cache := engagement.NewStateCache(new(mocks.Service), nil, engagement.CacheConfig{}, nil)
	p := uuid.New()

	eng := cache.GetOrCreate(p, models.EngagementSnapshot{LikeCount: 41, Revision: 5})

	// Более свежий снимок вливается целиком
	cache.GetOrCreate(p, models.EngagementSnapshot{LikeCount: 50, ReplyCount: 4, IsLiked: true, Revision: 6})
	st := eng.State()
	assert.Equal(t, int64(50), st.LikeCount)
	assert.Equal(t, int64(4), st.ReplyCount)
	assert.True(t, st.IsLiked)
	assert.Equal(t, int64(6), st.Revision)

	// Снимок той же ревизии не считается новее
	cache.GetOrCreate(p, models.EngagementSnapshot{LikeCount: 99, Revision: 6})
	assert.Equal(t, int64(50), eng.State().LikeCount)
}

func TestStateCacheReconcileDoesNotClobberPendingAspect(t *testing.T) {
	svc := new(mocks.Service)
	cache := engagement.NewStateCache(svc, nil, engagement.CacheConfig{}, nil)
	p := uuid.New()

	gate := make(chan struct{})
	svc.On("ToggleLike", mock.Anything, p).Run(func(mock.Arguments) {
		<-gate
	}).Return(models.LikeResult{IsLiked: true, LikeCount: 42, Revision: 7}, nil).Once()

	eng := cache.GetOrCreate(p, models.EngagementSnapshot{LikeCount: 41, Revision: 5})

	done := make(chan error, 1)
	go func() {
		_, err := eng.ToggleLike(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return eng.State().LikePending }, time.Second, 2*time.Millisecond)

	// Свежий серверный снимок не должен затереть оптимистичный лайк
	cache.GetOrCreate(p, models.EngagementSnapshot{LikeCount: 100, IsLiked: false, ReplyCount: 9, Revision: 6})

	st := eng.State()
	assert.True(t, st.IsLiked)
	assert.Equal(t, int64(42), st.LikeCount)
	assert.Equal(t, int64(9), st.ReplyCount, "счётчик ответов применяется всегда")

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, int64(42), eng.State().LikeCount)
	assert.Equal(t, int64(7), eng.State().Revision)
}

func TestStateCacheLRUEviction(t *testing.T) {
	cache := engagement.NewStateCache(new(mocks.Service), nil, engagement.CacheConfig{MaxEntries: 5, TargetEntries: 3}, nil)
	ids := newIDs(6)

	engines := make(map[uuid.UUID]*engagement.Engine)
	for _, id := range ids[:5] {
		engines[id] = cache.GetOrCreate(id, models.EngagementSnapshot{})
	}
	require.Equal(t, 5, cache.Len())

	// Освежаем самый старый пост, затем переполняем кэш
	cache.GetOrCreate(ids[0], models.EngagementSnapshot{})
	e5 := cache.GetOrCreate(ids[5], models.EngagementSnapshot{})

	assert.Equal(t, 3, cache.Len(), "после переполнения кэш ужимается до цели")

	// Выжили самая свежая запись, освеженная и предыдущая по свежести
	assert.Same(t, e5, cache.GetOrCreate(ids[5], models.EngagementSnapshot{}))
	assert.Same(t, engines[ids[0]], cache.GetOrCreate(ids[0], models.EngagementSnapshot{}))
	assert.Same(t, engines[ids[4]], cache.GetOrCreate(ids[4], models.EngagementSnapshot{}))

	// Вытесненные посты получают новые движки
	assert.NotSame(t, engines[ids[1]], cache.GetOrCreate(ids[1], models.EngagementSnapshot{}))
}

func TestStateCacheNeverEvictsMostRecent(t *testing.T) {
	cache := engagement.NewStateCache(new(mocks.Service), nil, engagement.CacheConfig{MaxEntries: 2, TargetEntries: 1}, nil)
	ids := newIDs(3)

	cache.GetOrCreate(ids[0], models.EngagementSnapshot{})
	cache.GetOrCreate(ids[1], models.EngagementSnapshot{})
	e2 := cache.GetOrCreate(ids[2], models.EngagementSnapshot{})

	assert.Equal(t, 1, cache.Len())
	assert.Same(t, e2, cache.GetOrCreate(ids[2], models.EngagementSnapshot{}), "самая свежая запись не вытесняется")
}

func TestStateCacheEvict(t *testing.T) {
	cache := engagement.NewStateCache(new(mocks.Service), nil, engagement.CacheConfig{}, nil)
	p := uuid.New()

	eng := cache.GetOrCreate(p, models.EngagementSnapshot{LikeCount: 41})
	cache.Evict(p)
	assert.Equal(t, 0, cache.Len())

	// События до вытесненного движка больше не доходят
	cache.ApplyRealtime(models.EngagementUpdate{PostID: p, LikeCount: 77, Revision: 9})
	assert.Equal(t, int64(41), eng.State().LikeCount)

	assert.NotSame(t, eng, cache.GetOrCreate(p, models.EngagementSnapshot{}))

	// Вытеснение незнакомого поста безопасно
	cache.Evict(uuid.New())
}

func TestStateCacheApplyRealtimeRouting(t *testing.T) {
	cache := engagement.NewStateCache(new(mocks.Service), nil, engagement.CacheConfig{}, nil)
	p := uuid.New()

	eng := cache.GetOrCreate(p, models.EngagementSnapshot{LikeCount: 41, Revision: 5})

	cache.ApplyRealtime(models.EngagementUpdate{PostID: p, LikeCount: 50, Revision: 6})
	assert.Equal(t, int64(50), eng.State().LikeCount)

	// Событие по незакэшированному посту не создает записей
	cache.ApplyRealtime(models.EngagementUpdate{PostID: uuid.New(), LikeCount: 1, Revision: 1})
	assert.Equal(t, 1, cache.Len())
}

func TestStateCacheOnChange(t *testing.T) {
	svc := new(mocks.Service)
	cache := engagement.NewStateCache(svc, nil, engagement.CacheConfig{}, nil)
	p := uuid.New()

	svc.On("ToggleLike", mock.Anything, p).
		Return(models.LikeResult{IsLiked: true, LikeCount: 42, Revision: 6}, nil).Once()

	eng := cache.GetOrCreate(p, models.EngagementSnapshot{LikeCount: 41, Revision: 5})

	var got []engagement.State
	unsubscribe := cache.OnChange(func(st engagement.State) {
		got = append(got, st)
	})

	_, err := eng.ToggleLike(context.Background())
	require.NoError(t, err)

	// Подписчик видел и оптимистичную фазу, и финальную
	require.GreaterOrEqual(t, len(got), 2)
	assert.True(t, got[0].LikePending)
	assert.Equal(t, int64(42), got[0].LikeCount)
	assert.False(t, got[len(got)-1].LikePending)
	assert.Equal(t, int64(42), got[len(got)-1].LikeCount)

	// После отписки уведомления прекращаются
	unsubscribe()
	seen := len(got)
	svc.On("ToggleLike", mock.Anything, p).
		Return(models.LikeResult{IsLiked: false, LikeCount: 41, Revision: 7}, nil).Once()
	_, err = eng.ToggleLike(context.Background())
	require.NoError(t, err)
	assert.Equal(t, seen, len(got))
}

func TestStateCacheUpdateStateUnknownPostIsNoop(t *testing.T) {
	cache := engagement.NewStateCache(new(mocks.Service), nil, engagement.CacheConfig{}, nil)

	fired := false
	cache.OnChange(func(engagement.State) { fired = true })

	cache.UpdateState(uuid.New(), true, 1, false, 0)
	assert.False(t, fired)
	assert.Equal(t, 0, cache.Len())
}
