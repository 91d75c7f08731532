package engagement_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"feed-server/internal/engagement"
	"feed-server/internal/engagement/mocks"
	"feed-server/internal/models"
	"feed-server/internal/realtime"
)

// memoryTransport - транспорт в памяти для сквозного сценария.
type memoryTransport struct {
	mu   sync.Mutex
	last *memorySubscription
}

type memorySubscription struct {
	mu     sync.Mutex
	closed bool
	events chan models.EngagementUpdate
}

func (s *memorySubscription) Events() <-chan models.EngagementUpdate { return s.events }

func (s *memorySubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

func (s *memorySubscription) emit(u models.EngagementUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.events <- u
	return true
}

func (tr *memoryTransport) Subscribe(context.Context, []uuid.UUID) (realtime.Subscription, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.last = &memorySubscription{events: make(chan models.EngagementUpdate, 16)}
	return tr.last, nil
}

func (tr *memoryTransport) open() *memorySubscription {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.last == nil {
		return nil
	}
	tr.last.mu.Lock()
	defer tr.last.mu.Unlock()
	if tr.last.closed {
		return nil
	}
	return tr.last
}

// Сквозной сценарий: пока оптимистичная мутация в полёте, серверное событие
// буферизуется, а после подтверждения сбрасывается и побеждает.
func TestOptimisticFlowWithBufferedRealtime(t *testing.T) {
	p := uuid.New()

	tr := &memoryTransport{}
	manager := realtime.NewChannelManager(tr, realtime.Config{
		DebounceInterval: 10 * time.Millisecond,
		ThrottleInterval: 10 * time.Second, // сброс буфера должен пройти сквозь это окно
	}, nil)
	defer manager.Close()

	gate := make(chan struct{})
	serverCalled := make(chan struct{})
	svc := new(mocks.Service)
	svc.On("ToggleLike", mock.Anything, p).Run(func(mock.Arguments) {
		close(serverCalled)
		<-gate
	}).Return(models.LikeResult{IsLiked: true, LikeCount: 42, Revision: 10}, nil).Once()

	cache := engagement.NewStateCache(svc, manager, engagement.CacheConfig{}, nil)

	// Поток Updates питает кэш, как это делает рантайм приложения
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for u := range manager.Updates() {
			cache.ApplyRealtime(u)
		}
	}()

	eng := cache.GetOrCreate(p, models.EngagementSnapshot{PostID: p, LikeCount: 41, RepostCount: 3, Revision: 5})
	require.NotNil(t, eng)

	manager.UpdateVisiblePosts([]uuid.UUID{p})
	require.Eventually(t, func() bool { return tr.open() != nil }, time.Second, 5*time.Millisecond)

	toggleDone := make(chan error, 1)
	go func() {
		_, err := eng.ToggleLike(context.Background())
		toggleDone <- err
	}()

	// Дождались сетевого вызова: пост уже помечен как мутируемый
	select {
	case <-serverCalled:
	case <-time.After(time.Second):
		t.Fatal("service was never called")
	}
	st := eng.State()
	assert.True(t, st.LikePending)
	assert.Equal(t, int64(42), st.LikeCount)

	// Сервер прислал 50, пока мутация в полёте: событие задерживается
	require.True(t, tr.open().emit(models.EngagementUpdate{
		PostID: p, LikeCount: 50, RepostCount: 3, ReplyCount: 2, Revision: 11,
	}))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int64(42), eng.State().LikeCount)

	// Подтверждение: буфер сбрасывается, свежее серверное значение побеждает
	close(gate)
	require.NoError(t, <-toggleDone)
	require.Eventually(t, func() bool {
		st := eng.State()
		return !st.LikePending && st.LikeCount == 50 && st.Revision == 11
	}, time.Second, 5*time.Millisecond)

	final := eng.State()
	assert.True(t, final.IsLiked)
	assert.Equal(t, int64(2), final.ReplyCount)
	svc.AssertExpectations(t)

	manager.Close()
	select {
	case <-pumpDone:
	case <-time.After(time.Second):
		t.Fatal("updates pump did not stop")
	}
}
