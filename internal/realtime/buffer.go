package realtime

import (
	"github.com/google/uuid"

	"feed-server/internal/models"
)

// inProgressBuffer держит множество постов с незавершённой мутацией и
// последнее отложенное событие по каждому из них. Пока пост помечен,
// входящие события не эмитятся, хранится только самое свежее.
// Структура не защищена мьютексом, ей владеет ChannelManager.
type inProgressBuffer struct {
	inflight map[uuid.UUID]struct{}
	pending  map[uuid.UUID]models.EngagementUpdate
}

func newInProgressBuffer() *inProgressBuffer {
	return &inProgressBuffer{
		inflight: make(map[uuid.UUID]struct{}),
		pending:  make(map[uuid.UUID]models.EngagementUpdate),
	}
}

// Mark помечает пост как имеющий незавершённую мутацию. Повторная пометка
// ничего не меняет.
func (b *inProgressBuffer) Mark(id uuid.UUID) {
	b.inflight[id] = struct{}{}
}

// Hold перехватывает событие, если по его посту идёт мутация. Каждое
// следующее событие замещает предыдущее.
func (b *inProgressBuffer) Hold(u models.EngagementUpdate) bool {
	if _, ok := b.inflight[u.PostID]; !ok {
		return false
	}
	b.pending[u.PostID] = u
	return true
}

// Complete снимает пометку и возвращает отложенное событие, если оно было.
func (b *inProgressBuffer) Complete(id uuid.UUID) (models.EngagementUpdate, bool) {
	if _, ok := b.inflight[id]; !ok {
		return models.EngagementUpdate{}, false
	}
	delete(b.inflight, id)
	u, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	return u, ok
}

// InProgress сообщает, помечен ли пост.
func (b *inProgressBuffer) InProgress(id uuid.UUID) bool {
	_, ok := b.inflight[id]
	return ok
}
