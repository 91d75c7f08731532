package realtime

import (
	"sync"

	"feed-server/internal/models"
)

// updateQueue - неограниченная FIFO-очередь исходящих событий. Продюсер
// никогда не блокируется: push складывает событие под мьютексом, а отдельная
// горутина-насос выталкивает накопленное в выходной канал по мере того,
// как потребитель его вычитывает.
type updateQueue struct {
	mu     sync.Mutex
	items  []models.EngagementUpdate
	closed bool

	signal chan struct{} // буфер 1, будит насос после push
	done   chan struct{}
	out    chan models.EngagementUpdate
}

func newUpdateQueue() *updateQueue {
	q := &updateQueue{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan models.EngagementUpdate),
	}
	go q.pump()
	return q
}

// push добавляет событие в хвост очереди. После close становится no-op.
func (q *updateQueue) push(u models.EngagementUpdate) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, u)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// updates возвращает выходной канал. Канал закрывается насосом после close.
func (q *updateQueue) updates() <-chan models.EngagementUpdate {
	return q.out
}

// close останавливает насос. Невыданные события отбрасываются.
func (q *updateQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.done)
}

func (q *updateQueue) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		var (
			next models.EngagementUpdate
			ok   bool
		)
		if len(q.items) > 0 {
			next = q.items[0]
			q.items = q.items[1:]
			ok = true
		}
		q.mu.Unlock()

		if ok {
			select {
			case q.out <- next:
			case <-q.done:
				return
			}
			continue
		}

		select {
		case <-q.signal:
		case <-q.done:
			return
		}
	}
}
