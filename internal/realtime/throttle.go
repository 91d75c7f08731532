package realtime

import (
	"time"

	"github.com/google/uuid"
)

// throttleLedger помнит момент последней эмиссии по каждому посту и
// решает, пропускать ли очередное событие. Событие внутри окна
// отбрасывается, а не откладывается. Структура не защищена мьютексом,
// ей владеет ChannelManager.
type throttleLedger struct {
	interval time.Duration
	now      func() time.Time
	lastEmit map[uuid.UUID]time.Time
}

func newThrottleLedger(interval time.Duration, now func() time.Time) *throttleLedger {
	if now == nil {
		now = time.Now
	}
	return &throttleLedger{
		interval: interval,
		now:      now,
		lastEmit: make(map[uuid.UUID]time.Time),
	}
}

// Allow возвращает true и фиксирует эмиссию, если окно с прошлой эмиссии
// по этому посту уже истекло. Неположительный интервал отключает троттлинг.
func (t *throttleLedger) Allow(id uuid.UUID) bool {
	if t.interval <= 0 {
		return true
	}
	ts := t.now()
	if last, ok := t.lastEmit[id]; ok && ts.Sub(last) < t.interval {
		return false
	}
	t.lastEmit[id] = ts
	return true
}

// Touch фиксирует эмиссию без проверки окна. Используется при сбросе
// накопленного события, который обходит троттлинг.
func (t *throttleLedger) Touch(id uuid.UUID) {
	if t.interval <= 0 {
		return
	}
	t.lastEmit[id] = t.now()
}

// Retain выбрасывает записи по постам, которых больше нет в видимом
// наборе, чтобы книга учёта не росла бесконечно.
func (t *throttleLedger) Retain(ids []uuid.UUID) {
	if len(t.lastEmit) == 0 {
		return
	}
	keep := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	for id := range t.lastEmit {
		if _, ok := keep[id]; !ok {
			delete(t.lastEmit, id)
		}
	}
}
