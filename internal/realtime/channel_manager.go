package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"feed-server/internal/models"
)

// Параметры по умолчанию. Лимит идентификаторов на подписку продиктован
// провайдером push-канала, а не нашим дизайном.
const (
	DefaultMaxIDsPerChannel = 100
	DefaultDebounceInterval = 500 * time.Millisecond
	DefaultThrottleInterval = 300 * time.Millisecond
)

// Config содержит настройки менеджера каналов. Нулевые значения
// заменяются значениями по умолчанию.
type Config struct {
	MaxIDsPerChannel int           // максимум идентификаторов в одной подписке
	DebounceInterval time.Duration // окно слияния изменений видимого набора
	ThrottleInterval time.Duration // минимальный зазор между эмиссиями по одному посту
	Now              func() time.Time
}

// ChannelManager отслеживает видимый набор постов и держит под него группу
// подписок реального времени, по ⌈N/MaxIDsPerChannel⌉ штук. Все входящие
// события проходят через буфер незавершённых мутаций и троттлинг и попадают
// в единый исходящий поток Updates.
type ChannelManager struct {
	transport Transport
	logger    *zap.Logger

	maxIDsPerChannel int
	debounceInterval time.Duration

	mu       sync.Mutex
	visible  []uuid.UUID // последний принятый набор, без дублей и nil
	subs     []*managedSubscription
	debounce *time.Timer
	epoch    uint64 // растёт при каждом пересоздании подписок
	paused   bool
	closed   bool

	throttle *throttleLedger
	buffer   *inProgressBuffer
	out      *updateQueue
}

// managedSubscription - открытая подписка вместе с функцией остановки её
// слушателя.
type managedSubscription struct {
	sub    Subscription
	cancel context.CancelFunc
	ids    []uuid.UUID
}

// NewChannelManager создает менеджер каналов поверх транспорта.
func NewChannelManager(transport Transport, cfg Config, logger *zap.Logger) *ChannelManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxIDs := cfg.MaxIDsPerChannel
	if maxIDs <= 0 {
		maxIDs = DefaultMaxIDsPerChannel
	}
	debounce := cfg.DebounceInterval
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}
	// Отрицательный ThrottleInterval выключает троттлинг совсем
	throttle := cfg.ThrottleInterval
	if throttle == 0 {
		throttle = DefaultThrottleInterval
	}

	return &ChannelManager{
		transport:        transport,
		logger:           logger.Named("channel_manager"),
		maxIDsPerChannel: maxIDs,
		debounceInterval: debounce,
		throttle:         newThrottleLedger(throttle, cfg.Now),
		buffer:           newInProgressBuffer(),
		out:              newUpdateQueue(),
	}
}

// Updates возвращает исходящий поток событий. Канал закрывается в Close.
func (m *ChannelManager) Updates() <-chan models.EngagementUpdate {
	return m.out.updates()
}

// UpdateVisiblePosts заменяет отслеживаемый набор постов. Совпадающий с
// текущим набор игнорируется, иначе пересоздание подписок планируется
// через дебаунс: серия быстрых изменений при скролле сливается в одно
// пересоздание.
func (m *ChannelManager) UpdateVisiblePosts(ids []uuid.UUID) {
	next := dedupIDs(ids)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if sameIDSet(m.visible, next) {
		return
	}
	m.visible = next
	if m.paused {
		// Набор запомнили, подписки поднимет Resume
		return
	}
	m.scheduleResubscribeLocked()
}

// Resubscribe немедленно пересоздает подписки под текущий видимый набор:
// рвёт все открытые, бьёт набор на батчи и открывает по подписке на батч.
// Частичных обновлений нет, только полное пересоздание.
func (m *ChannelManager) Resubscribe() {
	m.mu.Lock()
	if m.closed || m.paused {
		m.mu.Unlock()
		return
	}
	if m.debounce != nil {
		m.debounce.Stop()
		m.debounce = nil
	}
	m.epoch++
	epoch := m.epoch
	old := m.detachSubsLocked()
	ids := append([]uuid.UUID(nil), m.visible...)
	m.throttle.Retain(ids)
	m.mu.Unlock()

	closeSubs(old)

	if len(ids) == 0 {
		m.logger.Debug("visible set is empty, nothing to subscribe")
		return
	}

	batches := chunkIDs(ids, m.maxIDsPerChannel)
	opened := make([]*managedSubscription, 0, len(batches))
	for _, batch := range batches {
		ctx, cancel := context.WithCancel(context.Background())
		sub, err := m.transport.Subscribe(ctx, batch)
		if err != nil {
			// Неудачный батч пропускаем, остальные каналы важнее
			m.logger.Warn("failed to open subscription",
				zap.Int("batchSize", len(batch)),
				zap.Error(err))
			cancel()
			continue
		}
		opened = append(opened, &managedSubscription{sub: sub, cancel: cancel, ids: batch})
	}

	m.mu.Lock()
	if m.closed || m.paused || epoch != m.epoch {
		// Пока открывали, состояние успело измениться
		m.mu.Unlock()
		closeSubs(opened)
		return
	}
	m.subs = opened
	for _, ms := range opened {
		go m.listen(epoch, ms)
	}
	m.mu.Unlock()

	m.logger.Debug("subscriptions rebuilt",
		zap.Int("visiblePosts", len(ids)),
		zap.Int("channels", len(opened)))
}

// Pause рвёт подписки, не трогая видимый набор. Отложенное пересоздание
// тоже отменяется.
func (m *ChannelManager) Pause() {
	m.mu.Lock()
	if m.closed || m.paused {
		m.mu.Unlock()
		return
	}
	m.paused = true
	if m.debounce != nil {
		m.debounce.Stop()
		m.debounce = nil
	}
	m.epoch++
	old := m.detachSubsLocked()
	m.mu.Unlock()

	closeSubs(old)
	m.logger.Info("realtime updates paused")
}

// Resume снимает паузу и безусловно пересоздает подписки.
func (m *ChannelManager) Resume() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.paused = false
	m.mu.Unlock()

	m.logger.Info("realtime updates resumed")
	m.Resubscribe()
}

// MarkInProgress включает буферизацию входящих событий по посту на время
// его мутации.
func (m *ChannelManager) MarkInProgress(id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	m.mu.Lock()
	m.buffer.Mark(id)
	m.mu.Unlock()
}

// MarkCompleted выключает буферизацию и, если за время мутации по посту
// приходили события, эмитит самое свежее из них в обход троттлинга.
func (m *ChannelManager) MarkCompleted(id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	m.mu.Lock()
	u, flush := m.buffer.Complete(id)
	if flush {
		m.throttle.Touch(id)
	}
	closed := m.closed
	m.mu.Unlock()

	if flush && !closed {
		m.out.push(u)
	}
}

// Close рвёт подписки, останавливает таймеры и закрывает поток Updates.
func (m *ChannelManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.debounce != nil {
		m.debounce.Stop()
		m.debounce = nil
	}
	m.epoch++
	old := m.detachSubsLocked()
	m.mu.Unlock()

	closeSubs(old)
	m.out.close()
	m.logger.Info("channel manager closed")
}

// listen вычитывает одну подписку до закрытия её канала. Если канал закрылся
// не по нашей инициативе, значит транспорт оборвался, и мы планируем полное
// пересоздание через дебаунс: упавшие одновременно слушатели сольются в одно.
func (m *ChannelManager) listen(epoch uint64, ms *managedSubscription) {
	for u := range ms.sub.Events() {
		m.handleInbound(u)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.paused || epoch != m.epoch {
		return
	}
	m.logger.Warn("subscription stream ended unexpectedly, scheduling resubscribe",
		zap.Int("batchSize", len(ms.ids)))
	m.scheduleResubscribeLocked()
}

// handleInbound проводит событие через буфер мутаций и троттлинг.
func (m *ChannelManager) handleInbound(u models.EngagementUpdate) {
	if u.PostID == uuid.Nil {
		// Мусор от транспорта молча отбрасываем
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.buffer.Hold(u) {
		m.mu.Unlock()
		return
	}
	if !m.throttle.Allow(u.PostID) {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.out.push(u)
}

// scheduleResubscribeLocked взводит дебаунс-таймер, снося предыдущий.
// Вызывается только под мьютексом.
func (m *ChannelManager) scheduleResubscribeLocked() {
	if m.debounce != nil {
		m.debounce.Stop()
	}
	m.debounce = time.AfterFunc(m.debounceInterval, m.Resubscribe)
}

// detachSubsLocked отцепляет открытые подписки и останавливает их
// слушателей. Сами подписки закрывает вызывающий уже без мьютекса.
func (m *ChannelManager) detachSubsLocked() []*managedSubscription {
	subs := m.subs
	m.subs = nil
	for _, ms := range subs {
		ms.cancel()
	}
	return subs
}

func closeSubs(subs []*managedSubscription) {
	for _, ms := range subs {
		_ = ms.sub.Close()
	}
}

// dedupIDs убирает дубли и нулевые идентификаторы, сохраняя порядок.
func dedupIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// sameIDSet сравнивает наборы без учета порядка. Оба аргумента уже без дублей.
func sameIDSet(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[uuid.UUID]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

// chunkIDs бьет набор на батчи не длиннее size, сохраняя порядок.
func chunkIDs(ids []uuid.UUID, size int) [][]uuid.UUID {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	batches := make([][]uuid.UUID, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}
