package engagement

import (
	"container/list"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"feed-server/internal/models"
)

// Границы кэша по умолчанию.
const (
	DefaultCacheMaxEntries    = 512
	DefaultCacheTargetEntries = 384
)

// CacheConfig содержит границы кэша. Нулевые значения заменяются
// значениями по умолчанию.
type CacheConfig struct {
	MaxEntries    int // порог, после которого начинается вытеснение
	TargetEntries int // до скольких записей ужиматься при вытеснении
}

// ChangeCallback получает копию состояния поста после каждого изменения.
type ChangeCallback func(st State)

// StateCache держит по движку на каждый пост и сохраняет идентичность:
// повторный GetOrCreate того же поста возвращает тот же экземпляр, поэтому
// все участники видят одно состояние. Кэш ограничен по размеру, при
// переполнении вытесняются давно не тронутые записи.
//
// Кэш создается явно и передается зависимостям через конструкторы,
// глобального экземпляра нет.
type StateCache struct {
	svc    Service
	marker ProgressMarker
	logger *zap.Logger

	maxEntries    int
	targetEntries int

	mu      sync.Mutex
	entries map[uuid.UUID]*list.Element
	lru     *list.List // значения *cacheEntry, свежие в голове

	cbMu      sync.Mutex
	nextCbID  uint64
	callbacks map[uint64]ChangeCallback
}

type cacheEntry struct {
	id     uuid.UUID
	engine *Engine
}

var _ updateSink = (*StateCache)(nil)

// NewStateCache создает кэш. Сервис мутаций и маркер прогресса задаются
// один раз здесь и достаются всем создаваемым движкам; marker может быть
// nil, если менеджер каналов не используется.
func NewStateCache(svc Service, marker ProgressMarker, cfg CacheConfig, logger *zap.Logger) *StateCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	target := cfg.TargetEntries
	if target <= 0 || target >= maxEntries {
		target = maxEntries * 3 / 4
	}
	if target < 1 {
		target = 1
	}
	return &StateCache{
		svc:           svc,
		marker:        marker,
		logger:        logger.Named("state_cache"),
		maxEntries:    maxEntries,
		targetEntries: target,
		entries:       make(map[uuid.UUID]*list.Element),
		lru:           list.New(),
		callbacks:     make(map[uint64]ChangeCallback),
	}
}

// GetOrCreate возвращает движок поста, создавая его из снимка при первом
// обращении. На повторном обращении снимок вливается в существующий движок
// по правилам reconcile: аспекты с незавершённой мутацией не затираются.
// Обращение освежает позицию записи в LRU. Нулевой идентификатор дает nil.
func (c *StateCache) GetOrCreate(id uuid.UUID, snap models.EngagementSnapshot) *Engine {
	if id == uuid.Nil {
		return nil
	}
	snap.PostID = id

	c.mu.Lock()
	if el, ok := c.entries[id]; ok {
		c.lru.MoveToFront(el)
		eng := el.Value.(*cacheEntry).engine
		c.mu.Unlock()
		eng.reconcileSnapshot(snap)
		return eng
	}
	eng := newEngine(snap, c.svc, c.marker, c, c.logger)
	c.entries[id] = c.lru.PushFront(&cacheEntry{id: id, engine: eng})
	evicted := c.evictOverflowLocked()
	size := c.lru.Len()
	c.mu.Unlock()

	if evicted > 0 {
		c.logger.Debug("evicted cold engines",
			zap.Int("evicted", evicted),
			zap.Int("size", size))
	}
	return eng
}

// UpdateState - хук, которым движок сообщает кэшу о каждом изменении.
// Запись освежается в LRU, подписчики получают свежую копию состояния.
func (c *StateCache) UpdateState(id uuid.UUID, isLiked bool, likeCount int64, isReposted bool, repostCount int64) {
	c.mu.Lock()
	el, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	c.lru.MoveToFront(el)
	eng := el.Value.(*cacheEntry).engine
	c.mu.Unlock()

	c.logger.Debug("state updated",
		zap.String("postID", id.String()),
		zap.Bool("isLiked", isLiked),
		zap.Int64("likeCount", likeCount),
		zap.Bool("isReposted", isReposted),
		zap.Int64("repostCount", repostCount))

	c.notify(eng.State())
}

// ApplyRealtime доставляет событие из потока Updates движку поста.
// Событие по незакэшированному посту игнорируется.
func (c *StateCache) ApplyRealtime(u models.EngagementUpdate) {
	c.mu.Lock()
	el, ok := c.entries[u.PostID]
	if !ok {
		c.mu.Unlock()
		return
	}
	c.lru.MoveToFront(el)
	eng := el.Value.(*cacheEntry).engine
	c.mu.Unlock()

	eng.ApplyRealtime(u)
}

// Evict убирает пост из кэша. Уже выданные наружу движки продолжают
// работать, но события реального времени до них больше не доходят.
func (c *StateCache) Evict(id uuid.UUID) {
	c.mu.Lock()
	if el, ok := c.entries[id]; ok {
		c.lru.Remove(el)
		delete(c.entries, id)
	}
	c.mu.Unlock()
}

// OnChange регистрирует подписчика на изменения. Возвращенная функция
// снимает подписку.
func (c *StateCache) OnChange(cb ChangeCallback) func() {
	c.cbMu.Lock()
	c.nextCbID++
	id := c.nextCbID
	c.callbacks[id] = cb
	c.cbMu.Unlock()

	return func() {
		c.cbMu.Lock()
		delete(c.callbacks, id)
		c.cbMu.Unlock()
	}
}

// Len возвращает число закэшированных постов.
func (c *StateCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// evictOverflowLocked ужимает кэш до целевого размера после превышения
// максимума. Вытеснение идет с хвоста LRU, голова (самая свежая запись)
// не вытесняется никогда.
func (c *StateCache) evictOverflowLocked() int {
	if c.lru.Len() <= c.maxEntries {
		return 0
	}
	evicted := 0
	for c.lru.Len() > c.targetEntries {
		back := c.lru.Back()
		if back == nil || back == c.lru.Front() {
			break
		}
		entry := c.lru.Remove(back).(*cacheEntry)
		delete(c.entries, entry.id)
		evicted++
	}
	return evicted
}

func (c *StateCache) notify(st State) {
	c.cbMu.Lock()
	cbs := make([]ChangeCallback, 0, len(c.callbacks))
	for _, cb := range c.callbacks {
		cbs = append(cbs, cb)
	}
	c.cbMu.Unlock()

	for _, cb := range cbs {
		cb(st)
	}
}
