package engagement

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"feed-server/internal/models"
)

// AspectPhase - фаза конечного автомата одного аспекта вовлечённости
// (лайка или репоста).
type AspectPhase string

// Возможные фазы аспекта. Committed и RolledBack - переходные, снаружи
// аспект виден либо Idle, либо Pending.
const (
	PhaseIdle       AspectPhase = "idle"
	PhasePending    AspectPhase = "pending"
	PhaseCommitted  AspectPhase = "committed"
	PhaseRolledBack AspectPhase = "rolled_back"
)

// State - копия состояния движка на момент вызова State().
type State struct {
	PostID        uuid.UUID
	IsLiked       bool
	LikeCount     int64
	IsReposted    bool
	RepostCount   int64
	ReplyCount    int64
	LikePending   bool
	RepostPending bool
	Revision      int64
	LastErr       error
}

// Engine - оптимистичный движок вовлечённости одного поста. Каждый аспект
// (лайк, репост) живет по автомату Idle -> Pending -> Committed|RolledBack
// -> Idle и мутирует независимо от второго. Переключение аспекта сначала
// применяется локально, затем подтверждается сервером; при ошибке движок
// откатывается к значениям, зафиксированным до мутации.
type Engine struct {
	postID uuid.UUID

	svc    Service        // обязателен
	marker ProgressMarker // может быть nil
	sink   updateSink     // может быть nil
	logger *zap.Logger

	mu          sync.Mutex
	isLiked     bool
	likeCount   int64
	isReposted  bool
	repostCount int64
	replyCount  int64
	revision    int64
	likePhase   AspectPhase
	repostPhase AspectPhase
	lastErr     error
}

// NewEngine создает автономный движок из серверного снимка. svc обязателен,
// marker может быть nil. Движки, живущие под StateCache, создаются кэшем.
func NewEngine(snap models.EngagementSnapshot, svc Service, marker ProgressMarker, logger *zap.Logger) *Engine {
	return newEngine(snap, svc, marker, nil, logger)
}

func newEngine(snap models.EngagementSnapshot, svc Service, marker ProgressMarker, sink updateSink, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		postID:      snap.PostID,
		svc:         svc,
		marker:      marker,
		sink:        sink,
		logger:      logger.Named("engine"),
		isLiked:     snap.IsLiked,
		likeCount:   clampCount(snap.LikeCount),
		isReposted:  snap.IsReposted,
		repostCount: clampCount(snap.RepostCount),
		replyCount:  clampCount(snap.ReplyCount),
		revision:    snap.Revision,
		likePhase:   PhaseIdle,
		repostPhase: PhaseIdle,
	}
}

// PostID возвращает идентификатор поста, которым управляет движок.
func (e *Engine) PostID() uuid.UUID {
	return e.postID
}

// State возвращает копию текущего состояния.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// ToggleLike оптимистично переключает лайк и подтверждает его на сервере.
// Повторный вызов, пока запрос в полёте, ничего не делает. Ошибка сервера
// возвращается вызывающему как есть, автоматических ретраев нет.
func (e *Engine) ToggleLike(ctx context.Context) (State, error) {
	e.mu.Lock()
	if e.likePhase == PhasePending {
		// Повторный тап во время запроса игнорируется
		st := e.stateLocked()
		e.mu.Unlock()
		return st, nil
	}
	prevLiked := e.isLiked
	prevCount := e.likeCount
	e.isLiked = !e.isLiked
	if e.isLiked {
		e.likeCount++
	} else {
		e.likeCount = clampCount(e.likeCount - 1)
	}
	e.likePhase = PhasePending
	e.lastErr = nil
	e.mu.Unlock()

	e.broadcast()
	e.markInProgress()

	// Сетевой вызов идёт без мьютекса
	res, err := e.svc.ToggleLike(ctx, e.postID)

	e.mu.Lock()
	if err != nil {
		// Откат к значениям, зафиксированным до мутации
		e.isLiked = prevLiked
		e.likeCount = prevCount
		e.lastErr = err
		e.likePhase = PhaseRolledBack
		e.logger.Warn("like toggle rolled back",
			zap.String("postID", e.postID.String()),
			zap.Error(err))
	} else {
		// Сервер - источник истины
		e.isLiked = res.IsLiked
		e.likeCount = clampCount(res.LikeCount)
		if res.Revision > e.revision {
			e.revision = res.Revision
		}
		e.likePhase = PhaseCommitted
		e.logger.Debug("like toggle committed",
			zap.String("postID", e.postID.String()),
			zap.Bool("isLiked", res.IsLiked),
			zap.Int64("likeCount", res.LikeCount))
	}
	e.likePhase = PhaseIdle
	st := e.stateLocked()
	e.mu.Unlock()

	e.broadcast()
	e.markCompleted()
	return st, err
}

// ToggleRepost - зеркало ToggleLike для аспекта репоста.
func (e *Engine) ToggleRepost(ctx context.Context) (State, error) {
	e.mu.Lock()
	if e.repostPhase == PhasePending {
		st := e.stateLocked()
		e.mu.Unlock()
		return st, nil
	}
	prevReposted := e.isReposted
	prevCount := e.repostCount
	e.isReposted = !e.isReposted
	if e.isReposted {
		e.repostCount++
	} else {
		e.repostCount = clampCount(e.repostCount - 1)
	}
	e.repostPhase = PhasePending
	e.lastErr = nil
	e.mu.Unlock()

	e.broadcast()
	e.markInProgress()

	res, err := e.svc.ToggleRepost(ctx, e.postID)

	e.mu.Lock()
	if err != nil {
		e.isReposted = prevReposted
		e.repostCount = prevCount
		e.lastErr = err
		e.repostPhase = PhaseRolledBack
		e.logger.Warn("repost toggle rolled back",
			zap.String("postID", e.postID.String()),
			zap.Error(err))
	} else {
		e.isReposted = res.IsReposted
		e.repostCount = clampCount(res.RepostCount)
		if res.Revision > e.revision {
			e.revision = res.Revision
		}
		e.repostPhase = PhaseCommitted
		e.logger.Debug("repost toggle committed",
			zap.String("postID", e.postID.String()),
			zap.Bool("isReposted", res.IsReposted),
			zap.Int64("repostCount", res.RepostCount))
	}
	e.repostPhase = PhaseIdle
	st := e.stateLocked()
	e.mu.Unlock()

	e.broadcast()
	e.markCompleted()
	return st, err
}

// ApplyRealtime вливает событие из потока реального времени. Трогаются
// только счётчики: счётчик аспекта с незавершённой мутацией пропускается,
// счётчик ответов применяется всегда. Событие со старой ревизией
// отбрасывается.
func (e *Engine) ApplyRealtime(u models.EngagementUpdate) {
	e.mu.Lock()
	if u.Revision != 0 && e.revision != 0 && u.Revision <= e.revision {
		e.mu.Unlock()
		return
	}
	if e.likePhase != PhasePending {
		e.likeCount = clampCount(u.LikeCount)
	}
	if e.repostPhase != PhasePending {
		e.repostCount = clampCount(u.RepostCount)
	}
	e.replyCount = clampCount(u.ReplyCount)
	if u.Revision > e.revision {
		e.revision = u.Revision
	}
	e.mu.Unlock()

	e.broadcast()
}

// reconcileSnapshot вливает свежий серверный снимок, полученный при
// повторном появлении поста в списке. Аспекты с незавершённой мутацией
// не затираются, устаревший по ревизии снимок отбрасывается.
func (e *Engine) reconcileSnapshot(snap models.EngagementSnapshot) {
	e.mu.Lock()
	if snap.Revision != 0 && e.revision != 0 && snap.Revision <= e.revision {
		e.mu.Unlock()
		return
	}
	if e.likePhase != PhasePending {
		e.isLiked = snap.IsLiked
		e.likeCount = clampCount(snap.LikeCount)
	}
	if e.repostPhase != PhasePending {
		e.isReposted = snap.IsReposted
		e.repostCount = clampCount(snap.RepostCount)
	}
	e.replyCount = clampCount(snap.ReplyCount)
	if snap.Revision > e.revision {
		e.revision = snap.Revision
	}
	e.mu.Unlock()

	e.broadcast()
}

func (e *Engine) stateLocked() State {
	return State{
		PostID:        e.postID,
		IsLiked:       e.isLiked,
		LikeCount:     e.likeCount,
		IsReposted:    e.isReposted,
		RepostCount:   e.repostCount,
		ReplyCount:    e.replyCount,
		LikePending:   e.likePhase == PhasePending,
		RepostPending: e.repostPhase == PhasePending,
		Revision:      e.revision,
		LastErr:       e.lastErr,
	}
}

// broadcast отдаёт текущие значения в кэш. Вызывается без мьютекса.
func (e *Engine) broadcast() {
	if e.sink == nil {
		return
	}
	e.mu.Lock()
	liked, likes := e.isLiked, e.likeCount
	reposted, reposts := e.isReposted, e.repostCount
	e.mu.Unlock()
	e.sink.UpdateState(e.postID, liked, likes, reposted, reposts)
}

func (e *Engine) markInProgress() {
	if e.marker != nil {
		e.marker.MarkInProgress(e.postID)
	}
}

func (e *Engine) markCompleted() {
	if e.marker != nil {
		e.marker.MarkCompleted(e.postID)
	}
}

// clampCount не даёт счётчику уйти в минус.
func clampCount(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
