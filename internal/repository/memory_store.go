package repository

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"feed-server/internal/models"
	"feed-server/internal/utils"
)

// MemoryStore реализует PostRepository и EngagementRepository в памяти.
// Используется в dev-режиме без PostgreSQL и в тестах. Семантика ошибок
// и счетчиков совпадает с PostgreSQL-реализациями.
type MemoryStore struct {
	mu      sync.RWMutex
	posts   map[uuid.UUID]*models.Post
	likes   map[uuid.UUID]map[uint64]struct{}
	reposts map[uuid.UUID]map[uint64]struct{}
	logger  *zap.Logger
}

// Compile-time checks
var (
	_ PostRepository       = (*MemoryStore)(nil)
	_ EngagementRepository = (*MemoryStore)(nil)
)

// NewMemoryStore создает новое пустое хранилище в памяти.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		posts:   make(map[uuid.UUID]*models.Post),
		likes:   make(map[uuid.UUID]map[uint64]struct{}),
		reposts: make(map[uuid.UUID]map[uint64]struct{}),
		logger:  logger.Named("MemoryStore"),
	}
}

// Create сохраняет новый пост. Повторная вставка с тем же ID игнорируется.
func (s *MemoryStore) Create(_ context.Context, post *models.Post) error {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[post.ID]; exists {
		s.logger.Debug("Post already existed, insert skipped", zap.String("postID", post.ID.String()))
		return nil
	}

	stored := *post
	// Флаги зрителя не хранятся, они вычисляются по отметкам при чтении.
	stored.IsLiked = false
	stored.IsReposted = false
	s.posts[post.ID] = &stored
	s.likes[post.ID] = make(map[uint64]struct{})
	s.reposts[post.ID] = make(map[uint64]struct{})

	s.logger.Debug("Post created in memory store", zap.String("postID", post.ID.String()))
	return nil
}

// GetByID возвращает пост со счетчиками и флагами зрителя.
func (s *MemoryStore) GetByID(_ context.Context, postID uuid.UUID, viewerID uint64) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, exists := s.posts[postID]
	if !exists {
		return nil, models.ErrPostNotFound
	}

	post := *stored
	_, post.IsLiked = s.likes[postID][viewerID]
	_, post.IsReposted = s.reposts[postID][viewerID]
	return &post, nil
}

// ListFeed возвращает страницу ленты в обратном хронологическом порядке
// с курсорной пагинацией по паре (created_at, id).
func (s *MemoryStore) ListFeed(_ context.Context, viewerID uint64, cursor string, limit int) ([]models.Post, string, error) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	cursorTime, cursorID, err := utils.DecodeCursor(cursor)
	if err != nil {
		s.logger.Warn("Invalid feed cursor provided", zap.String("cursor", cursor), zap.Error(err))
		return nil, "", fmt.Errorf("invalid cursor %q: %w", cursor, models.ErrInvalidInput)
	}

	s.mu.RLock()
	ordered := make([]*models.Post, 0, len(s.posts))
	for _, post := range s.posts {
		ordered = append(ordered, post)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
		}
		return bytes.Compare(ordered[i].ID[:], ordered[j].ID[:]) > 0
	})

	posts := make([]models.Post, 0, limit)
	var nextCursor string
	for _, stored := range ordered {
		if !cursorTime.IsZero() && cursorID != uuid.Nil && !beforeCursor(stored, cursorTime, cursorID) {
			continue
		}
		if len(posts) == limit {
			// Есть следующая страница, курсор указывает на последний выданный пост
			last := posts[limit-1]
			nextCursor = utils.EncodeCursor(last.CreatedAt, last.ID)
			break
		}
		post := *stored
		_, post.IsLiked = s.likes[stored.ID][viewerID]
		_, post.IsReposted = s.reposts[stored.ID][viewerID]
		posts = append(posts, post)
	}
	s.mu.RUnlock()

	return posts, nextCursor, nil
}

// beforeCursor повторяет сравнение строк (created_at, id) < (cursorTime, cursorID) в PostgreSQL.
func beforeCursor(post *models.Post, cursorTime time.Time, cursorID uuid.UUID) bool {
	if post.CreatedAt.Before(cursorTime) {
		return true
	}
	if post.CreatedAt.Equal(cursorTime) {
		return bytes.Compare(post.ID[:], cursorID[:]) < 0
	}
	return false
}

// GetEngagement возвращает актуальные счетчики и ревизию поста.
func (s *MemoryStore) GetEngagement(_ context.Context, postID uuid.UUID) (models.EngagementUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, exists := s.posts[postID]
	if !exists {
		return models.EngagementUpdate{}, models.ErrPostNotFound
	}

	return models.EngagementUpdate{
		PostID:      postID,
		LikeCount:   stored.LikeCount,
		RepostCount: stored.RepostCount,
		ReplyCount:  stored.ReplyCount,
		Revision:    stored.Revision,
	}, nil
}

// IncrementLikeCount увеличивает счетчик лайков и ревизию поста.
func (s *MemoryStore) IncrementLikeCount(_ context.Context, postID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.posts[postID]
	if !exists {
		return models.ErrPostNotFound
	}
	stored.LikeCount++
	stored.Revision++
	return nil
}

// DecrementLikeCount уменьшает счетчик лайков (не ниже нуля) и увеличивает ревизию.
func (s *MemoryStore) DecrementLikeCount(_ context.Context, postID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.posts[postID]
	if !exists {
		return models.ErrPostNotFound
	}
	stored.LikeCount--
	if stored.LikeCount < 0 {
		stored.LikeCount = 0
	}
	stored.Revision++
	return nil
}

// IncrementRepostCount увеличивает счетчик репостов и ревизию поста.
func (s *MemoryStore) IncrementRepostCount(_ context.Context, postID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.posts[postID]
	if !exists {
		return models.ErrPostNotFound
	}
	stored.RepostCount++
	stored.Revision++
	return nil
}

// DecrementRepostCount уменьшает счетчик репостов (не ниже нуля) и увеличивает ревизию.
func (s *MemoryStore) DecrementRepostCount(_ context.Context, postID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.posts[postID]
	if !exists {
		return models.ErrPostNotFound
	}
	stored.RepostCount--
	if stored.RepostCount < 0 {
		stored.RepostCount = 0
	}
	stored.Revision++
	return nil
}

// AddLike добавляет запись о лайке.
func (s *MemoryStore) AddLike(_ context.Context, userID uint64, postID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marks, exists := s.likes[postID]
	if !exists {
		return models.ErrPostNotFound
	}
	if _, liked := marks[userID]; liked {
		return models.ErrLikeAlreadyExists
	}
	marks[userID] = struct{}{}
	return nil
}

// RemoveLike удаляет запись о лайке.
func (s *MemoryStore) RemoveLike(_ context.Context, userID uint64, postID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marks, exists := s.likes[postID]
	if !exists {
		return models.ErrPostNotFound
	}
	if _, liked := marks[userID]; !liked {
		return models.ErrLikeNotFound
	}
	delete(marks, userID)
	return nil
}

// CheckLike проверяет, лайкнул ли пользователь пост.
func (s *MemoryStore) CheckLike(_ context.Context, userID uint64, postID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, liked := s.likes[postID][userID]
	return liked, nil
}

// AddRepost добавляет запись о репосте.
func (s *MemoryStore) AddRepost(_ context.Context, userID uint64, postID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marks, exists := s.reposts[postID]
	if !exists {
		return models.ErrPostNotFound
	}
	if _, reposted := marks[userID]; reposted {
		return models.ErrRepostAlreadyExists
	}
	marks[userID] = struct{}{}
	return nil
}

// RemoveRepost удаляет запись о репосте.
func (s *MemoryStore) RemoveRepost(_ context.Context, userID uint64, postID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marks, exists := s.reposts[postID]
	if !exists {
		return models.ErrPostNotFound
	}
	if _, reposted := marks[userID]; !reposted {
		return models.ErrRepostNotFound
	}
	delete(marks, userID)
	return nil
}

// CheckRepost проверяет, репостнул ли пользователь пост.
func (s *MemoryStore) CheckRepost(_ context.Context, userID uint64, postID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, reposted := s.reposts[postID][userID]
	return reposted, nil
}
