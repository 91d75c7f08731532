package service

import (
	"context"
	"errors"

	"feed-server/internal/messaging"
	"feed-server/internal/models"
	"feed-server/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Define errors specific to engagement operations
var (
	// ErrInternal возвращается при непредвиденных ошибках хранилища или зависимостей.
	ErrInternal = errors.New("internal engagement service error")
	// ErrPostNotFound пробрасывается из репозитория как models.ErrPostNotFound
)

// EngagementService defines the interface for managing post engagement:
// like/repost toggles, feed reads and engagement counter lookups.
type EngagementService interface {
	// ToggleLike переключает лайк пользователя на посте и возвращает новое состояние.
	ToggleLike(ctx context.Context, userID uint64, postID uuid.UUID) (models.LikeResult, error)
	// ToggleRepost переключает репост пользователя на посте и возвращает новое состояние.
	ToggleRepost(ctx context.Context, userID uint64, postID uuid.UUID) (models.RepostResult, error)
	// GetFeed возвращает страницу ленты с флагами текущего пользователя.
	GetFeed(ctx context.Context, userID uint64, cursor string, limit int) (models.FeedPage, error)
	// GetPost возвращает один пост с флагами текущего пользователя.
	GetPost(ctx context.Context, userID uint64, postID uuid.UUID) (*models.Post, error)
	// GetEngagement возвращает актуальные счетчики и ревизию поста (кэш, затем БД).
	GetEngagement(ctx context.Context, postID uuid.UUID) (models.EngagementUpdate, error)
}

type engagementServiceImpl struct {
	postRepo  repository.PostRepository
	engRepo   repository.EngagementRepository
	publisher messaging.EngagementEventPublisher
	snapshots repository.SnapshotCache
	logger    *zap.Logger
}

// NewEngagementService creates a new instance of EngagementService.
// publisher и snapshots могут быть nil (dev-режим без RabbitMQ/Redis),
// тогда соответствующие шаги просто пропускаются.
func NewEngagementService(
	postRepo repository.PostRepository,
	engRepo repository.EngagementRepository,
	publisher messaging.EngagementEventPublisher,
	snapshots repository.SnapshotCache,
	logger *zap.Logger,
) EngagementService {
	return &engagementServiceImpl{
		postRepo:  postRepo,
		engRepo:   engRepo,
		publisher: publisher,
		snapshots: snapshots,
		logger:    logger.Named("EngagementService"),
	}
}

// ToggleLike переключает лайк пользователя: ставит, если его нет, и снимает, если есть.
func (s *engagementServiceImpl) ToggleLike(ctx context.Context, userID uint64, postID uuid.UUID) (models.LikeResult, error) {
	logFields := []zap.Field{
		zap.Uint64("userID", userID),
		zap.String("postID", postID.String()),
	}
	s.logger.Info("Attempting to toggle like", logFields...)

	// 1. Проверяем текущее состояние отметки
	liked, err := s.engRepo.CheckLike(ctx, userID, postID)
	if err != nil {
		s.logger.Error("Failed to check like mark", append(logFields, zap.Error(err))...)
		return models.LikeResult{}, ErrInternal
	}

	if liked {
		// 2а. Лайк стоит - снимаем отметку и декрементируем счетчик
		err = s.engRepo.RemoveLike(ctx, userID, postID)
		switch {
		case err == nil:
			if err := s.postRepo.DecrementLikeCount(ctx, postID); err != nil {
				// Отметка уже снята, счетчик разъехался. Логируем как ошибку,
				// но пользователю возвращаем успех (лайк фактически снят).
				s.logger.Error("Failed to decrement like count after removing mark", append(logFields, zap.Error(err))...)
			}
		case errors.Is(err, models.ErrLikeNotFound):
			// Параллельный запрос уже снял лайк, счетчик не трогаем
			s.logger.Warn("Like mark disappeared before removal", logFields...)
		default:
			s.logger.Error("Failed to remove like mark", append(logFields, zap.Error(err))...)
			return models.LikeResult{}, ErrInternal
		}
	} else {
		// 2б. Лайка нет - ставим отметку и инкрементируем счетчик
		err = s.engRepo.AddLike(ctx, userID, postID)
		switch {
		case err == nil:
			if err := s.postRepo.IncrementLikeCount(ctx, postID); err != nil {
				s.logger.Error("Failed to increment like count after adding mark", append(logFields, zap.Error(err))...)
			}
		case errors.Is(err, models.ErrLikeAlreadyExists):
			// Параллельный запрос успел поставить лайк, счетчик не трогаем
			s.logger.Warn("Like mark appeared before insertion", logFields...)
		case errors.Is(err, models.ErrPostNotFound):
			s.logger.Warn("Post not found for like toggle", logFields...)
			return models.LikeResult{}, models.ErrPostNotFound
		default:
			s.logger.Error("Failed to add like mark", append(logFields, zap.Error(err))...)
			return models.LikeResult{}, ErrInternal
		}
	}

	// 3. Читаем актуальные счетчики и ревизию после изменения
	engagement, err := s.postRepo.GetEngagement(ctx, postID)
	if err != nil {
		if errors.Is(err, models.ErrPostNotFound) {
			return models.LikeResult{}, models.ErrPostNotFound
		}
		s.logger.Error("Failed to read engagement after like toggle", append(logFields, zap.Error(err))...)
		return models.LikeResult{}, ErrInternal
	}

	// 4. Рассылаем событие и обновляем кэш снимков (best effort)
	s.publishEngagement(ctx, engagement, logFields)

	result := models.LikeResult{
		IsLiked:   !liked,
		LikeCount: engagement.LikeCount,
		Revision:  engagement.Revision,
	}
	s.logger.Info("Like toggled successfully", append(logFields,
		zap.Bool("isLiked", result.IsLiked),
		zap.Int64("likeCount", result.LikeCount),
		zap.Int64("revision", result.Revision))...)
	return result, nil
}

// ToggleRepost переключает репост пользователя: ставит, если его нет, и снимает, если есть.
func (s *engagementServiceImpl) ToggleRepost(ctx context.Context, userID uint64, postID uuid.UUID) (models.RepostResult, error) {
	logFields := []zap.Field{
		zap.Uint64("userID", userID),
		zap.String("postID", postID.String()),
	}
	s.logger.Info("Attempting to toggle repost", logFields...)

	// 1. Проверяем текущее состояние отметки
	reposted, err := s.engRepo.CheckRepost(ctx, userID, postID)
	if err != nil {
		s.logger.Error("Failed to check repost mark", append(logFields, zap.Error(err))...)
		return models.RepostResult{}, ErrInternal
	}

	if reposted {
		// 2а. Репост стоит - снимаем отметку и декрементируем счетчик
		err = s.engRepo.RemoveRepost(ctx, userID, postID)
		switch {
		case err == nil:
			if err := s.postRepo.DecrementRepostCount(ctx, postID); err != nil {
				s.logger.Error("Failed to decrement repost count after removing mark", append(logFields, zap.Error(err))...)
			}
		case errors.Is(err, models.ErrRepostNotFound):
			s.logger.Warn("Repost mark disappeared before removal", logFields...)
		default:
			s.logger.Error("Failed to remove repost mark", append(logFields, zap.Error(err))...)
			return models.RepostResult{}, ErrInternal
		}
	} else {
		// 2б. Репоста нет - ставим отметку и инкрементируем счетчик
		err = s.engRepo.AddRepost(ctx, userID, postID)
		switch {
		case err == nil:
			if err := s.postRepo.IncrementRepostCount(ctx, postID); err != nil {
				s.logger.Error("Failed to increment repost count after adding mark", append(logFields, zap.Error(err))...)
			}
		case errors.Is(err, models.ErrRepostAlreadyExists):
			s.logger.Warn("Repost mark appeared before insertion", logFields...)
		case errors.Is(err, models.ErrPostNotFound):
			s.logger.Warn("Post not found for repost toggle", logFields...)
			return models.RepostResult{}, models.ErrPostNotFound
		default:
			s.logger.Error("Failed to add repost mark", append(logFields, zap.Error(err))...)
			return models.RepostResult{}, ErrInternal
		}
	}

	// 3. Читаем актуальные счетчики и ревизию после изменения
	engagement, err := s.postRepo.GetEngagement(ctx, postID)
	if err != nil {
		if errors.Is(err, models.ErrPostNotFound) {
			return models.RepostResult{}, models.ErrPostNotFound
		}
		s.logger.Error("Failed to read engagement after repost toggle", append(logFields, zap.Error(err))...)
		return models.RepostResult{}, ErrInternal
	}

	// 4. Рассылаем событие и обновляем кэш снимков (best effort)
	s.publishEngagement(ctx, engagement, logFields)

	result := models.RepostResult{
		IsReposted:  !reposted,
		RepostCount: engagement.RepostCount,
		Revision:    engagement.Revision,
	}
	s.logger.Info("Repost toggled successfully", append(logFields,
		zap.Bool("isReposted", result.IsReposted),
		zap.Int64("repostCount", result.RepostCount),
		zap.Int64("revision", result.Revision))...)
	return result, nil
}

// GetFeed возвращает страницу ленты для пользователя.
func (s *engagementServiceImpl) GetFeed(ctx context.Context, userID uint64, cursor string, limit int) (models.FeedPage, error) {
	log := s.logger.With(zap.Uint64("userID", userID), zap.String("cursor", cursor), zap.Int("limit", limit))
	log.Info("GetFeed called")

	posts, nextCursor, err := s.postRepo.ListFeed(ctx, userID, cursor, limit)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			log.Warn("Invalid feed cursor", zap.Error(err))
			return models.FeedPage{}, err
		}
		log.Error("Failed to list feed", zap.Error(err))
		return models.FeedPage{}, ErrInternal
	}
	if posts == nil {
		posts = []models.Post{}
	}

	log.Info("Feed page listed successfully", zap.Int("count", len(posts)), zap.Bool("hasMore", nextCursor != ""))
	return models.FeedPage{Posts: posts, NextCursor: nextCursor}, nil
}

// GetPost возвращает один пост с флагами текущего пользователя.
func (s *engagementServiceImpl) GetPost(ctx context.Context, userID uint64, postID uuid.UUID) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		if errors.Is(err, models.ErrPostNotFound) {
			return nil, models.ErrPostNotFound
		}
		s.logger.Error("Failed to get post",
			zap.String("postID", postID.String()), zap.Uint64("userID", userID), zap.Error(err))
		return nil, ErrInternal
	}
	return post, nil
}

// GetEngagement возвращает счетчики и ревизию поста. Сначала пробует кэш снимков,
// при промахе читает БД и прогревает кэш.
func (s *engagementServiceImpl) GetEngagement(ctx context.Context, postID uuid.UUID) (models.EngagementUpdate, error) {
	if s.snapshots != nil {
		cached, err := s.snapshots.GetSnapshot(ctx, postID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			// Кэш недоступен или испорчен - это не повод отказывать запросу
			s.logger.Warn("Snapshot cache read failed, falling back to database",
				zap.String("postID", postID.String()), zap.Error(err))
		}
	}

	engagement, err := s.postRepo.GetEngagement(ctx, postID)
	if err != nil {
		if errors.Is(err, models.ErrPostNotFound) {
			return models.EngagementUpdate{}, models.ErrPostNotFound
		}
		s.logger.Error("Failed to read engagement counters",
			zap.String("postID", postID.String()), zap.Error(err))
		return models.EngagementUpdate{}, ErrInternal
	}

	if s.snapshots != nil {
		if err := s.snapshots.SetSnapshot(ctx, engagement); err != nil {
			s.logger.Warn("Failed to refresh engagement snapshot cache",
				zap.String("postID", postID.String()), zap.Error(err))
		}
	}
	return engagement, nil
}

// publishEngagement рассылает событие об изменении счетчиков и обновляет кэш снимков.
// Обе операции не влияют на результат запроса, их ошибки только логируются.
func (s *engagementServiceImpl) publishEngagement(ctx context.Context, engagement models.EngagementUpdate, logFields []zap.Field) {
	if s.publisher != nil {
		if err := s.publisher.PublishEngagementEvent(ctx, models.NewEngagementEventPayload(engagement)); err != nil {
			s.logger.Error("Failed to publish engagement event", append(logFields, zap.Error(err))...)
		}
	}
	if s.snapshots != nil {
		if err := s.snapshots.SetSnapshot(ctx, engagement); err != nil {
			s.logger.Error("Failed to update engagement snapshot cache", append(logFields, zap.Error(err))...)
		}
	}
}
