package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"feed-server/internal/models"
)

// Константы для операций с отметками лайков и репостов
const (
	insertLikeMarkQuery = `INSERT INTO post_likes (user_id, post_id, created_at) VALUES ($1, $2, NOW())`
	deleteLikeMarkQuery = `DELETE FROM post_likes WHERE user_id = $1 AND post_id = $2`
	checkLikeMarkQuery  = `SELECT EXISTS (SELECT 1 FROM post_likes WHERE user_id = $1 AND post_id = $2)`

	insertRepostMarkQuery = `INSERT INTO post_reposts (user_id, post_id, created_at) VALUES ($1, $2, NOW())`
	deleteRepostMarkQuery = `DELETE FROM post_reposts WHERE user_id = $1 AND post_id = $2`
	checkRepostMarkQuery  = `SELECT EXISTS (SELECT 1 FROM post_reposts WHERE user_id = $1 AND post_id = $2)`
)

// pgEngagementRepository реализует интерфейс EngagementRepository для PostgreSQL.
type pgEngagementRepository struct {
	db     DBTX
	logger *zap.Logger
}

// Compile-time check
var _ EngagementRepository = (*pgEngagementRepository)(nil)

// NewPgEngagementRepository создает новый экземпляр репозитория отметок.
func NewPgEngagementRepository(db DBTX, logger *zap.Logger) EngagementRepository {
	return &pgEngagementRepository{
		db:     db,
		logger: logger.Named("PgEngagementRepo"),
	}
}

// AddLike добавляет запись о лайке.
func (r *pgEngagementRepository) AddLike(ctx context.Context, userID uint64, postID uuid.UUID) error {
	logFields := []zap.Field{
		zap.Uint64("userID", userID),
		zap.String("postID", postID.String()),
	}
	r.logger.Debug("Adding like record", logFields...)

	_, err := r.db.Exec(ctx, insertLikeMarkQuery, userID, postID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505": // unique_violation (означает, что лайк уже существует)
				r.logger.Warn("Like already exists (unique constraint violation)", logFields...)
				return models.ErrLikeAlreadyExists
			case "23503": // foreign_key_violation (означает, что post_id не найден)
				r.logger.Warn("Post not found (foreign key violation)", logFields...)
				return models.ErrPostNotFound
			}
		}
		// Другая ошибка БД
		r.logger.Error("Failed to add like record", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to add like: %w", err)
	}

	r.logger.Info("Like record added successfully", logFields...)
	return nil
}

// RemoveLike удаляет запись о лайке.
func (r *pgEngagementRepository) RemoveLike(ctx context.Context, userID uint64, postID uuid.UUID) error {
	logFields := []zap.Field{
		zap.Uint64("userID", userID),
		zap.String("postID", postID.String()),
	}
	r.logger.Debug("Removing like record", logFields...)

	commandTag, err := r.db.Exec(ctx, deleteLikeMarkQuery, userID, postID)
	if err != nil {
		r.logger.Error("Failed to remove like record", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to remove like: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		r.logger.Warn("Like not found to remove", logFields...)
		return models.ErrLikeNotFound // Лайка не было
	}

	r.logger.Info("Like record removed successfully", logFields...)
	return nil
}

// CheckLike проверяет, лайкнул ли пользователь пост.
func (r *pgEngagementRepository) CheckLike(ctx context.Context, userID uint64, postID uuid.UUID) (bool, error) {
	logFields := []zap.Field{
		zap.Uint64("userID", userID),
		zap.String("postID", postID.String()),
	}
	r.logger.Debug("Checking if like exists", logFields...)

	var exists bool
	err := r.db.QueryRow(ctx, checkLikeMarkQuery, userID, postID).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check like existence", append(logFields, zap.Error(err))...)
		return false, fmt.Errorf("failed to check like existence: %w", err)
	}

	r.logger.Debug("Like existence check completed", append(logFields, zap.Bool("exists", exists))...)
	return exists, nil
}

// AddRepost добавляет запись о репосте.
func (r *pgEngagementRepository) AddRepost(ctx context.Context, userID uint64, postID uuid.UUID) error {
	logFields := []zap.Field{
		zap.Uint64("userID", userID),
		zap.String("postID", postID.String()),
	}
	r.logger.Debug("Adding repost record", logFields...)

	_, err := r.db.Exec(ctx, insertRepostMarkQuery, userID, postID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505": // unique_violation (означает, что репост уже существует)
				r.logger.Warn("Repost already exists (unique constraint violation)", logFields...)
				return models.ErrRepostAlreadyExists
			case "23503": // foreign_key_violation (означает, что post_id не найден)
				r.logger.Warn("Post not found (foreign key violation)", logFields...)
				return models.ErrPostNotFound
			}
		}
		// Другая ошибка БД
		r.logger.Error("Failed to add repost record", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to add repost: %w", err)
	}

	r.logger.Info("Repost record added successfully", logFields...)
	return nil
}

// RemoveRepost удаляет запись о репосте.
func (r *pgEngagementRepository) RemoveRepost(ctx context.Context, userID uint64, postID uuid.UUID) error {
	logFields := []zap.Field{
		zap.Uint64("userID", userID),
		zap.String("postID", postID.String()),
	}
	r.logger.Debug("Removing repost record", logFields...)

	commandTag, err := r.db.Exec(ctx, deleteRepostMarkQuery, userID, postID)
	if err != nil {
		r.logger.Error("Failed to remove repost record", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to remove repost: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		r.logger.Warn("Repost not found to remove", logFields...)
		return models.ErrRepostNotFound // Репоста не было
	}

	r.logger.Info("Repost record removed successfully", logFields...)
	return nil
}

// CheckRepost проверяет, репостнул ли пользователь пост.
func (r *pgEngagementRepository) CheckRepost(ctx context.Context, userID uint64, postID uuid.UUID) (bool, error) {
	logFields := []zap.Field{
		zap.Uint64("userID", userID),
		zap.String("postID", postID.String()),
	}
	r.logger.Debug("Checking if repost exists", logFields...)

	var exists bool
	err := r.db.QueryRow(ctx, checkRepostMarkQuery, userID, postID).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check repost existence", append(logFields, zap.Error(err))...)
		return false, fmt.Errorf("failed to check repost existence: %w", err)
	}

	r.logger.Debug("Repost existence check completed", append(logFields, zap.Bool("exists", exists))...)
	return exists, nil
}
