package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	pgxV5 "github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"feed-server/internal/models"
	"feed-server/internal/utils"
)

// Ограничения на размер страницы ленты.
const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

// Константы для операций с постами
const (
	// Query to insert a post, ignoring conflicts (if post already exists)
	insertPostQuery = `
        INSERT INTO posts (id, author_id, author, text, like_count, repost_count, reply_count, revision, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id) DO NOTHING`

	// Base query for reading posts with viewer flags ($1 is always the viewer ID).
	// Note the trailing space before appending WHERE/ORDER BY clauses.
	selectPostBaseQuery = `
        SELECT
            p.id, p.author_id, p.author, p.text,
            p.like_count, p.repost_count, p.reply_count, p.revision, p.created_at,
            EXISTS (SELECT 1 FROM post_likes pl WHERE pl.post_id = p.id AND pl.user_id = $1) AS is_liked,
            EXISTS (SELECT 1 FROM post_reposts pr WHERE pr.post_id = p.id AND pr.user_id = $1) AS is_reposted
        FROM posts p `

	// Query to read current counters and revision of a post
	selectEngagementQuery = `SELECT like_count, repost_count, reply_count, revision FROM posts WHERE id = $1`

	// Queries to adjust counters; every change bumps the revision
	incrementLikeCountQuery = `UPDATE posts SET like_count = like_count + 1, revision = revision + 1 WHERE id = $1`

	// Decrement must not take the counter below zero
	decrementLikeCountQuery = `UPDATE posts SET like_count = GREATEST(0, like_count - 1), revision = revision + 1 WHERE id = $1`

	incrementRepostCountQuery = `UPDATE posts SET repost_count = repost_count + 1, revision = revision + 1 WHERE id = $1`

	decrementRepostCountQuery = `UPDATE posts SET repost_count = GREATEST(0, repost_count - 1), revision = revision + 1 WHERE id = $1`
)

// pgPostRepository реализует интерфейс PostRepository для PostgreSQL.
type pgPostRepository struct {
	db     DBTX
	logger *zap.Logger
}

// Compile-time check
var _ PostRepository = (*pgPostRepository)(nil)

// NewPgPostRepository создает новый экземпляр репозитория постов.
func NewPgPostRepository(db DBTX, logger *zap.Logger) PostRepository {
	return &pgPostRepository{
		db:     db,
		logger: logger.Named("PgPostRepo"),
	}
}

// Create сохраняет новый пост. Повторная вставка с тем же ID игнорируется.
func (r *pgPostRepository) Create(ctx context.Context, post *models.Post) error {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	logFields := []zap.Field{
		zap.String("postID", post.ID.String()),
		zap.Uint64("authorID", post.AuthorID),
	}
	r.logger.Debug("Creating post", logFields...)

	commandTag, err := r.db.Exec(ctx, insertPostQuery,
		post.ID, post.AuthorID, post.Author, post.Text,
		post.LikeCount, post.RepostCount, post.ReplyCount, post.Revision, post.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert post", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания поста %s: %w", post.ID, err)
	}

	if commandTag.RowsAffected() == 0 {
		r.logger.Debug("Post already existed, insert skipped", logFields...)
		return nil
	}

	r.logger.Info("Post created successfully", logFields...)
	return nil
}

// GetByID возвращает пост со счетчиками и флагами зрителя.
func (r *pgPostRepository) GetByID(ctx context.Context, postID uuid.UUID, viewerID uint64) (*models.Post, error) {
	query := selectPostBaseQuery + `WHERE p.id = $2`
	logFields := []zap.Field{
		zap.String("postID", postID.String()),
		zap.Uint64("viewerID", viewerID),
	}
	r.logger.Debug("Getting post by ID", logFields...)

	var post models.Post
	err := pgxscan.Get(ctx, r.db, &post, query, viewerID, postID)
	if err != nil {
		if errors.Is(err, pgxV5.ErrNoRows) {
			r.logger.Warn("Post not found", logFields...)
			return nil, models.ErrPostNotFound
		}
		r.logger.Error("Failed to get post by ID", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("ошибка получения поста %s: %w", postID, err)
	}

	return &post, nil
}

// ListFeed возвращает страницу ленты в обратном хронологическом порядке
// с курсорной пагинацией по паре (created_at, id).
func (r *pgPostRepository) ListFeed(ctx context.Context, viewerID uint64, cursor string, limit int) ([]models.Post, string, error) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	// Fetch one extra item to determine if there's a next page
	fetchLimit := limit + 1

	cursorTime, cursorID, err := utils.DecodeCursor(cursor)
	if err != nil {
		r.logger.Warn("Invalid feed cursor provided", zap.String("cursor", cursor), zap.Error(err))
		return nil, "", fmt.Errorf("invalid cursor %q: %w", cursor, models.ErrInvalidInput)
	}

	query := selectPostBaseQuery
	args := []interface{}{viewerID}
	paramIndex := 2

	// Add cursor condition if cursor is provided
	if !cursorTime.IsZero() && cursorID != uuid.Nil {
		query += fmt.Sprintf("WHERE (p.created_at, p.id) < ($%d, $%d) ", paramIndex, paramIndex+1)
		args = append(args, cursorTime, cursorID)
		paramIndex += 2
	}

	query += fmt.Sprintf("ORDER BY p.created_at DESC, p.id DESC LIMIT $%d", paramIndex)
	args = append(args, fetchLimit)

	logFields := []zap.Field{
		zap.Uint64("viewerID", viewerID),
		zap.String("cursor", cursor),
		zap.Int("limit", limit),
		zap.Int("fetchLimit", fetchLimit),
	}
	r.logger.Debug("Listing feed page with cursor", logFields...)

	var posts []models.Post
	err = pgxscan.Select(ctx, r.db, &posts, query, args...)
	if err != nil {
		r.logger.Error("Failed to query feed page", append(logFields, zap.Error(err))...)
		return nil, "", fmt.Errorf("ошибка получения страницы ленты: %w", err)
	}

	var nextCursor string
	if len(posts) == fetchLimit {
		// There is a next page; the cursor points at the last returned post
		posts = posts[:limit]
		last := posts[limit-1]
		nextCursor = utils.EncodeCursor(last.CreatedAt, last.ID)
	}

	r.logger.Debug("Feed page listed successfully",
		append(logFields, zap.Int("count", len(posts)), zap.Bool("hasNext", nextCursor != ""))...)
	return posts, nextCursor, nil
}

// GetEngagement возвращает актуальные счетчики и ревизию поста.
func (r *pgPostRepository) GetEngagement(ctx context.Context, postID uuid.UUID) (models.EngagementUpdate, error) {
	logFields := []zap.Field{zap.String("postID", postID.String())}
	r.logger.Debug("Reading post engagement counters", logFields...)

	var update models.EngagementUpdate
	err := pgxscan.Get(ctx, r.db, &update, selectEngagementQuery, postID)
	if err != nil {
		if errors.Is(err, pgxV5.ErrNoRows) {
			r.logger.Warn("Post not found for engagement read", logFields...)
			return models.EngagementUpdate{}, models.ErrPostNotFound
		}
		r.logger.Error("Failed to read post engagement counters", append(logFields, zap.Error(err))...)
		return models.EngagementUpdate{}, fmt.Errorf("ошибка чтения счетчиков поста %s: %w", postID, err)
	}
	update.PostID = postID

	return update, nil
}

// IncrementLikeCount увеличивает счетчик лайков и ревизию поста.
func (r *pgPostRepository) IncrementLikeCount(ctx context.Context, postID uuid.UUID) error {
	logFields := []zap.Field{zap.String("postID", postID.String())}
	r.logger.Debug("Incrementing like count", logFields...)

	commandTag, err := r.db.Exec(ctx, incrementLikeCountQuery, postID)
	if err != nil {
		r.logger.Error("Failed to increment like count", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка инкремента счетчика лайков: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		r.logger.Warn("Post not found for incrementing like count", logFields...)
		return models.ErrPostNotFound
	}

	r.logger.Debug("Like count incremented", logFields...)
	return nil
}

// DecrementLikeCount уменьшает счетчик лайков (не ниже нуля) и увеличивает ревизию.
func (r *pgPostRepository) DecrementLikeCount(ctx context.Context, postID uuid.UUID) error {
	logFields := []zap.Field{zap.String("postID", postID.String())}
	r.logger.Debug("Decrementing like count", logFields...)

	commandTag, err := r.db.Exec(ctx, decrementLikeCountQuery, postID)
	if err != nil {
		r.logger.Error("Failed to decrement like count", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка декремента счетчика лайков: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		r.logger.Warn("Post not found for decrementing like count", logFields...)
		return models.ErrPostNotFound
	}

	r.logger.Debug("Like count decremented", logFields...)
	return nil
}

// IncrementRepostCount увеличивает счетчик репостов и ревизию поста.
func (r *pgPostRepository) IncrementRepostCount(ctx context.Context, postID uuid.UUID) error {
	logFields := []zap.Field{zap.String("postID", postID.String())}
	r.logger.Debug("Incrementing repost count", logFields...)

	commandTag, err := r.db.Exec(ctx, incrementRepostCountQuery, postID)
	if err != nil {
		r.logger.Error("Failed to increment repost count", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка инкремента счетчика репостов: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		r.logger.Warn("Post not found for incrementing repost count", logFields...)
		return models.ErrPostNotFound
	}

	r.logger.Debug("Repost count incremented", logFields...)
	return nil
}

// DecrementRepostCount уменьшает счетчик репостов (не ниже нуля) и увеличивает ревизию.
func (r *pgPostRepository) DecrementRepostCount(ctx context.Context, postID uuid.UUID) error {
	logFields := []zap.Field{zap.String("postID", postID.String())}
	r.logger.Debug("Decrementing repost count", logFields...)

	commandTag, err := r.db.Exec(ctx, decrementRepostCountQuery, postID)
	if err != nil {
		r.logger.Error("Failed to decrement repost count", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка декремента счетчика репостов: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		r.logger.Warn("Post not found for decrementing repost count", logFields...)
		return models.ErrPostNotFound
	}

	r.logger.Debug("Repost count decremented", logFields...)
	return nil
}
