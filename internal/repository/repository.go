package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"feed-server/internal/models"
)

// DBTX абстрагирует исполнителя запросов к PostgreSQL.
// Ему удовлетворяют и *pgxpool.Pool, и pgx.Tx, поэтому репозитории
// не управляют транзакциями сами, их открывает вызывающий код.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PostRepository определяет методы для работы с постами и их счетчиками.
type PostRepository interface {
	// Create сохраняет новый пост. Повторная вставка с тем же ID игнорируется.
	Create(ctx context.Context, post *models.Post) error

	// GetByID возвращает пост со счетчиками и флагами зрителя
	// (лайкнул/репостнул ли пост пользователь viewerID).
	// Возвращает models.ErrPostNotFound, если пост не найден.
	GetByID(ctx context.Context, postID uuid.UUID, viewerID uint64) (*models.Post, error)

	// ListFeed возвращает страницу ленты в обратном хронологическом порядке.
	// Возвращает срез постов, курсор следующей страницы (пустой на последней
	// странице) и ошибку. Невалидный курсор оборачивает models.ErrInvalidInput.
	ListFeed(ctx context.Context, viewerID uint64, cursor string, limit int) ([]models.Post, string, error)

	// GetEngagement возвращает актуальные счетчики и ревизию поста.
	// Возвращает models.ErrPostNotFound, если пост не найден.
	GetEngagement(ctx context.Context, postID uuid.UUID) (models.EngagementUpdate, error)

	// IncrementLikeCount увеличивает счетчик лайков и ревизию поста.
	IncrementLikeCount(ctx context.Context, postID uuid.UUID) error

	// DecrementLikeCount уменьшает счетчик лайков (не ниже нуля) и увеличивает ревизию.
	DecrementLikeCount(ctx context.Context, postID uuid.UUID) error

	// IncrementRepostCount увеличивает счетчик репостов и ревизию поста.
	IncrementRepostCount(ctx context.Context, postID uuid.UUID) error

	// DecrementRepostCount уменьшает счетчик репостов (не ниже нуля) и увеличивает ревизию.
	DecrementRepostCount(ctx context.Context, postID uuid.UUID) error
}

// EngagementRepository определяет методы для работы с отметками лайков и репостов.
type EngagementRepository interface {
	// AddLike добавляет запись о лайке.
	// Возвращает models.ErrLikeAlreadyExists, если пользователь уже лайкнул пост,
	// и models.ErrPostNotFound, если пост не существует.
	AddLike(ctx context.Context, userID uint64, postID uuid.UUID) error

	// RemoveLike удаляет запись о лайке.
	// Возвращает models.ErrLikeNotFound, если лайка не было.
	RemoveLike(ctx context.Context, userID uint64, postID uuid.UUID) error

	// CheckLike проверяет, лайкнул ли пользователь пост.
	CheckLike(ctx context.Context, userID uint64, postID uuid.UUID) (bool, error)

	// AddRepost добавляет запись о репосте.
	// Возвращает models.ErrRepostAlreadyExists, если пользователь уже репостнул пост,
	// и models.ErrPostNotFound, если пост не существует.
	AddRepost(ctx context.Context, userID uint64, postID uuid.UUID) error

	// RemoveRepost удаляет запись о репосте.
	// Возвращает models.ErrRepostNotFound, если репоста не было.
	RemoveRepost(ctx context.Context, userID uint64, postID uuid.UUID) error

	// CheckRepost проверяет, репостнул ли пользователь пост.
	CheckRepost(ctx context.Context, userID uint64, postID uuid.UUID) (bool, error)
}

// SnapshotCache кэширует последние известные счетчики постов для быстрой отдачи
// без похода в основную БД.
type SnapshotCache interface {
	// SetSnapshot сохраняет снимок счетчиков поста с TTL.
	SetSnapshot(ctx context.Context, update models.EngagementUpdate) error

	// GetSnapshot возвращает снимок счетчиков поста.
	// Возвращает models.ErrNotFound, если снимка в кэше нет.
	GetSnapshot(ctx context.Context, postID uuid.UUID) (models.EngagementUpdate, error)

	// InvalidateSnapshot удаляет снимок счетчиков поста из кэша.
	InvalidateSnapshot(ctx context.Context, postID uuid.UUID) error
}
