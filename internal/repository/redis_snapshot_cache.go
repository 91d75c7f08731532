package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"feed-server/internal/models"
)

// DefaultSnapshotTTL ограничивает время жизни снимка счетчиков в Redis.
const DefaultSnapshotTTL = 60 * time.Second

// Compile-time check to ensure redisSnapshotCache implements SnapshotCache
var _ SnapshotCache = (*redisSnapshotCache)(nil)

type redisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSnapshotCache creates a new Redis-backed SnapshotCache.
func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &redisSnapshotCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisSnapshotCache"),
	}
}

func snapshotKey(postID uuid.UUID) string {
	return fmt.Sprintf("engagement_snapshot:%s", postID.String())
}

// SetSnapshot сохраняет снимок счетчиков поста с TTL.
func (c *redisSnapshotCache) SetSnapshot(ctx context.Context, update models.EngagementUpdate) error {
	key := snapshotKey(update.PostID)
	logFields := []zap.Field{
		zap.String("key", key),
		zap.Int64("revision", update.Revision),
	}

	data, err := json.Marshal(update)
	if err != nil {
		c.logger.Error("Failed to marshal engagement snapshot", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to marshal engagement snapshot: %w", err)
	}

	c.logger.Debug("Setting engagement snapshot in Redis", append(logFields, zap.Duration("ttl", c.ttl))...)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Error("Failed to set engagement snapshot in redis", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to set engagement snapshot in redis: %w", err)
	}
	return nil
}

// GetSnapshot возвращает снимок счетчиков поста.
func (c *redisSnapshotCache) GetSnapshot(ctx context.Context, postID uuid.UUID) (models.EngagementUpdate, error) {
	key := snapshotKey(postID)
	c.logger.Debug("Getting engagement snapshot from Redis", zap.String("key", key))

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			c.logger.Debug("Engagement snapshot not found in Redis", zap.String("key", key))
			return models.EngagementUpdate{}, models.ErrNotFound
		}
		c.logger.Error("Failed to get engagement snapshot from redis", zap.String("key", key), zap.Error(err))
		return models.EngagementUpdate{}, fmt.Errorf("failed to get engagement snapshot from redis: %w", err)
	}

	var update models.EngagementUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		// Данные в Redis повреждены, считаем что снимка нет
		c.logger.Error("Failed to unmarshal engagement snapshot from redis data",
			zap.String("key", key), zap.Error(err))
		return models.EngagementUpdate{}, fmt.Errorf("corrupted engagement snapshot in redis for post %s: %w", postID, err)
	}

	return update, nil
}

// InvalidateSnapshot удаляет снимок счетчиков поста из кэша.
func (c *redisSnapshotCache) InvalidateSnapshot(ctx context.Context, postID uuid.UUID) error {
	key := snapshotKey(postID)
	c.logger.Debug("Deleting engagement snapshot from Redis", zap.String("key", key))

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Error("Failed to delete engagement snapshot from redis", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to delete engagement snapshot from redis: %w", err)
	}
	return nil
}
