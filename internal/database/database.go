package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Параметры повторных попыток подключения к БД.
const (
	connectMaxRetries = 5
	connectRetryDelay = 5 * time.Second
	connectTimeout    = 10 * time.Second
)

// Connect создает пул соединений PostgreSQL и проверяет его доступность.
// При неудаче повторяет попытку подключения несколько раз, чтобы пережить
// старт БД в docker-compose.
func Connect(ctx context.Context, dsn string, maxConns int32, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	var pool *pgxpool.Pool
	for i := 0; i < connectMaxRetries; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		pool, err = pgxpool.NewWithConfig(attemptCtx, poolConfig)
		if err == nil {
			err = pool.Ping(attemptCtx)
			if err == nil {
				cancel()
				logger.Info("Connected to PostgreSQL", zap.Int32("maxConns", poolConfig.MaxConns))
				return pool, nil
			}
			pool.Close()
		}
		cancel()

		logger.Warn("Не удалось подключиться к PostgreSQL",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", connectMaxRetries),
			zap.Duration("retry_delay", connectRetryDelay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectRetryDelay):
		}
	}

	return nil, fmt.Errorf("не удалось подключиться к БД: %w", err)
}

// MigrateUp применяет все миграции схемы, встроенные в бинарник.
func MigrateUp(pool *pgxpool.Pool, logger *zap.Logger) error {
	// Создаем sql.DB поверх пула pgx, migrate работает через database/sql
	db := stdlib.OpenDBFromPool(pool)

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create source driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer migrator.Close()

	migrator.LockTimeout = 30 * time.Second

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Info("Database migrations applied successfully")
	return nil
}
