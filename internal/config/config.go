package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"feed-server/internal/utils"

	"github.com/kelseyhightower/envconfig"
)

// APIConfig содержит конфигурацию для Engagement API
type APIConfig struct {
	// Настройки сервера
	Env      string `envconfig:"APP_ENV" default:"development"`
	Port     string `envconfig:"API_SERVER_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Разрешенные CORS origins через запятую
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`

	// Настройки PostgreSQL
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`
	DBSSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	// Секретное поле БЕЗ envconfig тега
	DBPassword string

	// Настройки Redis (кэш снимков вовлеченности)
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	SnapshotTTL   time.Duration `envconfig:"SNAPSHOT_CACHE_TTL" default:"60s"`

	// Настройки RabbitMQ
	RabbitMQURL          string `envconfig:"RABBITMQ_URL" required:"true"`
	EngagementEventQueue string `envconfig:"ENGAGEMENT_EVENT_QUEUE" default:"engagement_events"`

	// Лимит на toggle-запросы с одного IP в минуту
	ToggleRateLimit int64 `envconfig:"TOGGLE_RATE_LIMIT_PER_MINUTE" default:"60"`

	// Настройки JWT (для проверки токена пользователя в middleware)
	// Секретное поле БЕЗ envconfig тега
	JWTSecret string
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *APIConfig) GetDSN() string {
	// Пароль теперь в c.DBPassword
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// GetAllowedOrigins разбирает список CORS origins из конфигурации.
func (c *APIConfig) GetAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if origin := strings.TrimSpace(part); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// LoadAPIConfig загружает конфигурацию Engagement API из переменных окружения и секретов
func LoadAPIConfig() (*APIConfig, error) {
	var cfg APIConfig
	// Загружаем НЕсекретные переменные
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации engagement-api: %w", err)
	}

	// Загружаем ОБЯЗАТЕЛЬНЫЕ секреты
	var loadErr error
	cfg.DBPassword, loadErr = utils.ReadSecret("DB_PASSWORD", "db_password")
	if loadErr != nil {
		return nil, loadErr
	}

	cfg.JWTSecret, loadErr = utils.ReadSecret("JWT_SECRET", "jwt_secret")
	if loadErr != nil {
		return nil, loadErr
	}

	log.Printf("Конфигурация Engagement API загружена:")
	log.Printf("  Env: %s", cfg.Env)
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  DB DSN: postgres://%s:***@%s:%s/%s?sslmode=%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
	log.Printf("  DB Max Conns: %d", cfg.DBMaxConns)
	log.Printf("  Redis Addr: %s (db %d)", cfg.RedisAddr, cfg.RedisDB)
	log.Printf("  Snapshot TTL: %v", cfg.SnapshotTTL)
	log.Printf("  RabbitMQ URL: %s", cfg.RabbitMQURL)
	log.Printf("  Engagement Event Queue: %s", cfg.EngagementEventQueue)
	log.Printf("  Toggle Rate Limit: %d/min", cfg.ToggleRateLimit)
	log.Println("  JWT Secret: [ЗАГРУЖЕН]")

	return &cfg, nil
}

// GatewayConfig содержит конфигурацию для Realtime Gateway
type GatewayConfig struct {
	// Настройки сервера
	Port        string `envconfig:"GATEWAY_SERVER_PORT" default:"8081"`
	MetricsPort string `envconfig:"GATEWAY_METRICS_PORT" default:"9091"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Настройки RabbitMQ
	RabbitMQURL          string `envconfig:"RABBITMQ_URL" required:"true"`
	EngagementEventQueue string `envconfig:"ENGAGEMENT_EVENT_QUEUE" default:"engagement_events"`

	// Ограничения websocket-подписок
	MaxIDsPerSubscription int `envconfig:"MAX_IDS_PER_SUBSCRIPTION" default:"100"`
	SendBufferSize        int `envconfig:"WS_SEND_BUFFER_SIZE" default:"32"`

	// Настройки JWT (для проверки токена в query-параметре)
	// Секретное поле БЕЗ envconfig тега
	JWTSecret string
}

// LoadGatewayConfig загружает конфигурацию Realtime Gateway из переменных окружения и секретов
func LoadGatewayConfig() (*GatewayConfig, error) {
	var cfg GatewayConfig
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации gateway: %w", err)
	}

	var loadErr error
	cfg.JWTSecret, loadErr = utils.ReadSecret("JWT_SECRET", "jwt_secret")
	if loadErr != nil {
		return nil, loadErr
	}

	log.Printf("Конфигурация Realtime Gateway загружена:")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  Metrics Port: %s", cfg.MetricsPort)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  RabbitMQ URL: %s", cfg.RabbitMQURL)
	log.Printf("  Engagement Event Queue: %s", cfg.EngagementEventQueue)
	log.Printf("  Max IDs Per Subscription: %d", cfg.MaxIDsPerSubscription)
	log.Printf("  WS Send Buffer Size: %d", cfg.SendBufferSize)
	log.Println("  JWT Secret: [ЗАГРУЖЕН]")

	return &cfg, nil
}
