package config

import (
	"fmt"
	"log"

	"github.com/ilyakaznacheev/cleanenv"
)

// FeedwatchConfig содержит конфигурацию консольного наблюдателя ленты.
type FeedwatchConfig struct {
	API  FeedAPIConfig
	WS   FeedWSConfig
	Auth FeedAuthConfig
	Sync SyncConfig
	Feed FeedPageConfig
	Demo DemoConfig
	Log  FeedLogConfig
}

type FeedAPIConfig struct {
	BaseURL string `yaml:"base_url" env:"FEED_API_URL" env-default:"http://localhost:8080"`
}

type FeedWSConfig struct {
	URL string `yaml:"url" env:"FEED_WS_URL" env-default:"ws://localhost:8081/ws"`
}

type FeedAuthConfig struct {
	UserID uint64 `yaml:"user_id" env:"FEEDWATCH_USER_ID" env-default:"1"`
	// Секрет для подписи dev-токена, должен совпадать с секретом сервисов
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"dev-secret"`
}

// SyncConfig задает параметры клиентского движка синхронизации.
type SyncConfig struct {
	MaxIDsPerChannel   int `yaml:"max_ids_per_channel" env:"SYNC_MAX_IDS_PER_CHANNEL" env-default:"100"`
	DebounceMs         int `yaml:"debounce_ms" env:"SYNC_DEBOUNCE_MS" env-default:"500"`
	ThrottleMs         int `yaml:"throttle_ms" env:"SYNC_THROTTLE_MS" env-default:"300"`
	CacheMaxEntries    int `yaml:"cache_max_entries" env:"SYNC_CACHE_MAX_ENTRIES" env-default:"512"`
	CacheTargetEntries int `yaml:"cache_target_entries" env:"SYNC_CACHE_TARGET_ENTRIES" env-default:"384"`
}

type FeedPageConfig struct {
	Limit int `yaml:"limit" env:"FEED_PAGE_LIMIT" env-default:"20"`
}

// DemoConfig включает периодическое переключение лайка первого поста ленты,
// чтобы наблюдать оптимистичный цикл мутации вживую.
type DemoConfig struct {
	ToggleEnabled   bool `yaml:"toggle_enabled" env:"DEMO_TOGGLE_ENABLED" env-default:"false"`
	ToggleIntervalS int  `yaml:"toggle_interval_s" env:"DEMO_TOGGLE_INTERVAL_S" env-default:"15"`
}

type FeedLogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"debug"`
}

// LoadFeedwatchConfig загружает конфигурацию наблюдателя из файла и переменных окружения.
func LoadFeedwatchConfig() (*FeedwatchConfig, error) {
	configPath := "feedwatch.yml" // Путь по умолчанию

	var cfg FeedwatchConfig

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v. Попытка чтения из переменных окружения.", configPath, err)
		// Если файл не найден или ошибка чтения, пытаемся загрузить только из env
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
		}
	}

	log.Printf("Конфигурация feedwatch загружена. API: %s, WS: %s, UserID: %d", cfg.API.BaseURL, cfg.WS.URL, cfg.Auth.UserID)

	return &cfg, nil
}
