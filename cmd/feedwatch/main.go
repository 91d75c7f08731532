package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"feed-server/internal/authutils"
	"feed-server/internal/clients"
	"feed-server/internal/config"
	"feed-server/internal/engagement"
	"feed-server/internal/realtime"
	"feed-server/pkg/logger"
)

// feedwatch - консольный наблюдатель ленты: загружает первую страницу,
// помечает ее посты видимыми и печатает каждое изменение счетчиков,
// приходящее через WebSocket-шлюз. SIGUSR1 приостанавливает подписки,
// SIGUSR2 возобновляет. Демо-режим периодически переключает лайк первого
// поста, показывая оптимистичный цикл целиком.
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFeedwatchConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// Человекочитаемый вывод наблюдателя
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	watchLog := zerolog.New(output).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil && cfg.Log.Level != "" {
		watchLog = watchLog.Level(lvl)
	}

	// Внутренности SDK пишут через zap в ту же консоль
	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Log.Level,
		Encoding: "console",
		Service:  "feedwatch",
	})
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer zapLogger.Sync()

	// Dev-токен от имени настроенного пользователя
	token, err := authutils.NewDevToken(cfg.Auth.JWTSecret, cfg.Auth.UserID, 24*time.Hour)
	if err != nil {
		log.Fatalf("Ошибка создания dev-токена: %v", err)
	}

	apiClient := clients.NewEngagementAPIClient(cfg.API.BaseURL, token, zapLogger)
	wsClient := clients.NewWSRealtimeClient(cfg.WS.URL, token, zapLogger)

	manager := realtime.NewChannelManager(wsClient, realtime.Config{
		MaxIDsPerChannel: cfg.Sync.MaxIDsPerChannel,
		DebounceInterval: time.Duration(cfg.Sync.DebounceMs) * time.Millisecond,
		ThrottleInterval: time.Duration(cfg.Sync.ThrottleMs) * time.Millisecond,
	}, zapLogger)
	defer manager.Close()

	cache := engagement.NewStateCache(apiClient, manager, engagement.CacheConfig{
		MaxEntries:    cfg.Sync.CacheMaxEntries,
		TargetEntries: cfg.Sync.CacheTargetEntries,
	}, zapLogger)

	// Каждое изменение состояния печатаем в консоль
	unsubscribe := cache.OnChange(func(st engagement.State) {
		event := watchLog.Info().
			Str("post", shortID(st.PostID)).
			Int64("likes", st.LikeCount).
			Int64("reposts", st.RepostCount).
			Int64("replies", st.ReplyCount).
			Int64("revision", st.Revision).
			Bool("liked", st.IsLiked).
			Bool("reposted", st.IsReposted)
		if st.LikePending || st.RepostPending {
			event = event.Bool("pending", true)
		}
		if st.LastErr != nil {
			event = event.AnErr("lastErr", st.LastErr)
		}
		event.Msg("Состояние поста изменилось")
	})
	defer unsubscribe()

	ctx := context.Background()

	// Загружаем первую страницу ленты и заводим движки под ее посты
	page, err := apiClient.Feed(ctx, cfg.Feed.Limit, "")
	if err != nil {
		log.Fatalf("Ошибка загрузки ленты: %v", err)
	}
	if len(page.Posts) == 0 {
		log.Fatal("Лента пуста, наблюдать нечего")
	}

	visible := make([]uuid.UUID, 0, len(page.Posts))
	for _, post := range page.Posts {
		cache.GetOrCreate(post.ID, post.EngagementSnapshot())
		visible = append(visible, post.ID)
		watchLog.Info().
			Str("post", shortID(post.ID)).
			Str("author", post.Author).
			Int64("likes", post.LikeCount).
			Int64("reposts", post.RepostCount).
			Msg(truncate(post.Text, 60))
	}

	manager.UpdateVisiblePosts(visible)
	watchLog.Info().Int("posts", len(visible)).Msg("Наблюдение за видимыми постами запущено")

	// Поток событий реального времени направляем в кэш
	go func() {
		for update := range manager.Updates() {
			cache.ApplyRealtime(update)
		}
	}()

	demoStop := make(chan struct{})
	if cfg.Demo.ToggleEnabled {
		first := page.Posts[0]
		// Движок уже создан при заполнении кэша, забираем тот же экземпляр
		demoEngine := cache.GetOrCreate(first.ID, first.EngagementSnapshot())
		go runDemoToggle(ctx, demoEngine, time.Duration(cfg.Demo.ToggleIntervalS)*time.Second, watchLog, demoStop)
	}

	// SIGUSR1 приостанавливает подписки, SIGUSR2 возобновляет
	lifecycle := make(chan os.Signal, 1)
	signal.Notify(lifecycle, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		for sig := range lifecycle {
			switch sig {
			case syscall.SIGUSR1:
				manager.Pause()
				watchLog.Info().Msg("Подписки приостановлены (SIGUSR1)")
			case syscall.SIGUSR2:
				manager.Resume()
				watchLog.Info().Msg("Подписки возобновлены (SIGUSR2)")
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	close(demoStop)
	watchLog.Info().Msg("Завершение работы")
}

// runDemoToggle периодически переключает лайк поста: мгновенный локальный
// отклик, подтверждение сервера и возврат события через шлюз видны в
// консоли как последовательность изменений состояния.
func runDemoToggle(ctx context.Context, eng *engagement.Engine, interval time.Duration, watchLog zerolog.Logger, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			toggleCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			st, err := eng.ToggleLike(toggleCtx)
			cancel()
			if err != nil {
				watchLog.Warn().
					Err(err).
					Str("post", shortID(eng.PostID())).
					Msg("Демо-переключение не удалось, выполнен откат")
				continue
			}
			watchLog.Info().
				Str("post", shortID(eng.PostID())).
				Bool("liked", st.IsLiked).
				Int64("likes", st.LikeCount).
				Msg("Демо-переключение лайка подтверждено")
		}
	}
}

// shortID возвращает первые 8 символов UUID, в консоли этого достаточно.
func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "..."
}
