package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"feed-server/internal/authutils"
	"feed-server/internal/config"
	"feed-server/internal/gateway"
	"feed-server/pkg/logger"
)

func main() {
	// Загружаем .env файл (если есть) для локальной разработки
	_ = godotenv.Load()

	log.Println("Запуск Realtime Gateway...")

	// Загружаем конфигурацию
	cfg, err := config.LoadGatewayConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	wsLogger := newZerologLogger(cfg.LogLevel)

	// Подключаемся к RabbitMQ
	rabbitConn, err := connectRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Не удалось подключиться к RabbitMQ: %v", err)
	}
	defer rabbitConn.Close()
	log.Println("Успешное подключение к RabbitMQ")

	// Реестр соединений и подписок
	hub := gateway.NewHub(cfg.MaxIDsPerSubscription)

	// Инициализация и запуск консьюмера событий вовлеченности
	mqConsumer, err := gateway.NewConsumer(rabbitConn, hub, cfg.EngagementEventQueue)
	if err != nil {
		log.Fatalf("Не удалось создать консьюмер RabbitMQ: %v", err)
	}
	go func() {
		if err := mqConsumer.StartConsuming(); err != nil {
			log.Printf("Ошибка при работе консьюмера RabbitMQ: %v", err)
		}
	}()
	log.Println("Консьюмер RabbitMQ запущен")

	// Верификатор JWT для токена в query-параметре
	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: "json",
		Service:  "gateway",
	})
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer zapLogger.Sync()

	verifier, err := authutils.NewJWTVerifier(cfg.JWTSecret, zapLogger)
	if err != nil {
		log.Fatalf("Ошибка создания JWT-верификатора: %v", err)
	}

	wsHandler := gateway.NewWebSocketHandler(hub, verifier, cfg.SendBufferSize, wsLogger)

	// Настройка Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())

	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Токен проверяется внутри обработчика, до апгрейда соединения
	e.GET("/ws", wsHandler.Handle)

	// Метрики Prometheus живут на отдельном порту
	startMetricsServer(cfg.MetricsPort)

	log.Printf("WebSocket шлюз слушает на порту %s", cfg.Port)

	// Запуск сервера в горутине
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("Ошибка запуска сервера: ", err)
		}
	}()

	// Ожидание сигнала завершения для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Получен сигнал завершения, начинаем graceful shutdown...")

	// Сначала останавливаем консьюмер, чтобы не терять события во время shutdown
	mqConsumer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal("Ошибка при graceful shutdown Echo: ", err)
	}

	log.Println("Realtime Gateway успешно остановлен")
}

// connectRabbitMQ подключается к RabbitMQ с несколькими попытками.
func connectRabbitMQ(url string) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 5
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		log.Printf("Не удалось подключиться к RabbitMQ (попытка %d/%d): %v. Повтор через %v...", i+1, maxRetries, err, retryDelay)
		time.Sleep(retryDelay)
	}
	return nil, err
}

// newZerologLogger настраивает zerolog для WebSocket-обработчика.
func newZerologLogger(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logLevel := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(level); err == nil && level != "" {
		logLevel = lvl
	}
	zerolog.SetGlobalLevel(logLevel)

	// В режиме разработки используем более читаемый вывод
	if os.Getenv("APP_ENV") != "production" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// startMetricsServer запускает HTTP-сервер для эндпоинта /metrics.
func startMetricsServer(metricsPort string) {
	http.Handle("/metrics", promhttp.Handler())

	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok"}`))
	})

	go func() {
		log.Printf("Запуск HTTP-сервера для метрик Prometheus на :%s...", metricsPort)
		if err := http.ListenAndServe(":"+metricsPort, nil); err != nil {
			log.Fatalf("Ошибка запуска HTTP-сервера для метрик: %v", err)
		}
	}()
}
