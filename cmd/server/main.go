package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyprus7/quest-engine/internal/auth"
	"github.com/cyprus7/quest-engine/internal/config"
	"github.com/cyprus7/quest-engine/internal/content"
	"github.com/cyprus7/quest-engine/internal/database"
	"github.com/cyprus7/quest-engine/internal/effects"
	"github.com/cyprus7/quest-engine/internal/handler"
	"github.com/cyprus7/quest-engine/internal/locker"
	"github.com/cyprus7/quest-engine/internal/logger"
	"github.com/cyprus7/quest-engine/internal/lottery"
	"github.com/cyprus7/quest-engine/internal/messaging"
	"github.com/cyprus7/quest-engine/internal/repository"
	"github.com/cyprus7/quest-engine/internal/service"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	log.Println("Запуск Quest Engine...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	zapLogger.Info("Logger initialized",
		zap.String("logLevel", cfg.LogLevel),
		zap.String("storeDriver", cfg.StoreDriver),
		zap.String("contentDir", cfg.ContentDir))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := setupStore(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось инициализировать хранилище прогресса", zap.Error(err))
	}
	defer closeStore()

	lock, closeLocker, err := setupLocker(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось инициализировать блокировки", zap.Error(err))
	}
	defer closeLocker()

	exporter, closeExporter, err := setupExporter(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось инициализировать экспорт наград", zap.Error(err))
	}
	defer closeExporter()

	contentRepo, err := content.NewCachedRepository(
		content.NewFileRepository(os.DirFS(cfg.ContentDir), cfg.ContentDefaultLocale, zapLogger),
		cfg.ContentCacheSize,
		zapLogger,
	)
	if err != nil {
		zapLogger.Fatal("Не удалось создать кэш контента", zap.Error(err))
	}

	go purgeContentOnHangup(ctx, contentRepo, zapLogger)

	seeder, err := lottery.NewSeeder([]byte(cfg.RNGSecret))
	if err != nil {
		zapLogger.Fatal("Не удалось создать генератор розыгрышей", zap.Error(err))
	}
	verifier, err := auth.NewJWTVerifier(cfg.JWTSecret, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось создать JWT верификатор", zap.Error(err))
	}

	resolver := effects.NewResolver(store, zapLogger)
	questService := service.NewQuestService(contentRepo, store, resolver, lock, zapLogger)
	chestService := service.NewChestService(store, seeder, exporter, lock, zapLogger)
	questHandler := handler.NewQuestHandler(questService, chestService, verifier.VerifyToken, cfg.ContentDefaultLocale, zapLogger)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echoMiddleware.RequestID())
	e.Use(handler.EchoZapLogger(zapLogger))
	e.Use(echoMiddleware.Recover())
	questHandler.RegisterRoutes(e)

	go func() {
		zapLogger.Info("Quest сервер слушает", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Ошибка запуска HTTP сервера", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Получен сигнал завершения, начинаем graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Ошибка при graceful shutdown Echo", zap.Error(err))
	}
	zapLogger.Info("Quest Engine остановлен")
}

// purgeContentOnHangup сбрасывает кэш контента по SIGHUP (после выкладки новых файлов квестов).
func purgeContentOnHangup(ctx context.Context, repo *content.CachedRepository, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			repo.Purge()
			logger.Info("Кэш контента сброшен по SIGHUP")
		}
	}
}

func setupStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.ProgressStore, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("Используется хранилище в памяти, прогресс не переживет перезапуск")
		return repository.NewMemoryProgressStore(logger), func() {}, nil
	}

	logger.Info("Подключение к PostgreSQL", zap.String("dsn", cfg.RedactedDSN()))
	pool, err := database.NewPool(ctx, database.PoolConfig{
		DSN:         cfg.GetDSN(),
		MaxConns:    cfg.DBMaxConns,
		IdleTimeout: cfg.DBIdleTimeout,
		MaxRetries:  5,
		RetryDelay:  3 * time.Second,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DBAutoMigrate {
		if err := database.ApplyMigrations(pool, logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return repository.NewPgProgressStore(pool, logger), pool.Close, nil
}

func setupLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (locker.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR не задан, блокировки действуют только внутри процесса")
		return locker.NewLocalLocker(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Ошибка закрытия Redis клиента", zap.Error(err))
		}
	}
	return locker.NewRedisLocker(client, locker.RedisConfig{TTL: cfg.LockTTL, Wait: cfg.LockWait}, logger), closeFn, nil
}

func setupExporter(cfg *config.Config, logger *zap.Logger) (messaging.RewardsExporter, func(), error) {
	if cfg.RabbitMQURL == "" {
		logger.Warn("RABBITMQ_URL не задан, награды экспортируются только в лог")
		return messaging.NewLogRewardsExporter(logger), func() {}, nil
	}
	conn, err := connectRabbitMQ(cfg.RabbitMQURL, logger)
	if err != nil {
		return nil, nil, err
	}
	exporter, closeChannel, err := messaging.NewRabbitMQRewardsExporter(conn, cfg.RewardsExportQueue, logger)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	closeFn := func() {
		if err := closeChannel(); err != nil {
			logger.Warn("Ошибка закрытия канала RabbitMQ", zap.Error(err))
		}
		if err := conn.Close(); err != nil {
			logger.Warn("Ошибка закрытия соединения RabbitMQ", zap.Error(err))
		}
	}
	return exporter, closeFn, nil
}

func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 5
	retryDelay := 3 * time.Second
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Не удалось подключиться к RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, err
}
