package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fiction-server/internal/config"
	"fiction-server/internal/deepseek"
	delivery "fiction-server/internal/delivery/http"
	"fiction-server/internal/messaging"
	"fiction-server/internal/repository"
	"fiction-server/internal/service"
	"fiction-server/pkg/database"
	"fiction-server/pkg/logger"
	"fiction-server/pkg/migration"
	"fiction-server/web"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
		Service:  "fiction-server",
	})
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	zap.ReplaceGlobals(zapLogger)

	cfg.LogSummary(zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Хранилище ---
	store, closeStore, err := setupStore(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось инициализировать хранилище", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	// --- События ---
	publisher, closePublisher := setupPublisher(cfg, zapLogger)
	defer closePublisher()

	// --- Генерация ---
	client, err := deepseek.NewClient(deepseek.Config{
		APIKey:         cfg.AIAPIKey,
		BaseURL:        cfg.AIBaseURL,
		Model:          cfg.AIModel,
		Timeout:        cfg.AITimeout,
		Temperature:    &cfg.AITemperature,
		MaxTokens:      cfg.AIMaxTokens,
		EstimateTokens: cfg.AIEstimateTokens,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось создать клиент генерации", zap.Error(err))
	}

	policy, _ := cfg.Policy() // проверено в Validate
	engine := service.NewNarrativeEngine(client, service.EngineConfig{
		StepLimit:         cfg.StepLimit,
		EndedChoicePolicy: policy,
	}, zapLogger)
	storyService := service.NewStoryService(store, engine, publisher, zapLogger)

	// --- HTTP ---
	gin.SetMode(gin.ReleaseMode)
	routerCfg := delivery.RouterConfig{AllowedOrigins: cfg.AllowedOrigins}
	if cfg.TemplateDebug {
		gin.SetMode(gin.DebugMode)
		routerCfg.TemplateGlob = filepath.Join(web.TemplatesDir, "*.html")
	} else {
		templates, err := web.ParseTemplates()
		if err != nil {
			zapLogger.Fatal("Не удалось разобрать шаблоны", zap.Error(err))
		}
		routerCfg.Templates = templates
	}

	// Метрики запросов (префикс gin_...), /metrics монтируется роутером
	routerCfg.Metrics = ginprometheus.NewPrometheus("gin")

	router := delivery.NewRouter(delivery.NewStoryHandler(storyService, zapLogger), routerCfg, zapLogger)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.ListenPort()),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Ход включает вызов провайдера генерации
		WriteTimeout: cfg.AITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zapLogger.Info("Запуск HTTP сервера", zap.Int("port", cfg.ListenPort()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Ошибка HTTP сервера", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Остановка сервера...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Ошибка при остановке HTTP сервера", zap.Error(err))
	}

	zapLogger.Info("Сервер остановлен")
}

// setupStore создает хранилище историй по STORE_DRIVER.
func setupStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.StoryStore, func(), error) {
	noop := func() {}

	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("Используется хранилище в памяти, истории не переживут перезапуск")
		return repository.NewMemoryStore(), noop, nil

	case config.StoreFile:
		store, err := repository.NewFileStore(cfg.StoryDir, logger)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil

	case config.StorePostgres:
		db, err := database.New(ctx, database.Config{
			DSN:         cfg.DatabaseURL,
			MaxConns:    cfg.DBMaxConns,
			MaxConnIdle: cfg.DBIdleTimeout,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		migrator := migration.NewMigrator(migration.Config{
			MigrationsFS:   repository.MigrationsFS,
			MigrationsPath: repository.MigrationsPath,
		}, db.Pool, logger)
		if err := migrator.Up(ctx); err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("ошибка применения миграций: %w", err)
		}
		return repository.NewPgStoryStore(db.Pool, logger), db.Close, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("не удалось подключиться к Redis: %w", err)
		}
		logger.Info("Подключение к Redis установлено", zap.String("addr", cfg.RedisAddr))
		return repository.NewRedisStoryStore(client, logger), func() { _ = client.Close() }, nil
	}

	return nil, noop, fmt.Errorf("неизвестный драйвер хранилища: %s", cfg.StoreDriver)
}

// setupPublisher подключается к RabbitMQ, если задан RABBITMQ_URL.
// Недоступный брокер не мешает запуску: события просто не публикуются.
func setupPublisher(cfg *config.Config, logger *zap.Logger) (messaging.EventPublisher, func()) {
	if cfg.RabbitMQURL == "" {
		logger.Info("RABBITMQ_URL не задан, публикация событий отключена")
		return messaging.NoopPublisher{}, func() {}
	}

	conn, err := messaging.Connect(cfg.RabbitMQURL, 5, 2*time.Second, logger)
	if err != nil {
		logger.Error("RabbitMQ недоступен, публикация событий отключена", zap.Error(err))
		return messaging.NoopPublisher{}, func() {}
	}

	publisher, err := messaging.NewRabbitMQPublisher(conn, logger)
	if err != nil {
		logger.Error("Не удалось создать издателя событий", zap.Error(err))
		_ = conn.Close()
		return messaging.NoopPublisher{}, func() {}
	}

	return publisher, func() {
		_ = publisher.Close()
		_ = conn.Close()
	}
}
