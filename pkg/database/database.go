package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Database представляет подключение к базе данных
type Database struct {
	Pool   *pgxpool.Pool
	logger *zap.Logger
}

// Config содержит настройки для подключения к базе данных
type Config struct {
	DSN         string        // Строка подключения postgres://...
	MaxConns    int32         // Максимум соединений в пуле, 0 - значение pgx
	MaxConnIdle time.Duration // Время простоя соединения до закрытия
}

// New создает новое подключение к базе данных PostgreSQL
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Database, error) {
	// Разбираем DSN в конфигурацию пула
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("ошибка при разборе строки подключения: %w", err)
	}

	// Переопределяем только явно заданные параметры
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnIdle > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdle
	}

	// Ограничиваем время на установку соединения
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать пул подключений: %w", err)
	}

	// Проверяем, что база действительно отвечает
	if err := pool.Ping(ctx); err != nil {
		pool.Close() // Не оставляем пул висеть при ошибке
		return nil, fmt.Errorf("не удалось подключиться к базе данных: %w", err)
	}

	logger.Info("Успешное подключение к базе данных PostgreSQL", zap.Int32("maxConns", poolConfig.MaxConns))

	return &Database{
		Pool:   pool,
		logger: logger,
	}, nil
}

// Close закрывает подключение к базе данных
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("Подключение к базе данных закрыто")
	}
}
