package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config содержит настройки для логгера.
type Config struct {
	Level      string // Уровень логирования: debug, info, warn, error
	Encoding   string // Формат записей: json или console
	OutputPath string // Файл для логов, пустая строка означает stdout
	Service    string // Значение поля service в каждой записи
}

// New создает экземпляр zap.Logger на основе конфигурации.
func New(cfg Config) (*zap.Logger, error) {
	// Уровень логирования
	level := zap.NewAtomicLevel()
	logLevel := strings.ToLower(cfg.Level)
	if logLevel == "" {
		logLevel = "info" // По умолчанию info
	}
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		// Логгера еще нет, поэтому сообщаем в stderr напрямую
		fmt.Fprintf(os.Stderr, "Invalid log level '%s', using 'info'. Error: %v\n", cfg.Level, err)
		level.SetLevel(zap.InfoLevel)
	}

	// Кодировщик записей
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder    // Время в ISO8601
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder // INFO, WARN, ERROR заглавными

	encoding := strings.ToLower(cfg.Encoding)
	if encoding != "console" && encoding != "json" {
		encoding = "json" // Неизвестный формат заменяем на json
	}

	// Куда пишем
	outputPath := cfg.OutputPath
	if outputPath == "" {
		outputPath = "stdout"
	}

	// Итоговая конфигурация zap
	zapConfig := zap.Config{
		Level:             level,
		DisableCaller:     true,     // Caller не нужен, экономим на каждой записи
		DisableStacktrace: true,     // Стектрейсы только по явному запросу
		Encoding:          encoding, // json или console
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{outputPath}, // Основной поток логов
		ErrorOutputPaths:  []string{"stderr"},   // Внутренние ошибки самого zap
	}
	if cfg.Service != "" {
		// Поле service помогает отличать сервисы в общем хранилище логов
		zapConfig.InitialFields = map[string]interface{}{"service": cfg.Service}
	}

	// Сборка логгера
	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}
