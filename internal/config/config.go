package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/prepdesk/attempt-engine/internal/validator"
)

// Config holds everything the engine daemon needs at startup.
type Config struct {
	Port        string `validate:"required"`
	Environment string

	ExamAPIURL   string `validate:"required,url"`
	ExamAPIToken string

	// DataDir backs the file snapshot store; ignored when RedisURL is set.
	DataDir  string
	RedisURL string

	// KafkaBrokers switches lifecycle events from in-process pub/sub to
	// Kafka when non-empty.
	KafkaBrokers []string

	AutosaveIntervalSeconds int `validate:"min=5,max=300"`

	LogLevel slog.Level
}

// LoadConfig reads .env (if present) then the environment.
func LoadConfig() (*Config, error) {
	// Missing .env is fine; supplying everything via environment is the
	// production path.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                    envOr("PORT", "8085"),
		Environment:             envOr("ENVIRONMENT", "development"),
		ExamAPIURL:              os.Getenv("EXAM_API_URL"),
		ExamAPIToken:            os.Getenv("EXAM_API_TOKEN"),
		DataDir:                 envOr("DATA_DIR", ".attempt-data"),
		RedisURL:                os.Getenv("REDIS_URL"),
		AutosaveIntervalSeconds: 30,
		LogLevel:                parseLogLevel(os.Getenv("LOG_LEVEL")),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if raw := os.Getenv("AUTOSAVE_INTERVAL_SECONDS"); raw != "" {
		interval, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid AUTOSAVE_INTERVAL_SECONDS %q: %w", raw, err)
		}
		cfg.AutosaveIntervalSeconds = interval
	}

	if err := validator.New().Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
