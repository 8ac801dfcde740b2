package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/bracketlab/bracket-engine/storage"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	// Период фонового прохода резолвера по активным сеткам.
	ResolveInterval time.Duration

	// Выгрузка снапшотов (опциональна: пустые поля выключают экспорт).
	R2 storage.CloudflareR2Config
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Ошибка отсутствия .env не фатальна.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	interval := 30 * time.Second
	if raw := os.Getenv("RESOLVE_INTERVAL"); raw != "" {
		interval, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid RESOLVE_INTERVAL environment variable: %w", err)
		}
		if interval <= 0 {
			return nil, fmt.Errorf("RESOLVE_INTERVAL must be positive, got %v", interval)
		}
	}

	cfg := &Config{
		DatabaseURL:     dbURL,
		JWTSecretKey:    jwtKey,
		ServerPort:      port,
		ResolveInterval: interval,
		R2: storage.CloudflareR2Config{
			AccountID:       os.Getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			BucketName:      os.Getenv("R2_BUCKET_NAME"),
			PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
		},
	}

	return cfg, nil
}

// R2Configured сообщает, заданы ли все параметры внешнего хранилища.
func (c *Config) R2Configured() bool {
	return c.R2.AccountID != "" && c.R2.AccessKeyID != "" &&
		c.R2.SecretAccessKey != "" && c.R2.BucketName != "" && c.R2.PublicBaseURL != ""
}
