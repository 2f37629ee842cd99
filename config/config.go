package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	// Cloudflare R2, для архивирования завершённых сеток. Опционально:
	// пустой AccountID отключает архив.
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	// Внешняя платформа для зеркалирования результатов. Опционально:
	// пустой BaseURL отключает зеркалирование.
	ReporterBaseURL  string
	ReporterAPIToken string
	ReporterTimeout  time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
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
		portStr = "8080" // Порт по умолчанию
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	reporterTimeout := 10 * time.Second
	if raw := os.Getenv("SCORE_REPORTER_TIMEOUT"); raw != "" {
		reporterTimeout, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SCORE_REPORTER_TIMEOUT environment variable: %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,
		ServerPort:   port,

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),

		ReporterBaseURL:  os.Getenv("SCORE_REPORTER_BASE_URL"),
		ReporterAPIToken: os.Getenv("SCORE_REPORTER_API_TOKEN"),
		ReporterTimeout:  reporterTimeout,
	}

	return cfg, nil
}

// R2Enabled reports whether snapshot archival is configured.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != ""
}

// ReporterEnabled reports whether external score mirroring is configured.
func (c *Config) ReporterEnabled() bool {
	return c.ReporterBaseURL != ""
}
