package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Telegram TelegramConfig
	Bot      BotConfig
	Admin    AdminConfig
	Worker   WorkerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/countmein?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TelegramConfig holds Bot API credentials and webhook settings.
type TelegramConfig struct {
	Token         string
	BotUsername   string // without the leading @
	APIBaseURL    string
	WebhookSecret string // compared against X-Telegram-Bot-Api-Secret-Token; empty disables the check
	ThumbURL      string // thumbnail for inline query results
}

// BotConfig holds conversation and rendering limits.
type BotConfig struct {
	TitleMaxLength int
	MaxOptions     int
	SessionTTL     time.Duration
	ListLimit      int
	InlineLimit    int
	DeliverDelay   time.Duration
	TxRetries      int
}

// AdminConfig holds settings for the read-only poll pages.
type AdminConfig struct {
	APIKey   string // required for the operator listing; empty disables it
	TimeZone string
}

// WorkerConfig holds delivery worker settings.
type WorkerConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
	PollInterval time.Duration
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout: getEnvInt("WRITE_TIMEOUT_SEC", 30),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "countmein"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 20),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Telegram: TelegramConfig{
			Token:         getEnv("TELEGRAM_BOT_TOKEN", ""),
			BotUsername:   getEnv("TELEGRAM_BOT_USERNAME", "countmeinbot"),
			APIBaseURL:    getEnv("TELEGRAM_API_BASE_URL", "https://api.telegram.org"),
			WebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
			ThumbURL:      getEnv("TELEGRAM_THUMB_URL", "https://countmeinbot.appspot.com/thumb.jpg"),
		},
		Bot: BotConfig{
			TitleMaxLength: getEnvInt("BOT_TITLE_MAX_LENGTH", 3072),
			MaxOptions:     getEnvInt("BOT_MAX_OPTIONS", 10),
			SessionTTL:     getEnvDuration("BOT_SESSION_TTL", time.Hour),
			ListLimit:      getEnvInt("BOT_LIST_LIMIT", 30),
			InlineLimit:    getEnvInt("BOT_INLINE_LIMIT", 50),
			DeliverDelay:   getEnvDuration("BOT_DELIVER_DELAY", 500*time.Millisecond),
			TxRetries:      getEnvInt("BOT_TX_RETRIES", 5),
		},
		Admin: AdminConfig{
			APIKey:   getEnv("ADMIN_API_KEY", ""),
			TimeZone: getEnv("ADMIN_TIME_ZONE", "Asia/Singapore"),
		},
		Worker: WorkerConfig{
			MaxRetries:   getEnvInt("WORKER_MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("WORKER_RETRY_BACKOFF", 10*time.Second),
			PollInterval: getEnvDuration("WORKER_POLL_INTERVAL", time.Second),
		},
	}
	if cfg.Telegram.Token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
