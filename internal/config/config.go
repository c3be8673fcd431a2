package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// WebSocket
	WriteWait    = 10 * time.Second
	PongWait     = 60 * time.Second
	PingPeriod   = (PongWait * 9) / 10
	MaxFrameSize = 512

	// Messages
	MaxMessageLength = 5000
	PreviewLength    = 100

	// History
	DefaultPageLimit = 50
	MaxPageLimit     = 200

	// Notifications
	NotificationKindNewMessage = "new_message"
)

// Storage locates the database and Redis. The admin CLI needs only this part.
type Storage struct {
	DatabaseDSN   string `envconfig:"DATABASE_DSN" default:"host=localhost user=user password=password dbname=marketchat port=5432 sslmode=disable"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Config holds the process configuration read from the environment.
type Config struct {
	Storage
	HTTPAddr   string        `envconfig:"HTTP_ADDR" default:":8080"`
	JWTSecret  string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL     time.Duration `envconfig:"JWT_TTL" default:"72h"`
	LogLevel   string        `envconfig:"LOG_LEVEL" default:"info"`
	AppEnv     string        `envconfig:"APP_ENV" default:"production"`
	SendBuffer int           `envconfig:"SEND_BUFFER" default:"256"`
	PageLimit  int           `envconfig:"HISTORY_PAGE_LIMIT" default:"50"`
	LocalesDir string        `envconfig:"LOCALES_DIR" default:"internal/localization/locales"`
}

// Load reads .env (if present) and then the environment.
// The returned bool reports whether a .env file was loaded.
func Load() (*Config, bool, error) {
	dotenv := godotenv.Load() == nil

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, dotenv, fmt.Errorf("config: %w", err)
	}
	if cfg.SendBuffer <= 0 {
		return nil, dotenv, fmt.Errorf("config: SEND_BUFFER must be positive, got %d", cfg.SendBuffer)
	}
	if cfg.PageLimit <= 0 || cfg.PageLimit > MaxPageLimit {
		cfg.PageLimit = DefaultPageLimit
	}
	return &cfg, dotenv, nil
}

func (c *Config) IsDevelopment() bool { return c.AppEnv == "development" }

// LoadStorage reads .env (if present) and only the storage settings.
func LoadStorage() (*Storage, error) {
	_ = godotenv.Load()

	var st Storage
	if err := envconfig.Process("", &st); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &st, nil
}
