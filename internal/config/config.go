package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL       string        `env:"DATABASE_URL" env-default:"kanban.db"`
	DatabaseLogLevel  string        `env:"DATABASE_LOG_LEVEL" env-default:"warn"`
	JWTSecret         string        `env:"JWT_SECRET" env-default:"your-secret-key-change-in-production"`
	Port              string        `env:"PORT" env-default:"3000"`
	CORSOrigin        string        `env:"CORS_ORIGIN" env-default:"http://localhost:3001"`
	ExportWebhookURL  string        `env:"N8N_WEBHOOK_URL" env-default:"http://localhost:5678/webhook/kanban-export"`
	ExportTimeout     time.Duration `env:"EXPORT_TIMEOUT" env-default:"10s"`
	FCMServiceAccount string        `env:"FCM_SERVICE_ACCOUNT"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"5s"`
	DefaultBoardName  string        `env:"DEFAULT_BOARD_NAME" env-default:"Kanban Board"`
}

// Load reads the optional env file without overriding variables already set
// in the process environment, then fills Config from the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("godotenv.Load: %w", err)
		}
	}

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("cleanenv.ReadEnv: %w", err)
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return ":" + c.Port
}
