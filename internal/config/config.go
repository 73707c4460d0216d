package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const (
	BackendSQLite = "sqlite"
	BackendValkey = "valkey"
)

type Config struct {
	ServerPort  string   `env:"SERVER_PORT" envDefault:"8080"`
	DBPath      string   `env:"DB_PATH" envDefault:"rps.db"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFile     string   `env:"LOG_FILE"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"sqlite"`
	Valkey         ValkeyConfig

	// set by Load, not from the environment
	DotEnvLoaded bool `env:"-"`
}

type ValkeyConfig struct {
	Addr        string        `env:"VALKEY_ADDR" envDefault:"localhost:6379"`
	Password    string        `env:"VALKEY_PASSWORD"`
	DB          int           `env:"VALKEY_DB" envDefault:"0"`
	KeyPrefix   string        `env:"VALKEY_KEY_PREFIX" envDefault:"rps"`
	DialTimeout time.Duration `env:"VALKEY_DIAL_TIMEOUT" envDefault:"5s"`
}

func Load() (*Config, error) {
	loaded := godotenv.Load() == nil

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.DotEnvLoaded = loaded
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite backend")
		}
	case BackendValkey:
		if c.Valkey.Addr == "" {
			return fmt.Errorf("VALKEY_ADDR is required for the valkey backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return nil
}

// LogSummary writes the effective configuration, minus secrets.
func (c *Config) LogSummary(logger zerolog.Logger) {
	if !c.DotEnvLoaded {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}
	logger.Info().
		Str("storage_backend", c.StorageBackend).
		Str("db_path", c.DBPath).
		Str("valkey_addr", c.Valkey.Addr).
		Str("server_port", c.ServerPort).
		Str("log_level", c.LogLevel).
		Strs("cors_origins", c.CORSOrigins).
		Msg("configuration loaded")
}

var Module = fx.Provide(Load)
