package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/Neosyss/guidly-web/internal/validator"
)

// Config holds all configuration for the Guidly client.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text" validate:"oneof=text json"`

	// Backend API
	APIBaseURL  string        `env:"GUIDLY_API_URL" envDefault:"http://localhost:8000" validate:"required,url"`
	HTTPTimeout time.Duration `env:"GUIDLY_HTTP_TIMEOUT" envDefault:"30s"`

	// Client-side state (tokens, cached user)
	StateDir string `env:"GUIDLY_STATE_DIR"`

	// Transient error banner lifetime in the terminal UI.
	ErrorBannerTTL time.Duration `env:"GUIDLY_ERROR_TTL" envDefault:"5s"`
}

// Load reads configuration from environment variables. When
// GUIDLY_STATE_DIR is unset, state defaults to ~/.guidly.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir for state: %w", err)
		}
		cfg.StateDir = filepath.Join(home, ".guidly")
	}

	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
