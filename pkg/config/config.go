package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mudler/remindbot/pkg/xstrings"
)

const EnvPrefix = "REMINDBOT_"

const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

type Config struct {
	TelegramToken  string   `env:"TELEGRAM_TOKEN"`
	TelegramAdmins []string `env:"TELEGRAM_ADMINS" envSeparator:","`
	WebhookURL     string   `env:"WEBHOOK_URL"`
	WebhookSecret  string   `env:"WEBHOOK_SECRET"`

	ListenAddr string   `env:"LISTEN_ADDR"`
	APIKeys    []string `env:"API_KEYS" envSeparator:","`

	StateDir string `env:"STATE_DIR" envDefault:"./state"`
	Store    string `env:"STORE" envDefault:"json"`

	Timezone        string        `env:"TIMEZONE" envDefault:"Local"`
	DeliveryTimeout time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"10s"`
	DraftTTL        time.Duration `env:"DRAFT_TTL" envDefault:"30m"`

	location *time.Location
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(env.ToMap(os.Environ()))
}

// LoadFrom reads the configuration from the given variables.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	// PORT is what hosting platforms set
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":5000"
		if port := environ["PORT"]; port != "" {
			cfg.ListenAddr = ":" + port
		}
	}

	if cfg.WebhookURL != "" && !strings.Contains(cfg.WebhookURL, "://") {
		cfg.WebhookURL = "https://" + cfg.WebhookURL
	}
	cfg.WebhookURL = strings.TrimRight(cfg.WebhookURL, "/")

	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if cfg.Store != StoreJSON && cfg.Store != StoreSQLite {
		return nil, fmt.Errorf("unknown store %q, use %q or %q", cfg.Store, StoreJSON, StoreSQLite)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	if cfg.DeliveryTimeout <= 0 {
		return nil, errors.New("delivery timeout must be positive")
	}

	cfg.APIKeys = xstrings.Fields(cfg.APIKeys)
	cfg.TelegramAdmins = xstrings.Fields(cfg.TelegramAdmins)

	return cfg, nil
}

// Location is the zone reminder times of day are interpreted in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// StorePath is the file the configured store keeps its data in.
func (c *Config) StorePath() string {
	if c.Store == StoreSQLite {
		return filepath.Join(c.StateDir, "reminders.db")
	}
	return filepath.Join(c.StateDir, "reminders.json")
}
