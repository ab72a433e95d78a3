package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds runtime settings for the rental client.
//
// Durations are time.Duration values; in the environment and in JSON they
// are written as Go duration strings ("15s", "168h").
type Config struct {
	APIBaseURL   string `env:"API_URL"`
	DatabasePath string `env:"DB_PATH"`
	CallbackAddr string `env:"CALLBACK_ADDR"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
	RefreshTimeout time.Duration `env:"REFRESH_TIMEOUT"`

	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL"`
	// StoreSecret seals stored tokens when set.
	StoreSecret string `env:"STORE_SECRET"`

	RedirectDelay time.Duration `env:"REDIRECT_DELAY"`
	CountdownTick time.Duration `env:"COUNTDOWN_TICK"`

	LogLevel string `env:"LOG_LEVEL"`
	LogFile  string `env:"LOG_FILE"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:8080"
	c.DatabasePath = "rentclient.db"
	c.CallbackAddr = "127.0.0.1:8765"
	c.RequestTimeout = 15 * time.Second
	c.RefreshTimeout = 10 * time.Second
	c.AccessTokenTTL = 24 * time.Hour
	c.RefreshTokenTTL = 7 * 24 * time.Hour
	c.RedirectDelay = 5 * time.Second
	c.CountdownTick = time.Second
	c.LogLevel = "info"
}

// Validate reports the first setting the client cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api url %q", c.APIBaseURL)
	}
	if c.DatabasePath == "" {
		return errors.New("database path is required")
	}
	if c.CallbackAddr == "" {
		return errors.New("callback address is required")
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"request timeout", c.RequestTimeout},
		{"refresh timeout", c.RefreshTimeout},
		{"access token ttl", c.AccessTokenTTL},
		{"refresh token ttl", c.RefreshTokenTTL},
		{"redirect delay", c.RedirectDelay},
		{"countdown tick", c.CountdownTick},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays a .env
// file, environment variables, a JSON file and command-line flags, in that
// order. Later sources take precedence over earlier ones.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := loadDotEnv(args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
