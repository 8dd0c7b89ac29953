package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sethvargo/go-envconfig"
)

const (
	maxPageSize         = 200
	minPageSize         = 10
	defaultRedirectPort = 42424
	defaultAPIBaseURL   = "https://www.strava.com/api/v3"
	defaultOAuthBaseURL = "https://www.strava.com/oauth"
)

var ErrNotConfigured = errors.New("strava client id and secret are not configured")

type Config struct {
	ClientID     string `toml:"client_id" env:"STRAVA_CLIENT_ID, overwrite"`
	ClientSecret string `toml:"client_secret" env:"STRAVA_CLIENT_SECRET, overwrite"`
	RefreshToken string `toml:"refresh_token" env:"STRAVA_REFRESH_TOKEN, overwrite"`
	PageSize     int    `toml:"page_size,omitempty" env:"SPORTFREI_PAGE_SIZE, overwrite"`
	LogLevel     string `toml:"log_level,omitempty" env:"SPORTFREI_LOG_LEVEL, overwrite"`
	APIBaseURL   string `toml:"api_base_url,omitempty" env:"STRAVA_API_BASE_URL, overwrite"`
	OAuthBaseURL string `toml:"oauth_base_url,omitempty" env:"STRAVA_OAUTH_BASE_URL, overwrite"`
	RedirectPort int    `toml:"redirect_port,omitempty" env:"SPORTFREI_REDIRECT_PORT, overwrite"`
}

var (
	userConfigDir = os.UserConfigDir
	envLookuper   = envconfig.OsLookuper
)

func DefaultConfig() Config {
	return Config{
		LogLevel:     "info",
		APIBaseURL:   defaultAPIBaseURL,
		OAuthBaseURL: defaultOAuthBaseURL,
		RedirectPort: defaultRedirectPort,
	}
}

// LoadConfig reads config.toml (a missing file is not an error) and then
// applies environment overrides.
func LoadConfig(ctx context.Context) (Config, error) {
	return loadConfigFrom(ctx, configPath(), envLookuper())
}

func loadConfigFrom(ctx context.Context, path string, lookuper envconfig.Lookuper) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, fmt.Errorf("environment: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func SaveConfig(cfg Config) error {
	return saveConfigTo(configPath(), cfg)
}

func saveConfigTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

func configPath() string {
	configDir, err := userConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(configDir, "sportfrei", "config.toml")
}

func (c *Config) normalize() {
	c.ClientID = strings.TrimSpace(c.ClientID)
	c.ClientSecret = strings.TrimSpace(c.ClientSecret)
	c.RefreshToken = strings.TrimSpace(c.RefreshToken)
	c.APIBaseURL = strings.TrimRight(valueOrFallback(c.APIBaseURL, defaultAPIBaseURL), "/")
	c.OAuthBaseURL = strings.TrimRight(valueOrFallback(c.OAuthBaseURL, defaultOAuthBaseURL), "/")
	if c.RedirectPort <= 0 {
		c.RedirectPort = defaultRedirectPort
	}
	if c.PageSize < 0 {
		c.PageSize = 0
	}
	if c.PageSize > maxPageSize {
		c.PageSize = maxPageSize
	}
}

func (c Config) HasClient() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

func (c Config) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// PageSizeFor returns the configured page size, or one derived from the
// terminal height: one row per activity after header and footer chrome.
func (c Config) PageSizeFor(height int) int {
	if c.PageSize > 0 {
		return c.PageSize
	}
	return clamp(height-6, minPageSize, maxPageSize)
}
