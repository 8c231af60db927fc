// Package config loads the server configuration from YAML and applies
// environment overrides on top. Env always wins over the file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		ReadTimeout        string   `yaml:"read_timeout"`
		WriteTimeout       string   `yaml:"write_timeout"`
		ShutdownTimeout    string   `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // postgres | memory
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MinIdleConns    int    `yaml:"min_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Driver string `yaml:"driver"` // memory | redis
		Redis  struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		Prefix string `yaml:"prefix"`
	} `yaml:"cache"`

	Issuer struct {
		URL        string `yaml:"url"`
		AccessTTL  string `yaml:"access_ttl"`
		IDTokenTTL string `yaml:"id_token_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
		CodeTTL    string `yaml:"code_ttl"`
	} `yaml:"issuer"`

	Keys struct {
		// PEM file with the PKCS#8 RSA signing key. Empty in dev mode
		// generates an ephemeral key at startup.
		SigningKeyFile string `yaml:"signing_key_file"`
	} `yaml:"keys"`

	Consent struct {
		// Browser-facing consent page, receives ?challenge=<token>.
		UIURL        string `yaml:"ui_url"`
		ChallengeTTL string `yaml:"challenge_ttl"`
		// APIKey is the shared credential the Consent UI presents in
		// X-Api-Key on the consent routes.
		APIKey string `yaml:"api_key"`
	} `yaml:"consent"`

	Identity struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Timeout string `yaml:"timeout"`
	} `yaml:"identity"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Token   struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"token"`
	} `yaml:"rate"`

	Cleanup struct {
		Enabled  bool   `yaml:"enabled"`
		Interval string `yaml:"interval"`
		// Keep consumed/revoked rows around for audit before deletion.
		Retention string `yaml:"retention"`
	} `yaml:"cleanup"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads path, fills defaults, applies env overrides, validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns a config with all defaults applied and env overrides
// on top, for running without a YAML file (dev mode). Storage defaults
// to the in-memory driver here.
func Default() (*Config, error) {
	var c Config
	c.Storage.Driver = "memory"
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "20s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "15s"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "idp"
	}
	if c.Issuer.URL == "" {
		c.Issuer.URL = "http://localhost:8080"
	}
	if c.Issuer.AccessTTL == "" {
		c.Issuer.AccessTTL = "1h"
	}
	if c.Issuer.IDTokenTTL == "" {
		c.Issuer.IDTokenTTL = "1h"
	}
	if c.Issuer.RefreshTTL == "" {
		c.Issuer.RefreshTTL = "720h" // 30d
	}
	if c.Issuer.CodeTTL == "" {
		c.Issuer.CodeTTL = "10m"
	}
	if c.Consent.ChallengeTTL == "" {
		c.Consent.ChallengeTTL = "10m"
	}
	if c.Consent.APIKey == "" {
		c.Consent.APIKey = "dev-consent-key"
	}
	if c.Identity.Timeout == "" {
		c.Identity.Timeout = "5s"
	}
	if c.Rate.Token.Limit == 0 {
		c.Rate.Token.Limit = 30
	}
	if c.Rate.Token.Window == "" {
		c.Rate.Token.Window = "1m"
	}
	if c.Cleanup.Interval == "" {
		c.Cleanup.Interval = "10m"
	}
	if c.Cleanup.Retention == "" {
		c.Cleanup.Retention = "24h"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("CACHE_DRIVER"); ok {
		c.Cache.Driver = v
	}
	if v, ok := getEnvStr("REDIS_HOST"); ok {
		c.Cache.Redis.Host = v
	}
	if v, ok := getEnvInt("REDIS_PORT"); ok {
		c.Cache.Redis.Port = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvStr("ISSUER_URL"); ok {
		c.Issuer.URL = v
	}
	if v, ok := getEnvStr("SIGNING_KEY_FILE"); ok {
		c.Keys.SigningKeyFile = v
	}
	if v, ok := getEnvStr("CONSENT_UI_URL"); ok {
		c.Consent.UIURL = v
	}
	if v, ok := getEnvStr("CONSENT_API_KEY"); ok {
		c.Consent.APIKey = v
	}
	if v, ok := getEnvStr("IDENTITY_BASE_URL"); ok {
		c.Identity.BaseURL = v
	}
	if v, ok := getEnvStr("IDENTITY_API_KEY"); ok {
		c.Identity.APIKey = v
	}
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvBool("CLEANUP_ENABLED"); ok {
		c.Cleanup.Enabled = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("config: storage.dsn is required for the postgres driver")
	}
	u, err := url.Parse(c.Issuer.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: issuer.url must be an absolute URL, got %q", c.Issuer.URL)
	}
	if c.App.Env == "prod" && u.Scheme != "https" {
		return fmt.Errorf("config: issuer.url must be https in prod")
	}
	if c.App.Env == "prod" && c.Consent.APIKey == "dev-consent-key" {
		return fmt.Errorf("config: consent.api_key must be set explicitly in prod")
	}
	for _, d := range []string{
		c.Server.ReadTimeout, c.Server.WriteTimeout, c.Server.ShutdownTimeout,
		c.Issuer.AccessTTL, c.Issuer.IDTokenTTL, c.Issuer.RefreshTTL, c.Issuer.CodeTTL,
		c.Consent.ChallengeTTL, c.Identity.Timeout, c.Rate.Token.Window,
		c.Cleanup.Interval, c.Cleanup.Retention,
	} {
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("config: bad duration %q: %w", d, err)
		}
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return fmt.Errorf("config: bad duration %q: %w", c.Storage.Postgres.ConnMaxLifetime, err)
		}
	}
	return nil
}

// Duration parses a string already checked by Validate.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}
