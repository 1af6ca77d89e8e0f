package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the logsink server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Redis    RedisConfig    `yaml:"redis"`
	Ingest   IngestConfig   `yaml:"ingest"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Env        string `yaml:"env"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MinConns        int           `yaml:"min_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// AuthConfig holds the two credential pairs. A pair counts as configured
// when either of its fields is set.
type AuthConfig struct {
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	AdminAccount  string `yaml:"admin_account"`
	AdminPassword string `yaml:"admin_password"`
}

// BaselineConfigured reports whether the baseline pair is set.
func (a AuthConfig) BaselineConfigured() bool {
	return a.Username != "" || a.Password != ""
}

// AdminConfigured reports whether the elevated pair is set.
func (a AuthConfig) AdminConfigured() bool {
	return a.AdminAccount != "" || a.AdminPassword != ""
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type IngestConfig struct {
	// RateLimit is the number of public submissions allowed per client
	// address per minute. Zero disables limiting.
	RateLimit int `yaml:"rate_limit"`
	// HiddenPrefixes lists first-line prefixes left out of the HTML category
	// listing unless explicitly requested.
	HiddenPrefixes []string `yaml:"hidden_prefixes"`
}

var defaultHiddenPrefixes = []string{
	"LUA ERROR: type mismatch for",
	"LUA ERROR: unfinished bytes",
}

// Load reads configuration from an optional YAML file named by
// LOGSINK_CONFIG, then environment variables, and returns a validated Config.
// Environment variables win over file values.
func Load() (*Config, error) {
	return LoadWith("", nil)
}

// LoadWith is Load with an explicit config file path, which wins over
// LOGSINK_CONFIG when set, and an overlay applied after the environment and
// before validation.
func LoadWith(path string, overlay func(*Config)) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("LOGSINK_CONFIG")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	if overlay != nil {
		overlay(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: "0.0.0.0:8000",
			Env:        "development",
		},
		Database: DatabaseConfig{
			URL:             "sqlite://data.db",
			MaxOpenConns:    100,
			MinConns:        5,
			ConnMaxLifetime: 8 * time.Second,
			ConnMaxIdleTime: 8 * time.Second,
			ConnectTimeout:  8 * time.Second,
		},
		Ingest: IngestConfig{
			HiddenPrefixes: append([]string(nil), defaultHiddenPrefixes...),
		},
	}
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.ListenAddr = envString("LOGSINK_LISTEN_ADDR", c.Server.ListenAddr)
	c.Server.Env = envString("LOGSINK_ENV", c.Server.Env)

	c.Database.URL = envString("DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MinConns = envInt("DATABASE_MIN_CONNS", c.Database.MinConns)
	c.Database.ConnMaxLifetime = envDuration("DATABASE_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)
	c.Database.ConnMaxIdleTime = envDuration("DATABASE_CONN_MAX_IDLE_TIME", c.Database.ConnMaxIdleTime)
	c.Database.ConnectTimeout = envDuration("DATABASE_CONNECT_TIMEOUT", c.Database.ConnectTimeout)

	c.Auth.Username = envString("LOGSINK_USERNAME", c.Auth.Username)
	c.Auth.Password = envString("LOGSINK_PASSWORD", c.Auth.Password)
	c.Auth.AdminAccount = envString("LOGSINK_ADMIN_ACCOUNT", c.Auth.AdminAccount)
	c.Auth.AdminPassword = envString("LOGSINK_ADMIN_PASSWORD", c.Auth.AdminPassword)

	c.Redis.URL = envString("REDIS_URL", c.Redis.URL)

	c.Ingest.RateLimit = envInt("INGEST_RATE_LIMIT", c.Ingest.RateLimit)
	c.Ingest.HiddenPrefixes = envList("HIDDEN_MESSAGE_PREFIXES", c.Ingest.HiddenPrefixes)
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Server.ListenAddr == "" {
		result = multierror.Append(result, fmt.Errorf("LOGSINK_LISTEN_ADDR is required"))
	}

	if c.Database.URL == "" {
		result = multierror.Append(result, fmt.Errorf("DATABASE_URL is required"))
	} else if !validDatabaseURL(c.Database.URL) {
		result = multierror.Append(result,
			fmt.Errorf("DATABASE_URL must start with postgres://, postgresql:// or sqlite://, got %q", c.Database.URL))
	}
	if c.Database.MaxOpenConns <= 0 {
		result = multierror.Append(result, fmt.Errorf("DATABASE_MAX_OPEN_CONNS must be positive, got %d", c.Database.MaxOpenConns))
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxOpenConns {
		result = multierror.Append(result,
			fmt.Errorf("DATABASE_MIN_CONNS must be between 0 and DATABASE_MAX_OPEN_CONNS, got %d", c.Database.MinConns))
	}

	if c.Redis.URL != "" && !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		result = multierror.Append(result, fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL))
	}
	if c.Ingest.RateLimit < 0 {
		result = multierror.Append(result, fmt.Errorf("INGEST_RATE_LIMIT must not be negative, got %d", c.Ingest.RateLimit))
	}
	if c.Ingest.RateLimit > 0 && c.Redis.URL == "" {
		result = multierror.Append(result, fmt.Errorf("REDIS_URL is required when INGEST_RATE_LIMIT is set"))
	}

	return result.ErrorOrNil()
}

func validDatabaseURL(u string) bool {
	for _, prefix := range []string{"postgres://", "postgresql://", "sqlite://"} {
		if strings.HasPrefix(u, prefix) {
			return true
		}
	}
	return false
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envList(key string, defaultVal []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
