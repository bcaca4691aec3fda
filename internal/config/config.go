package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for assessment-search
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Search    SearchConfig    `yaml:"search"`
	Session   SessionConfig   `yaml:"session"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Templates TemplatesConfig `yaml:"templates"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SearchConfig holds the upstream search endpoint
type SearchConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Token    string        `yaml:"token"`
	Timeout  time.Duration `yaml:"timeout"` // 0 means no timeout
}

// SessionConfig holds browser session configuration
type SessionConfig struct {
	CookieName      string        `yaml:"cookie_name"`
	IdleTTL         time.Duration `yaml:"idle_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DatabaseConfig holds PostgreSQL configuration. An empty DSN disables the search log.
// MigrationsDir overrides the migrations embedded in the binary.
type DatabaseConfig struct {
	DSN           string `yaml:"dsn"`
	MigrationsDir string `yaml:"migrations_dir"`
	MaxOpenConns  int    `yaml:"max_open_conns"`
	MaxIdleConns  int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis configuration. An empty address disables snapshots.
type RedisConfig struct {
	Address     string        `yaml:"address"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
}

// RateLimitConfig holds per-client submit limits. RequestsPerMin 0 disables limiting.
type RateLimitConfig struct {
	RequestsPerMin int `yaml:"requests_per_min"`
	Burst          int `yaml:"burst"`
}

// TemplatesConfig holds page template overrides. An empty Dir uses the built-in page.
type TemplatesConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Search: SearchConfig{
			Endpoint: "http://localhost:8000/search",
		},
		Session: SessionConfig{
			CookieName:      "assessment_session",
			IdleTTL:         30 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 1,
		},
		Redis: RedisConfig{
			SnapshotTTL: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMin: 60,
			Burst:          10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// CONFIG_FILE, and environment variables, in that order
func Load() (*Config, error) {
	cfg := Default()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsInt("SERVER_PORT", c.Server.Port)

	c.Search.Endpoint = getEnv("SEARCH_ENDPOINT", c.Search.Endpoint)
	c.Search.Token = getEnv("SEARCH_API_TOKEN", c.Search.Token)
	c.Search.Timeout = getEnvAsDuration("SEARCH_TIMEOUT", c.Search.Timeout)

	c.Session.CookieName = getEnv("SESSION_COOKIE", c.Session.CookieName)
	c.Session.IdleTTL = getEnvAsDuration("SESSION_IDLE_TTL", c.Session.IdleTTL)
	c.Session.CleanupInterval = getEnvAsDuration("SESSION_CLEANUP_INTERVAL", c.Session.CleanupInterval)

	c.Database.DSN = getEnv("DATABASE_DSN", c.Database.DSN)
	c.Database.MigrationsDir = getEnv("MIGRATIONS_DIR", c.Database.MigrationsDir)
	c.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)

	c.Redis.Address = getEnv("REDIS_ADDRESS", c.Redis.Address)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Redis.SnapshotTTL = getEnvAsDuration("SNAPSHOT_TTL", c.Redis.SnapshotTTL)

	c.RateLimit.RequestsPerMin = getEnvAsInt("RATE_LIMIT_PER_MIN", c.RateLimit.RequestsPerMin)
	c.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", c.RateLimit.Burst)

	c.Templates.Dir = getEnv("TEMPLATES_DIR", c.Templates.Dir)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	u, err := url.Parse(c.Search.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("search endpoint must be an absolute http(s) URL: %q", c.Search.Endpoint)
	}

	if c.Search.Timeout < 0 {
		return fmt.Errorf("search timeout must not be negative")
	}

	if c.Session.CookieName == "" {
		return fmt.Errorf("session cookie name is required")
	}

	if c.RateLimit.RequestsPerMin < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}
	if c.RateLimit.RequestsPerMin > 0 && c.RateLimit.Burst == 0 {
		return fmt.Errorf("rate limit burst must be positive when limiting is enabled")
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
