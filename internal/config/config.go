// Package config loads and validates the repost service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultHistoryWindow is the number of recent publications compared
	// against during deduplication.
	DefaultHistoryWindow = 30
	// DefaultPoolSize is the number of candidates fetched per run.
	DefaultPoolSize = 500
	// DefaultMaxCandidates caps the candidate builder's output.
	DefaultMaxCandidates = 20
	// DefaultSimilarityThreshold is the caption-similarity score above
	// which a candidate counts as a duplicate.
	DefaultSimilarityThreshold = 0.92
	// DefaultLockTTL is sized to exceed one scheduling tick. There is no
	// lease renewal; runs longer than this can lose exclusivity.
	DefaultLockTTL = 55 * time.Second
	// DefaultDailyLimit applies to platforms without an explicit limit.
	DefaultDailyLimit = 5
)

type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	S3        S3Config        `yaml:"s3"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Lock      LockConfig      `yaml:"lock"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Publish   PublishConfig   `yaml:"publish"`
}

type ServerConfig struct {
	Address      string        `yaml:"address"`       // e.g., ":8080"
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"` // Default: 30s
	CORSOrigins  []string      `yaml:"cors_origins"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"` // Custom endpoint for MinIO and other S3-compatible storage
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type SchedulerConfig struct {
	Enabled        bool           `yaml:"enabled"`
	DailyLimit     int            `yaml:"daily_limit"`     // Fallback per-platform limit
	PlatformLimits map[string]int `yaml:"platform_limits"` // Overrides per platform
}

// QuotaLimit returns the daily publish limit for a platform.
func (s SchedulerConfig) QuotaLimit(platform string) int {
	if limit, ok := s.PlatformLimits[platform]; ok {
		return limit
	}
	return s.DailyLimit
}

type PipelineConfig struct {
	Account             string  `yaml:"account"`
	HistoryWindow       int     `yaml:"history_window"`
	PoolSize            int     `yaml:"pool_size"`
	MaxCandidates       int     `yaml:"max_candidates"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

type LockConfig struct {
	Key string        `yaml:"key"`
	TTL time.Duration `yaml:"ttl"`
}

type ScraperConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type PublishConfig struct {
	URL          string        `yaml:"url"`
	Token        string        `yaml:"token"`
	Timeout      time.Duration `yaml:"timeout"`
	RateLimitRPS int           `yaml:"rate_limit_rps"`
	Platforms    []string      `yaml:"platforms"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration and returns an error if it is unusable.
func (c *Config) Validate() error {
	if c.Postgres.Host == "" {
		return errors.New("postgres.host is required")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}
	if c.Scraper.URL == "" {
		return errors.New("scraper.url is required")
	}
	if c.Publish.URL == "" {
		return errors.New("publish.url is required")
	}
	if len(c.Publish.Platforms) == 0 {
		return errors.New("publish.platforms must name at least one platform")
	}
	if c.Pipeline.Account == "" {
		return errors.New("pipeline.account is required")
	}
	if c.Pipeline.SimilarityThreshold <= 0 || c.Pipeline.SimilarityThreshold > 1 {
		return fmt.Errorf("pipeline.similarity_threshold must be in (0,1], got %v", c.Pipeline.SimilarityThreshold)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Postgres.Port == "" {
		cfg.Postgres.Port = "5432"
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Scheduler.DailyLimit == 0 {
		cfg.Scheduler.DailyLimit = DefaultDailyLimit
	}
	if cfg.Pipeline.HistoryWindow == 0 {
		cfg.Pipeline.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.Pipeline.PoolSize == 0 {
		cfg.Pipeline.PoolSize = DefaultPoolSize
	}
	if cfg.Pipeline.MaxCandidates == 0 {
		cfg.Pipeline.MaxCandidates = DefaultMaxCandidates
	}
	if cfg.Pipeline.SimilarityThreshold == 0 {
		cfg.Pipeline.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.Lock.Key == "" {
		cfg.Lock.Key = "pipeline:run"
	}
	if cfg.Lock.TTL == 0 {
		cfg.Lock.TTL = DefaultLockTTL
	}
	if cfg.Scraper.Timeout == 0 {
		cfg.Scraper.Timeout = 30 * time.Second
	}
	if cfg.Publish.Timeout == 0 {
		cfg.Publish.Timeout = 60 * time.Second
	}
	if cfg.Publish.RateLimitRPS == 0 {
		cfg.Publish.RateLimitRPS = 1
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	}
}

func overrideWithEnvVars(cfg *Config) {
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SCRAPER_URL"); v != "" {
		cfg.Scraper.URL = v
	}
	if v := os.Getenv("PUBLISH_URL"); v != "" {
		cfg.Publish.URL = v
	}
	if v := os.Getenv("APP_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
	if v := os.Getenv("REPOST_PORT"); v != "" {
		cfg.Server.Address = ":" + v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		cfg.Server.CORSOrigins = origins
	}
}

// parseBool returns true for "true", "1", "yes" (case-insensitive).
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
