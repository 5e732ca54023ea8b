package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the GraphaRNA server and worker.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Engine     EngineConfig
	Storage    StorageConfig
	Render     RenderConfig
	Worker     WorkerConfig
	Retention  RetentionConfig
	RateLimit  RateLimitConfig
	Validation ValidationConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// EngineConfig controls how the worker talks to the prediction engine.
// MaxRetries bounds the number of run requests per conformation.
type EngineConfig struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// StorageConfig points at the volume shared with the engine.
type StorageConfig struct {
	Root string
}

type RenderConfig struct {
	Enabled  bool
	JavaPath string
	VarnaJar string
	RchieCmd string
	Timeout  time.Duration
}

// WorkerConfig sizes the worker pool. ID names the worker's processing list
// and must survive restarts of the same worker.
type WorkerConfig struct {
	ID          string
	Concurrency int
	DequeueWait time.Duration
}

type RetentionConfig struct {
	Period        time.Duration
	SweepInterval time.Duration
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type ValidationConfig struct {
	MaxLength int
	CacheTTL  time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("GRAPHARNA_PORT", 8080),
			Env:  envString("GRAPHARNA_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Engine: EngineConfig{
			BaseURL:      os.Getenv("ENGINE_URL"),
			Timeout:      envDuration("ENGINE_REQUEST_TIMEOUT", 30*time.Second),
			MaxRetries:   envInt("ENGINE_MAX_RETRIES", 3),
			RetryDelay:   envDuration("ENGINE_RETRY_DELAY", 5*time.Second),
			PollInterval: envDuration("ENGINE_POLL_INTERVAL", 5*time.Second),
			PollTimeout:  envDuration("ENGINE_POLL_TIMEOUT", 30*time.Minute),
		},
		Storage: StorageConfig{
			Root: envString("SHARED_VOLUME", "/shared/samples"),
		},
		Render: RenderConfig{
			Enabled:  envBool("RENDER_ENABLED", false),
			JavaPath: envString("RENDER_JAVA_PATH", "java"),
			VarnaJar: os.Getenv("RENDER_VARNA_JAR"),
			RchieCmd: envString("RENDER_RCHIE_CMD", "rchie.R"),
			Timeout:  envDuration("RENDER_TIMEOUT", time.Minute),
		},
		Worker: WorkerConfig{
			ID:          envString("WORKER_ID", hostname()),
			Concurrency: envInt("WORKER_CONCURRENCY", 4),
			DequeueWait: envDuration("WORKER_DEQUEUE_WAIT", 5*time.Second),
		},
		Retention: RetentionConfig{
			Period:        envDuration("JOB_RETENTION", 14*24*time.Hour),
			SweepInterval: envDuration("JOB_SWEEP_INTERVAL", time.Hour),
		},
		RateLimit: RateLimitConfig{
			Requests: envInt("RATE_LIMIT_REQUESTS", 20),
			Window:   envDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Validation: ValidationConfig{
			MaxLength: envInt("MAX_STRUCTURE_LENGTH", 500),
			CacheTTL:  envDuration("VALIDATION_CACHE_TTL", 10*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Engine.BaseURL == "" {
		return fmt.Errorf("ENGINE_URL is required")
	}
	if !strings.HasPrefix(c.Engine.BaseURL, "http://") && !strings.HasPrefix(c.Engine.BaseURL, "https://") {
		return fmt.Errorf("ENGINE_URL must start with http:// or https://, got %q", c.Engine.BaseURL)
	}
	if c.Engine.MaxRetries < 1 {
		return fmt.Errorf("ENGINE_MAX_RETRIES must be at least 1, got %d", c.Engine.MaxRetries)
	}
	if c.Engine.PollInterval <= 0 || c.Engine.PollTimeout <= 0 {
		return fmt.Errorf("ENGINE_POLL_INTERVAL and ENGINE_POLL_TIMEOUT must be positive")
	}

	if c.Render.Enabled && c.Render.VarnaJar == "" {
		return fmt.Errorf("RENDER_VARNA_JAR is required when RENDER_ENABLED is true")
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.Worker.Concurrency)
	}

	if c.Validation.MaxLength < 1 {
		return fmt.Errorf("MAX_STRUCTURE_LENGTH must be at least 1, got %d", c.Validation.MaxLength)
	}

	return nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "worker"
	}
	return h
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

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
