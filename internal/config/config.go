package config

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"OPSDECK_DATABASE_DSN, overwrite"`

	// Pool sizing for the shared *sql.DB.
	MaxOpenConns int `yaml:"maxOpenConns"`
	MaxIdleConns int `yaml:"maxIdleConns"`
}

type RedisConfig struct {
	URL string `yaml:"url" env:"OPSDECK_REDIS_URL, overwrite"`
}

// QueuesConfig names the work queues this deployment runs. The
// inspector only ever touches queues listed here; anything else is
// treated as not found.
type QueuesConfig struct {
	Prefix string   `yaml:"prefix"`
	Names  []string `yaml:"names"`
}

type AuthConfig struct {
	Enabled         bool   `yaml:"enabled"`
	InitialAdminKey string `yaml:"initialAdminKey" env:"OPSDECK_INITIAL_ADMIN_KEY, overwrite"`
}

// PaginationConfig bounds page/pageSize for job and row listings.
type PaginationConfig struct {
	DefaultPageSize int `yaml:"defaultPageSize"`
	MaxPageSize     int `yaml:"maxPageSize"`
}

// Resolve applies defaults and bounds to caller-supplied pagination.
// Zero means "not supplied". Negative or out-of-range values are
// malformed; pageSize above the maximum is capped rather than rejected.
func (p PaginationConfig) Resolve(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = p.DefaultPageSize
	}
	if page < 1 {
		return 0, 0, fmt.Errorf("page must be >= 1, got %d", page)
	}
	if pageSize < 1 {
		return 0, 0, fmt.Errorf("pageSize must be >= 1, got %d", pageSize)
	}
	if pageSize > p.MaxPageSize {
		pageSize = p.MaxPageSize
	}
	return page, pageSize, nil
}

// HealthConfig holds per-probe budgets and the thresholds that separate
// degraded from healthy for non-critical probes. Thresholds are
// deployment-specific, so they live here rather than in code.
type HealthConfig struct {
	ProbeTimeoutMs int `yaml:"probeTimeoutMs"`

	// Cache probe degrades when used_memory/maxmemory exceeds this
	// fraction (ignored when maxmemory is 0).
	CacheMemoryFraction float64 `yaml:"cacheMemoryFraction"`

	// Database probe degrades when in-use connections exceed this
	// fraction of the pool.
	DBPoolFraction float64 `yaml:"dbPoolFraction"`

	// Queue probe degrades when any queue's waiting+delayed backlog
	// exceeds this count, or when a queue is paused.
	QueueBacklog int64 `yaml:"queueBacklog"`

	// Resource probe degrades above these percentages.
	CPUPercent    float64 `yaml:"cpuPercent"`
	MemoryPercent float64 `yaml:"memoryPercent"`
}

// GatewayConfig bounds the read-only query gateway.
type GatewayConfig struct {
	MaxRows            int `yaml:"maxRows"`
	StatementTimeoutMs int `yaml:"statementTimeoutMs"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Queues     QueuesConfig     `yaml:"queues"`
	Auth       AuthConfig       `yaml:"auth"`
	Pagination PaginationConfig `yaml:"pagination"`
	Health     HealthConfig     `yaml:"health"`
	Gateway    GatewayConfig    `yaml:"gateway"`
}

// Load reads the yaml config at path, applies environment overrides for
// secret-bearing fields, and fills defaults. It exits on malformed
// input since there is no sensible way to run without configuration.
func Load(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		log.Fatalf("failed to apply env overrides: %v", err)
	}

	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. Exported
// so tests can build configs without a yaml file.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Queues.Prefix == "" {
		c.Queues.Prefix = "ops"
	}
	if c.Pagination.DefaultPageSize <= 0 {
		c.Pagination.DefaultPageSize = 50
	}
	if c.Pagination.MaxPageSize <= 0 {
		c.Pagination.MaxPageSize = 100
	}
	if c.Health.ProbeTimeoutMs <= 0 {
		c.Health.ProbeTimeoutMs = 2000
	}
	if c.Health.CacheMemoryFraction <= 0 {
		c.Health.CacheMemoryFraction = 0.9
	}
	if c.Health.DBPoolFraction <= 0 {
		c.Health.DBPoolFraction = 0.9
	}
	if c.Health.QueueBacklog <= 0 {
		c.Health.QueueBacklog = 1000
	}
	if c.Health.CPUPercent <= 0 {
		c.Health.CPUPercent = 90
	}
	if c.Health.MemoryPercent <= 0 {
		c.Health.MemoryPercent = 90
	}
	if c.Gateway.MaxRows <= 0 {
		c.Gateway.MaxRows = 1000
	}
	if c.Gateway.StatementTimeoutMs <= 0 {
		c.Gateway.StatementTimeoutMs = 5000
	}
}
