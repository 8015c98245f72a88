package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Synth     SynthConfig     `yaml:"synth"`
	Policy    PolicyConfig    `yaml:"policy"`
}

type ServerConfig struct {
	Host             string          `yaml:"host"`
	Port             int             `yaml:"port"`
	ReadTimeout      time.Duration   `yaml:"read_timeout"`
	WriteTimeout     time.Duration   `yaml:"write_timeout"`
	IdleTimeout      time.Duration   `yaml:"idle_timeout"`
	GracefulShutdown time.Duration   `yaml:"graceful_shutdown"`
	MaxBodyBytes     int64           `yaml:"max_body_bytes"`
	RateLimit        RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig throttles the compile endpoints per client address. It
// needs Redis; without it every request passes.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// DatabaseConfig locates the synthesis history database. History is off when
// Enabled is false.
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	// FailureThreshold consecutive history failures open the breaker for
	// RecoveryInterval.
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryInterval time.Duration `yaml:"recovery_interval"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", d.User, d.Password, d.Host, d.Port, d.Name)
}

// RedisConfig configures the manifest cache. The cache is off when no
// addresses are set.
type RedisConfig struct {
	Addresses []string      `yaml:"addresses"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"pool_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`
}

// SynthConfig controls synthesis runs. Region and Account fill the invoke
// ARN patterns; left empty they stay symbolic for the provisioner.
type SynthConfig struct {
	Document     string `yaml:"document"`
	Region       string `yaml:"region"`
	Account      string `yaml:"account"`
	OutputFormat string `yaml:"output_format"`
}

type PolicyConfig struct {
	Enabled           bool          `yaml:"enabled"`
	BundlePath        string        `yaml:"bundle_path"`
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 15 * time.Second,
			MaxBodyBytes:     1 << 20,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
			},
		},
		Database: DatabaseConfig{
			Host:             "localhost",
			Port:             5432,
			Name:             "mlapi",
			User:             "mlapi",
			MaxOpenConns:     10,
			MaxIdleConns:     2,
			ConnMaxLifetime:  5 * time.Minute,
			FailureThreshold: 5,
			RecoveryInterval: 30 * time.Second,
		},
		Redis: RedisConfig{
			DB:       0,
			PoolSize: 10,
			CacheTTL: 24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: 9090,
		},
		Synth: SynthConfig{
			Document:     "config/models.json",
			OutputFormat: "json",
		},
		Policy: PolicyConfig{
			Enabled:           false,
			BundlePath:        "policies",
			EvaluationTimeout: 100 * time.Millisecond,
		},
	}
}
