package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Log         LogConfig         `mapstructure:"log"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Progression ProgressionConfig `mapstructure:"progression"`
	Missions    MissionsConfig    `mapstructure:"missions"`
	Retry       RetryConfig       `mapstructure:"retry"`
	Jobs        JobsConfig        `mapstructure:"jobs"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig selects the dialect. Path is used for sqlite, URL for postgres/mysql.
type DatabaseConfig struct {
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
	URL  string `mapstructure:"url"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// ProgressionConfig tunes the ability estimator and the question selector.
type ProgressionConfig struct {
	KFactor           float64 `mapstructure:"k_factor"`
	BandWidth         float64 `mapstructure:"band_width"`
	BandStep          float64 `mapstructure:"band_step"`
	MaxBand           float64 `mapstructure:"max_band"`
	MasteredThreshold float64 `mapstructure:"mastered_threshold"`
	WeakThreshold     float64 `mapstructure:"weak_threshold"`
}

type MissionsConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

type JobsConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	ExpireInterval   time.Duration `mapstructure:"expire_interval"`
	GenerateInterval time.Duration `mapstructure:"generate_interval"`
	Concurrency      int           `mapstructure:"concurrency"`
	PageSize         int           `mapstructure:"page_size"`
}

// RedisConfig enables the notification bus when Addr is set.
type RedisConfig struct {
	Addr    string `mapstructure:"addr"`
	Channel string `mapstructure:"channel"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// Load reads configuration from an optional file and CODEQUEST_* environment variables.
// An empty path looks for codequest.yaml in the working directory and ./config.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CODEQUEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("codequest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "./codequest.db")
	v.SetDefault("database.url", "")

	v.SetDefault("log.mode", "development")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "codequest")

	v.SetDefault("progression.k_factor", 24.0)
	v.SetDefault("progression.band_width", 150.0)
	v.SetDefault("progression.band_step", 150.0)
	v.SetDefault("progression.max_band", 2400.0)
	v.SetDefault("progression.mastered_threshold", 0.8)
	v.SetDefault("progression.weak_threshold", 0.5)

	v.SetDefault("missions.timezone", "UTC")

	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.base_delay", 10*time.Millisecond)

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.expire_interval", 5*time.Minute)
	v.SetDefault("jobs.generate_interval", 1*time.Hour)
	v.SetDefault("jobs.concurrency", 8)
	v.SetDefault("jobs.page_size", 500)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.channel", "codequest.progress")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 0.1)

	v.SetDefault("ratelimit.requests", 120)
	v.SetDefault("ratelimit.window", time.Minute)
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Type) {
	case "sqlite", "sqlite3", "":
	case "postgres", "postgresql", "mysql":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for %s", c.Database.Type)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	p := c.Progression
	if p.KFactor <= 0 {
		return fmt.Errorf("progression.k_factor must be positive")
	}
	if p.BandWidth <= 0 || p.BandStep <= 0 || p.MaxBand < p.BandWidth {
		return fmt.Errorf("progression band settings are inconsistent")
	}
	if p.MasteredThreshold <= 0 || p.MasteredThreshold > 1 || p.WeakThreshold < 0 || p.WeakThreshold > p.MasteredThreshold {
		return fmt.Errorf("progression thresholds must satisfy 0 <= weak <= mastered <= 1")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if _, err := time.LoadLocation(c.Missions.Timezone); err != nil {
		return fmt.Errorf("missions.timezone: %w", err)
	}
	return nil
}

// Location resolves the mission period timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Missions.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
