// Package config provides configuration management for the trust engine.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (standard names like SERVER_PORT, LOG_LEVEL)
// 3. Default values
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Security   SecurityConfig   `mapstructure:"security"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Lifecycle  LifecycleConfig  `mapstructure:"lifecycle"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// SecurityConfig contains security-related settings.
// The JWT key verifies tokens issued by the external auth service; this
// service never issues tokens itself.
type SecurityConfig struct {
	JWTVerificationKey string `mapstructure:"jwt_verification_key"`
}

// RedisConfig contains the optional shared rate-limit store settings.
// When Addr is empty the in-process memory store is used.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig contains the optional PostgreSQL audit store settings.
// When URL is empty the in-memory audit store is used.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// WorkerConfig contains worker pool sizing.
type WorkerConfig struct {
	AuditPoolSize     int `mapstructure:"audit_pool_size"`
	LifecyclePoolSize int `mapstructure:"lifecycle_pool_size"`
}

// RateLimitPolicy defines one named quota.
type RateLimitPolicy struct {
	Points int           `mapstructure:"points"`
	Window time.Duration `mapstructure:"window"`
	Block  time.Duration `mapstructure:"block"`
}

// RateLimitConfig contains the policy table.
type RateLimitConfig struct {
	Auth    RateLimitPolicy `mapstructure:"auth"`
	API     RateLimitPolicy `mapstructure:"api"`
	Upload  RateLimitPolicy `mapstructure:"upload"`
	Message RateLimitPolicy `mapstructure:"message"`
	Match   RateLimitPolicy `mapstructure:"match"`
}

// ModerationConfig contains content moderation settings.
type ModerationConfig struct {
	NSFWThreshold             float64 `mapstructure:"nsfw_threshold"`
	EscalationReportThreshold int     `mapstructure:"escalation_report_threshold"`
}

// AuditConfig contains audit ledger settings.
type AuditConfig struct {
	Retention        time.Duration `mapstructure:"retention"`
	DefaultPageSize  int           `mapstructure:"default_page_size"`
	MaxPageSize      int           `mapstructure:"max_page_size"`
	PurgeSchedule    string        `mapstructure:"purge_schedule"`
	AnomalyLoginIPs  int           `mapstructure:"anomaly_login_ips"`
	AnomalyBurstSize int           `mapstructure:"anomaly_burst_size"`
}

// LifecycleConfig contains GDPR lifecycle settings.
type LifecycleConfig struct {
	ExportExpiry  time.Duration `mapstructure:"export_expiry"`
	GracePeriod   time.Duration `mapstructure:"grace_period"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
}

// Load reads configuration from file and environment variables.
// Standard environment variables without prefix (SERVER_PORT, LOG_LEVEL,
// DATABASE_URL, REDIS_ADDR); nested config maps dots to underscores.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/heartlink-trustengine")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if c.Lifecycle.GracePeriod <= 0 {
		return fmt.Errorf("lifecycle.grace_period must be positive")
	}
	if c.Audit.Retention <= 0 {
		return fmt.Errorf("audit.retention must be positive")
	}
	if c.Moderation.NSFWThreshold <= 0 || c.Moderation.NSFWThreshold > 1 {
		return fmt.Errorf("moderation.nsfw_threshold must be in (0, 1]")
	}
	for name, p := range map[string]RateLimitPolicy{
		"auth": c.RateLimit.Auth, "api": c.RateLimit.API, "upload": c.RateLimit.Upload,
		"message": c.RateLimit.Message, "match": c.RateLimit.Match,
	} {
		if p.Points <= 0 || p.Window <= 0 {
			return fmt.Errorf("ratelimit.%s: points and window must be positive", name)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Database (audit store; empty URL selects the memory store)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)

	// Redis (rate-limit store; empty addr selects the memory store)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)

	// Worker pools
	v.SetDefault("worker.audit_pool_size", 50)
	v.SetDefault("worker.lifecycle_pool_size", 10)

	// Rate limit policies
	v.SetDefault("ratelimit.auth.points", 5)
	v.SetDefault("ratelimit.auth.window", 15*time.Minute)
	v.SetDefault("ratelimit.auth.block", 15*time.Minute)
	v.SetDefault("ratelimit.api.points", 100)
	v.SetDefault("ratelimit.api.window", 15*time.Minute)
	v.SetDefault("ratelimit.upload.points", 10)
	v.SetDefault("ratelimit.upload.window", time.Hour)
	v.SetDefault("ratelimit.message.points", 50)
	v.SetDefault("ratelimit.message.window", time.Hour)
	v.SetDefault("ratelimit.match.points", 100)
	v.SetDefault("ratelimit.match.window", time.Hour)

	// Moderation
	v.SetDefault("moderation.nsfw_threshold", 0.6)
	v.SetDefault("moderation.escalation_report_threshold", 3)

	// Audit
	v.SetDefault("audit.retention", 365*24*time.Hour)
	v.SetDefault("audit.default_page_size", 100)
	v.SetDefault("audit.max_page_size", 1000)
	v.SetDefault("audit.purge_schedule", "@daily")
	v.SetDefault("audit.anomaly_login_ips", 3)
	v.SetDefault("audit.anomaly_burst_size", 50)

	// Lifecycle
	v.SetDefault("lifecycle.export_expiry", 7*24*time.Hour)
	v.SetDefault("lifecycle.grace_period", 30*24*time.Hour)
	v.SetDefault("lifecycle.sweep_schedule", "@hourly")
}
