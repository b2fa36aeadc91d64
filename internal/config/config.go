// Package config loads the process configuration from env overrides, a
// YAML file, and hardcoded defaults, in that precedence order — the same
// layering the teacher's infra config used, adapted to this service's
// settings.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the agentgated process.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig describes the single HTTP listener serving both the admin
// and agent surfaces.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	MetricsPort  int           `mapstructure:"metrics_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig describes the Postgres connection. DatabasePath is the
// spec's env var name for the store's DSN — despite the name, it holds a
// Postgres connection string, not a filesystem path.
type DatabaseConfig struct {
	DatabasePath string `mapstructure:"database_path"`
	MaxConns     int32  `mapstructure:"max_conns"`
	MinConns     int32  `mapstructure:"min_conns"`
}

// RedisConfig describes the settings-cache invalidation channel.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig carries the admin session signing material and key-hashing
// policy.
type AuthConfig struct {
	SessionSecret  string        `mapstructure:"session_secret"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	PublicKeyPath  string        `mapstructure:"public_key_path"`
}

// PolicyConfig seeds the default filesystem sandbox and rate limits new
// deployments start with; admins can change these through settings at
// runtime.
type PolicyConfig struct {
	SandboxPath     string   `mapstructure:"sandbox_path"`
	ShellAllowList  []string `mapstructure:"shell_allow_list"`
	SafeMode        bool     `mapstructure:"safe_mode"`
	RateLimitPerSec float64  `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst  int      `mapstructure:"rate_limit_burst"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from ./config.yaml (if present), then overlays
// environment variables, then applies defaults for anything still unset.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnv(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// bindEnv wires the flat, spec-named environment variables onto their
// nested config keys.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("auth.session_secret", "SESSION_SECRET")
	_ = v.BindEnv("database.database_path", "DATABASE_PATH")
	_ = v.BindEnv("policy.sandbox_path", "SANDBOX_PATH")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("policy.sandbox_path", "./sandbox")
	v.SetDefault("policy.shell_allow_list", []string{"^ls.*", "^cat.*", "^pwd$", "^whoami$"})
	v.SetDefault("policy.safe_mode", true)
	v.SetDefault("policy.rate_limit_per_sec", 5.0)
	v.SetDefault("policy.rate_limit_burst", 10)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}
