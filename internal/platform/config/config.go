// Package config loads engine configuration from environment variables and
// an optional config file, with sane defaults for local runs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full engine configuration.
type Config struct {
	// HTTPAddr is the listen address for the ops surface (metrics, health).
	HTTPAddr string `mapstructure:"http_addr"`

	// PostgresDSN selects the persistent stores. Empty means in-memory
	// stores, which is only useful for local experimentation and tests.
	PostgresDSN string `mapstructure:"postgres_dsn"`

	// RedisURL enables the distributed run lock. Empty falls back to the
	// in-process lock, safe only for single-instance deployments.
	RedisURL string `mapstructure:"redis_url"`

	Redis RedisConfig `mapstructure:"redis"`

	// KafkaBrokers enables the Kafka notification publisher. Empty sends
	// notifications to the log instead.
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`

	// RulesPath points at the YAML rules overlay. Empty uses the built-in
	// defaults.
	RulesPath string `mapstructure:"rules_path"`

	// Parallelism bounds concurrent tenant passes per run.
	Parallelism int `mapstructure:"parallelism"`

	// LockTTL bounds how long a crashed run can hold an operation's lock.
	LockTTL time.Duration `mapstructure:"lock_ttl"`

	// RunInterval is how often serve mode sweeps every operation. Each run
	// is idempotent, so a short interval is safe.
	RunInterval time.Duration `mapstructure:"run_interval"`

	LogLevel string `mapstructure:"log_level"`
}

// RedisConfig tunes the Redis client pool.
type RedisConfig struct {
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Load builds the configuration from defaults, an optional file, and
// CUSTOS_-prefixed environment variables, in increasing precedence.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("kafka_topic", "custos.notifications")
	v.SetDefault("parallelism", 4)
	v.SetDefault("lock_ttl", 10*time.Minute)
	v.SetDefault("run_interval", time.Hour)
	v.SetDefault("log_level", "info")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetEnvPrefix("CUSTOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.KafkaBrokers = normalizeBrokers(cfg.KafkaBrokers)
	return cfg, nil
}

// normalizeBrokers accepts the broker list either as a real list (config
// file) or one comma-separated string (env var), returning trimmed entries
// with duplicates dropped and order preserved.
func normalizeBrokers(brokers []string) []string {
	seen := make(map[string]struct{}, len(brokers))
	var out []string
	for _, b := range brokers {
		for _, addr := range strings.Split(b, ",") {
			addr = strings.TrimSpace(addr)
			if addr == "" {
				continue
			}
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	return out
}
