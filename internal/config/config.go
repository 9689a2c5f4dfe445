package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/prompt-general/healthscore/internal/scoring"
	"github.com/prompt-general/healthscore/internal/telemetry"
)

// Version is stamped at build time.
var Version = "dev"

// Config represents the overall application configuration
type Config struct {
	API     APIConfig               `yaml:"api"`
	Sources SourcesConfig           `yaml:"sources"`
	Cache   CacheConfig             `yaml:"cache"`
	Scoring scoring.Config          `yaml:"scoring"`
	Logging LoggingConfig           `yaml:"logging"`
	Metrics MetricsConfig           `yaml:"metrics"`
	Tracing telemetry.TracingConfig `yaml:"tracing"`
	Kafka   KafkaConfig             `yaml:"kafka"`
	Monitor MonitorConfig           `yaml:"monitor"`
}

// APIConfig represents HTTP gateway configuration
type APIConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	EnableCORS      bool          `yaml:"enable_cors"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	AllowedMethods  []string      `yaml:"allowed_methods"`
	AllowedHeaders  []string      `yaml:"allowed_headers"`
	// BasicAuthUsers maps user to password. Empty disables authentication.
	BasicAuthUsers map[string]string `yaml:"basic_auth_users"`
}

// SourcesConfig represents the two upstream databases
type SourcesConfig struct {
	CustomerDSN  string        `yaml:"customer_dsn"`
	ActivityDSN  string        `yaml:"activity_dsn"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
}

// CacheConfig represents the view cache
type CacheConfig struct {
	Backend    string                   `yaml:"backend"`
	Addr       string                   `yaml:"addr"`
	Password   string                   `yaml:"password"`
	DB         int                      `yaml:"db"`
	Namespace  string                   `yaml:"namespace"`
	OpTimeout  time.Duration            `yaml:"op_timeout"`
	DefaultTTL time.Duration            `yaml:"default_ttl"`
	TTL        map[string]time.Duration `yaml:"ttl"`
}

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// KafkaConfig represents the at-risk alert producer
type KafkaConfig struct {
	Enabled bool          `yaml:"enabled"`
	Brokers []string      `yaml:"brokers"`
	Topic   string        `yaml:"topic"`
	Timeout time.Duration `yaml:"timeout"`

	// CreateTopics provisions the alert topic at startup.
	CreateTopics      bool `yaml:"create_topics"`
	Partitions        int  `yaml:"partitions"`
	ReplicationFactor int  `yaml:"replication_factor"`
}

// MonitorConfig represents the periodic at-risk scan
type MonitorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// Default returns a configuration that runs locally against an in-memory
// cache.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			EnableCORS:      true,
			AllowedOrigins:  []string{"*"},
			AllowedMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
		},
		Sources: SourcesConfig{
			Timeout:      30 * time.Second,
			MaxOpenConns: 10,
		},
		Cache: CacheConfig{
			Backend:    BackendMemory,
			Addr:       "localhost:6379",
			Namespace:  "healthscore",
			OpTimeout:  2 * time.Second,
			DefaultTTL: 24 * time.Hour,
			TTL: map[string]time.Duration{
				"health-scores": 24 * time.Hour,
				"dashboard":     time.Hour,
			},
		},
		Scoring: scoring.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: telemetry.TracingConfig{
			ServiceName:    "healthscore",
			ServiceVersion: Version,
			Environment:    "development",
			JaegerEndpoint: "http://localhost:14268/api/traces",
			SampleRate:     0.1,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "customer-health.at-risk",
			Timeout: 10 * time.Second,

			Partitions:        3,
			ReplicationFactor: 1,
		},
		Monitor: MonitorConfig{
			Interval: time.Hour,
		},
	}
}

// Load reads the YAML file at path over Default, applies environment
// overrides and validates the result. An empty path falls back to
// CONFIG_PATH; when neither is set only defaults and environment apply.
//
// Scoring ladders are replaced whole: a ladder given in the file drops every
// default step of that ladder.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg, os.Getenv)
	cfg.Tracing.ServiceVersion = Version

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("CUSTOMER_DB_DSN"); v != "" {
		cfg.Sources.CustomerDSN = v
	}
	if v := getenv("ACTIVITY_DB_DSN"); v != "" {
		cfg.Sources.ActivityDSN = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Addr = v
		cfg.Cache.Backend = BackendRedis
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	// user:pass,user2:pass2
	if v := getenv("BASIC_AUTH_USERS"); v != "" {
		users := make(map[string]string)
		for _, pair := range splitList(v) {
			user, pass, ok := strings.Cut(pair, ":")
			if ok && user != "" {
				users[user] = pass
			}
		}
		cfg.API.BasicAuthUsers = users
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Addr returns the listen address of the gateway.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
