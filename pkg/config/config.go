// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Engine, Suggest, Postgres, Kafka, Redis, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Engine   EngineConfig   `yaml:"engine"`
	Suggest  SuggestConfig  `yaml:"suggest"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// EngineConfig holds the search engine's tuning constants: field weights,
// fuzzy-expansion thresholds, freshness decay, facet caps, and snippet sizes.
// The defaults are starting points meant to be adjusted against relevance
// tests, not fixed requirements.
type EngineConfig struct {
	TitleWeight       float64       `yaml:"titleWeight"`
	TagsWeight        float64       `yaml:"tagsWeight"`
	DescriptionWeight float64       `yaml:"descriptionWeight"`
	ContentWeight     float64       `yaml:"contentWeight"`
	ExactBonus        float64       `yaml:"exactBonus"`
	PhraseBonus       float64       `yaml:"phraseBonus"`
	FreshnessHalfLife time.Duration `yaml:"freshnessHalfLife"`
	FreshnessFloor    float64       `yaml:"freshnessFloor"`
	ShortTermLength   int           `yaml:"shortTermLength"`
	FacetLimit        int           `yaml:"facetLimit"`
	SnippetLength     int           `yaml:"snippetLength"`
	SnippetMargin     int           `yaml:"snippetMargin"`
	SnippetMergeGap   int           `yaml:"snippetMergeGap"`
	MaxQueryLength    int           `yaml:"maxQueryLength"`
	MaxResults        int           `yaml:"maxResults"`
	DefaultLimit      int           `yaml:"defaultLimit"`
	QueryTimeout      time.Duration `yaml:"queryTimeout"`
}

// SuggestConfig controls autocomplete suggestion generation.
type SuggestConfig struct {
	Limit        int `yaml:"limit"`
	MinPrefixLen int `yaml:"minPrefixLen"`
	MaxStoreSize int `yaml:"maxStoreSize"`
}

// PostgresConfig holds PostgreSQL connection parameters for the platform
// content database used by the bulk reindex loader.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ContentEvents  string `yaml:"contentEvents"`
	QueryAnalytics string `yaml:"queryAnalytics"`
}

// RedisConfig holds Redis connection and response-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Engine:  DefaultEngine(),
		Suggest: DefaultSuggest(),
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "community",
			User:            "community",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "community-search-group",
			Topics: KafkaTopics{
				ContentEvents:  "content-events",
				QueryAnalytics: "query-analytics",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// DefaultEngine returns the default search engine tuning constants.
func DefaultEngine() EngineConfig {
	return EngineConfig{
		TitleWeight:       3.0,
		TagsWeight:        2.0,
		DescriptionWeight: 1.5,
		ContentWeight:     1.0,
		ExactBonus:        1.25,
		PhraseBonus:       0.5,
		FreshnessHalfLife: 180 * 24 * time.Hour,
		FreshnessFloor:    0.25,
		ShortTermLength:   4,
		FacetLimit:        20,
		SnippetLength:     200,
		SnippetMargin:     30,
		SnippetMergeGap:   20,
		MaxQueryLength:    256,
		MaxResults:        1000,
		DefaultLimit:      10,
		QueryTimeout:      2 * time.Second,
	}
}

// DefaultSuggest returns the default suggestion generator settings.
func DefaultSuggest() SuggestConfig {
	return SuggestConfig{
		Limit:        5,
		MinPrefixLen: 2,
		MaxStoreSize: 50000,
	}
}

// applyEnvOverrides reads CS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("CS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("CS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("CS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("CS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("CS_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("CS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CS_ENGINE_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.QueryTimeout = d
		}
	}
}
