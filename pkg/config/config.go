// Package config loads and validates the block indexer configuration from a
// YAML file with environment-variable overrides. It provides typed structs
// for every subsystem (Indexer, Postgres, Redis, Kafka, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
)

// Vocabulary and id store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

// Config is the top-level application configuration.
type Config struct {
	Indexer  IndexerConfig  `yaml:"indexer"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// IndexerConfig controls partitioning, the token pipeline and where block
// indexes are written.
type IndexerConfig struct {
	CollectionDir string `yaml:"collectionDir"`
	DocumentGlob  string `yaml:"documentGlob"`
	BlockSize     int    `yaml:"blockSize"`
	OutputDir     string `yaml:"outputDir"`
	StopwordsFile string `yaml:"stopwordsFile"`
	Tokenizer     string `yaml:"tokenizer"`
	Stemmer       string `yaml:"stemmer"`
	Vocabulary    string `yaml:"vocabulary"`
	IDStore       string `yaml:"idStore"`
	IDStorePath   string `yaml:"idStorePath"`
	ShowProgress  bool   `yaml:"showProgress"`
}

// PostgresConfig holds PostgreSQL connection parameters for the id store.
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

// RedisConfig holds the connection used by the shared vocabulary backend.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"poolSize"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// KafkaConfig controls publication of the merge-ready event.
type KafkaConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Brokers         []string      `yaml:"brokers"`
	MergeReadyTopic string        `yaml:"mergeReadyTopic"`
	RequiredAcks    string        `yaml:"requiredAcks"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config suitable for indexing a local collection.
func Default() *Config {
	return &Config{
		Indexer: IndexerConfig{
			CollectionDir: "collection",
			DocumentGlob:  "**/*.txt",
			BlockSize:     1000,
			OutputDir:     "indexes",
			StopwordsFile: "common_words",
			Tokenizer:     "whitespace",
			Stemmer:       "snowball",
			Vocabulary:    BackendMemory,
			IDStore:       BackendBolt,
			IDStorePath:   "indexes/ids.db",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "bsbi",
			User:            "bsbi",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  32,
			KeyPrefix: "bsbi:vocab",
		},
		Kafka: KafkaConfig{
			Enabled:         false,
			Brokers:         []string{"localhost:9092"},
			MergeReadyTopic: "index.merge-ready",
			RequiredAcks:    "all",
			WriteTimeout:    10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// Validate rejects values the indexer cannot run with.
func (c *Config) Validate() error {
	if c.Indexer.BlockSize <= 0 {
		return apperrors.Newf(apperrors.ErrInvalidConfig, "indexer.blockSize must be positive, got %d", c.Indexer.BlockSize)
	}
	if c.Indexer.OutputDir == "" {
		return apperrors.Newf(apperrors.ErrInvalidConfig, "indexer.outputDir is required")
	}
	switch c.Indexer.Vocabulary {
	case BackendMemory, BackendRedis:
	default:
		return apperrors.Newf(apperrors.ErrInvalidConfig, "unknown vocabulary backend %q", c.Indexer.Vocabulary)
	}
	switch c.Indexer.IDStore {
	case BackendBolt, BackendPostgres, BackendNone:
	default:
		return apperrors.Newf(apperrors.ErrInvalidConfig, "unknown id store backend %q", c.Indexer.IDStore)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return apperrors.Newf(apperrors.ErrInvalidConfig, "kafka enabled without brokers")
	}
	if c.Kafka.Enabled && c.Kafka.MergeReadyTopic == "" {
		return apperrors.Newf(apperrors.ErrInvalidConfig, "kafka enabled without a merge-ready topic")
	}
	switch c.Kafka.RequiredAcks {
	case "all", "one", "none":
	default:
		return apperrors.Newf(apperrors.ErrInvalidConfig, "kafka.requiredAcks must be all, one or none, got %q", c.Kafka.RequiredAcks)
	}
	return nil
}

// applyEnvOverrides reads BSBI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BSBI_COLLECTION_DIR"); v != "" {
		cfg.Indexer.CollectionDir = v
	}
	if v := os.Getenv("BSBI_DOCUMENT_GLOB"); v != "" {
		cfg.Indexer.DocumentGlob = v
	}
	if v := os.Getenv("BSBI_BLOCK_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.BlockSize = size
		}
	}
	if v := os.Getenv("BSBI_OUTPUT_DIR"); v != "" {
		cfg.Indexer.OutputDir = v
	}
	if v := os.Getenv("BSBI_STOPWORDS_FILE"); v != "" {
		cfg.Indexer.StopwordsFile = v
	}
	if v := os.Getenv("BSBI_TOKENIZER"); v != "" {
		cfg.Indexer.Tokenizer = v
	}
	if v := os.Getenv("BSBI_STEMMER"); v != "" {
		cfg.Indexer.Stemmer = v
	}
	if v := os.Getenv("BSBI_VOCABULARY"); v != "" {
		cfg.Indexer.Vocabulary = v
	}
	if v := os.Getenv("BSBI_ID_STORE"); v != "" {
		cfg.Indexer.IDStore = v
	}
	if v := os.Getenv("BSBI_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("BSBI_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("BSBI_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("BSBI_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("BSBI_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("BSBI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("BSBI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("BSBI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("BSBI_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.MergeReadyTopic = v
	}
	if v := os.Getenv("BSBI_KAFKA_ACKS"); v != "" {
		cfg.Kafka.RequiredAcks = v
	}
	if v := os.Getenv("BSBI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BSBI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
