// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database (optional, in-memory stores are used if not set)
	DatabaseURL string

	// Transaction source for graph builds: "store" (the database) or
	// "csv:<path>" for a bulk snapshot file.
	TxSource string

	// Kafka ingestion
	KafkaBrokers  string // comma-separated
	KafkaTopic    string
	KafkaGroupID  string
	ConsumerName  string
	BatchSize     int
	FlushInterval time.Duration
	BatchTimeout  time.Duration
	MaxAttempts   int

	// Scoring
	MaxHops         int
	HopWeights      []float64
	DegreeNormalize bool
	IllicitPct      float64
	IllicitSeed     int64
}

// Defaults.
const (
	DefaultPort          = "8080"
	DefaultEnv           = "development"
	DefaultLogLevel      = "info"
	DefaultKafkaBrokers  = "localhost:9092"
	DefaultKafkaTopic    = "transactions"
	DefaultKafkaGroupID  = "tx-consumer"
	DefaultConsumerName  = "transactions_consumer"
	DefaultBatchSize     = 500
	DefaultFlushInterval = 2 * time.Second
	DefaultBatchTimeout  = 30 * time.Second
	DefaultMaxAttempts   = 5
	DefaultMaxHops       = 2
	DefaultIllicitPct    = 0.05
	DefaultIllicitSeed   = 42
)

// DefaultHopWeights weight hops 0..2.
var DefaultHopWeights = []float64{1.0, 0.6, 0.3}

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", DefaultPort),
		Env:             getEnv("ENV", DefaultEnv),
		LogLevel:        getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		TxSource:        getEnv("TX_SOURCE", "store"),
		KafkaBrokers:    getEnv("KAFKA_BOOTSTRAP_SERVERS", DefaultKafkaBrokers),
		KafkaTopic:      getEnv("KAFKA_TOPIC_TRANSACTIONS", DefaultKafkaTopic),
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", DefaultKafkaGroupID),
		ConsumerName:    getEnv("CONSUMER_NAME", DefaultConsumerName),
		BatchSize:       int(getEnvInt64("CONSUMER_BATCH_SIZE", DefaultBatchSize)),
		FlushInterval:   getEnvDuration("CONSUMER_FLUSH_INTERVAL", DefaultFlushInterval),
		BatchTimeout:    getEnvDuration("CONSUMER_BATCH_TIMEOUT", DefaultBatchTimeout),
		MaxAttempts:     int(getEnvInt64("CONSUMER_MAX_ATTEMPTS", DefaultMaxAttempts)),
		MaxHops:         int(getEnvInt64("SCORING_MAX_HOPS", DefaultMaxHops)),
		HopWeights:      getEnvFloats("SCORING_HOP_WEIGHTS", DefaultHopWeights),
		DegreeNormalize: getEnvBool("SCORING_DEGREE_NORMALIZE", true),
		IllicitPct:      getEnvFloat("ILLICIT_SEED_PCT", DefaultIllicitPct),
		IllicitSeed:     getEnvInt64("ILLICIT_SEED", DefaultIllicitSeed),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.MaxHops < 0 {
		return fmt.Errorf("SCORING_MAX_HOPS must be >= 0")
	}
	if len(c.HopWeights) != c.MaxHops+1 {
		return fmt.Errorf("SCORING_HOP_WEIGHTS must have %d entries for %d hops, got %d",
			c.MaxHops+1, c.MaxHops, len(c.HopWeights))
	}
	for _, w := range c.HopWeights {
		if w < 0 {
			return fmt.Errorf("SCORING_HOP_WEIGHTS entries must be non-negative")
		}
	}
	if c.IllicitPct <= 0 || c.IllicitPct > 1 {
		return fmt.Errorf("ILLICIT_SEED_PCT must be in (0, 1]")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("CONSUMER_BATCH_SIZE must be positive")
	}
	if c.TxSource != "store" && !strings.HasPrefix(c.TxSource, "csv:") {
		return fmt.Errorf("TX_SOURCE must be \"store\" or \"csv:<path>\"")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvFloats parses a comma-separated list of floats (e.g. "1.0,0.6,0.3").
func getEnvFloats(key string, defaultValue []float64) []float64 {
	value := os.Getenv(key)
	if value == "" {
		return append([]float64(nil), defaultValue...)
	}
	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return append([]float64(nil), defaultValue...)
		}
		out = append(out, f)
	}
	return out
}
