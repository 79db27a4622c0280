package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, "store", cfg.TxSource)
	assert.Equal(t, DefaultKafkaBrokers, cfg.KafkaBrokers)
	assert.Equal(t, DefaultKafkaTopic, cfg.KafkaTopic)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultFlushInterval, cfg.FlushInterval)
	assert.Equal(t, DefaultMaxHops, cfg.MaxHops)
	assert.Equal(t, DefaultHopWeights, cfg.HopWeights)
	assert.True(t, cfg.DegreeNormalize)
	assert.Equal(t, DefaultIllicitPct, cfg.IllicitPct)
	assert.Equal(t, int64(DefaultIllicitSeed), cfg.IllicitSeed)
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "KAFKA_BOOTSTRAP_SERVERS", "kafka1:9092,kafka2:9092")
	setEnv(t, "CONSUMER_BATCH_SIZE", "100")
	setEnv(t, "CONSUMER_FLUSH_INTERVAL", "500ms")
	setEnv(t, "SCORING_MAX_HOPS", "3")
	setEnv(t, "SCORING_HOP_WEIGHTS", "1.0,0.5,0.25,0.1")
	setEnv(t, "SCORING_DEGREE_NORMALIZE", "false")
	setEnv(t, "TX_SOURCE", "csv:/data/transactions.csv")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "kafka1:9092,kafka2:9092", cfg.KafkaBrokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.FlushInterval)
	assert.Equal(t, 3, cfg.MaxHops)
	assert.Equal(t, []float64{1.0, 0.5, 0.25, 0.1}, cfg.HopWeights)
	assert.False(t, cfg.DegreeNormalize)
	assert.Equal(t, "csv:/data/transactions.csv", cfg.TxSource)
}

func TestLoad_WeightCountMismatch(t *testing.T) {
	setEnv(t, "SCORING_MAX_HOPS", "3")
	// Default weights only cover hops 0..2.

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SCORING_HOP_WEIGHTS")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			MaxHops:    2,
			HopWeights: []float64{1.0, 0.6, 0.3},
			IllicitPct: 0.05,
			BatchSize:  500,
			TxSource:   "store",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"csv source", func(c *Config) { c.TxSource = "csv:/tmp/txs.csv" }, ""},
		{"negative weight", func(c *Config) { c.HopWeights = []float64{1.0, -0.6, 0.3} }, "non-negative"},
		{"too few weights", func(c *Config) { c.HopWeights = []float64{1.0} }, "SCORING_HOP_WEIGHTS"},
		{"pct zero", func(c *Config) { c.IllicitPct = 0 }, "ILLICIT_SEED_PCT"},
		{"pct above one", func(c *Config) { c.IllicitPct = 1.5 }, "ILLICIT_SEED_PCT"},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, "CONSUMER_BATCH_SIZE"},
		{"bad source", func(c *Config) { c.TxSource = "s3://bucket" }, "TX_SOURCE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_EnvHelpers(t *testing.T) {
	cfg := Config{Env: "production"}
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())

	cfg.Env = "development"
	assert.False(t, cfg.IsProduction())
	assert.True(t, cfg.IsDevelopment())
}
