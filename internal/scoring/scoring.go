// Package scoring computes multi-hop illicit-exposure scores for wallets
// in the transaction graph and persists them as atomic, auditable runs.
//
// A wallet's raw exposure is the weighted count of illicit wallets at each
// hop distance: every reachable wallet is bucketed at its true shortest-path
// distance (undirected), buckets are disjoint, and
// raw = sum over h of weight[h] * illicit_count(h). With degree
// normalization enabled the raw exposure is divided by sqrt(in+out degree);
// isolated wallets keep the raw value so the score is always defined.
package scoring

import (
	"context"
	"errors"
	"time"
)

// Typed failures surfaced to the caller. Ingestion-layer errors are
// absorbed by the consumer; these are not.
var (
	ErrGraphNotReady  = errors.New("graph not ready")
	ErrWalletNotFound = errors.New("wallet not found")
	ErrRunNotFound    = errors.New("scoring run not found")
)

// Default scoring parameters, matching a 2-hop neighborhood.
const (
	DefaultMaxHops = 2
	DefaultSeedPct = 0.05
	DefaultSeed    = 42
)

// DefaultHopWeights weight exposure at hop 0 (self), 1, and 2.
var DefaultHopWeights = []float64{1.0, 0.6, 0.3}

// Config is the configuration snapshot recorded with every run.
type Config struct {
	MaxHops         int       `json:"max_hops"`
	HopWeights      []float64 `json:"hop_weights"`
	DegreeNormalize bool      `json:"degree_normalize"`
	SeedPct         float64   `json:"seed_pct"`
	Seed            int64     `json:"seed"`
	Source          string    `json:"source"`
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{
		MaxHops:         DefaultMaxHops,
		HopWeights:      append([]float64(nil), DefaultHopWeights...),
		DegreeNormalize: true,
		SeedPct:         DefaultSeedPct,
		Seed:            DefaultSeed,
	}
}

// normalized pads or truncates HopWeights to length MaxHops+1 and fills
// zero-valued fields from the defaults.
func (c Config) normalized() Config {
	if c.MaxHops <= 0 {
		c.MaxHops = DefaultMaxHops
	}
	if len(c.HopWeights) == 0 {
		c.HopWeights = append([]float64(nil), DefaultHopWeights...)
	}
	want := c.MaxHops + 1
	if len(c.HopWeights) > want {
		c.HopWeights = c.HopWeights[:want]
	}
	for len(c.HopWeights) < want {
		c.HopWeights = append(c.HopWeights, 0)
	}
	if c.SeedPct <= 0 {
		c.SeedPct = DefaultSeedPct
	}
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	return c
}

// HopExposure is the illicit count observed at one exact hop distance.
type HopExposure struct {
	Hop          int     `json:"hop"`
	Weight       float64 `json:"weight"`
	IllicitCount int     `json:"illicit_count"`
}

// WalletScore is the scoring engine's output for a single wallet.
type WalletScore struct {
	Wallet    string        `json:"wallet"`
	Score     float64       `json:"score"`
	Exposures []HopExposure `json:"exposures"`
	InDegree  int           `json:"in_degree"`
	OutDegree int           `json:"out_degree"`
}

// Run is one complete, atomically persisted scoring pass.
type Run struct {
	ID        string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source"`
	Config    Config    `json:"config"`
}

// StoredScore is a persisted score row, always read in the context of its
// run.
type StoredScore struct {
	WalletScore
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists scoring runs and their score rows.
//
// SaveRun writes the run row and every score row in one transaction: a run
// is either fully visible or not at all. TopScores orders by score
// descending with ties broken by ascending wallet address.
type Store interface {
	SaveRun(ctx context.Context, run *Run, scores []*WalletScore) error
	LatestRun(ctx context.Context) (*Run, error)
	RunByID(ctx context.Context, id string) (*Run, error)
	TopScores(ctx context.Context, runID string, limit int) ([]*StoredScore, error)
	Score(ctx context.Context, runID, wallet string) (*StoredScore, error)
}
