package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mbd888/walletrisk/internal/graph"
	"github.com/mbd888/walletrisk/internal/idgen"
	"github.com/mbd888/walletrisk/internal/metrics"
)

// Service orchestrates scoring runs against the active graph snapshot.
type Service struct {
	holder  *graph.Holder
	builder *graph.Builder
	store   Store
	cfg     Config
	logger  *slog.Logger
	workers int
}

// NewService creates a scoring service. cfg supplies per-deployment
// defaults; individual runs may override it.
func NewService(holder *graph.Holder, builder *graph.Builder, store Store, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		holder:  holder,
		builder: builder,
		store:   store,
		cfg:     cfg.normalized(),
		logger:  logger,
		workers: runtime.GOMAXPROCS(0),
	}
}

// ReloadSummary reports the node and edge counts of a fresh snapshot.
type ReloadSummary struct {
	NodeCount    int `json:"node_count"`
	EdgeCount    int `json:"edge_count"`
	IllicitCount int `json:"illicit_count"`
}

// ReloadGraph rebuilds the active snapshot from the transaction source.
func (s *Service) ReloadGraph(ctx context.Context) (*ReloadSummary, error) {
	g, err := s.builder.Reload(ctx)
	if err != nil {
		return nil, err
	}
	return &ReloadSummary{
		NodeCount:    g.NodeCount(),
		EdgeCount:    g.EdgeCount(),
		IllicitCount: g.IllicitCount(),
	}, nil
}

// GraphReady reports whether a snapshot has been built.
func (s *Service) GraphReady() bool {
	_, ok := s.holder.Load()
	return ok
}

// RunSummary describes one completed scoring run.
type RunSummary struct {
	RunID         string `json:"run_id"`
	WalletsScored int    `json:"wallets_scored"`
	NodeCount     int    `json:"node_count"`
	EdgeCount     int    `json:"edge_count"`
}

// Run executes one full scoring pass: every wallet in the active snapshot
// is scored and all rows are persisted, with the run metadata, in a single
// transaction. If no snapshot exists yet, one build is attempted first; if
// that fails the run surfaces ErrGraphNotReady rather than scoring an
// empty graph.
func (s *Service) Run(ctx context.Context, override *Config) (*RunSummary, error) {
	cfg := s.cfg
	if override != nil {
		cfg = override.normalized()
	}

	g, ok := s.holder.Load()
	if !ok {
		var err error
		g, err = s.builder.Reload(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGraphNotReady, err)
		}
	}

	start := time.Now()
	wallets := g.Wallets()
	scores := make([]*WalletScore, len(wallets))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)
	for i, w := range wallets {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			ws, err := ScoreWallet(g, w, cfg)
			if err != nil {
				return fmt.Errorf("score %s: %w", w, err)
			}
			scores[i] = ws
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		metrics.ScoringRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	run := &Run{
		ID:        idgen.WithPrefix("run_"),
		CreatedAt: time.Now().UTC(),
		Source:    cfg.Source,
		Config:    cfg,
	}
	if err := s.store.SaveRun(ctx, run, scores); err != nil {
		metrics.ScoringRunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("persist run: %w", err)
	}

	metrics.ScoringRunsTotal.WithLabelValues("ok").Inc()
	metrics.ScoringRunDuration.Observe(time.Since(start).Seconds())
	metrics.WalletsScored.Add(float64(len(scores)))

	s.logger.Info("scoring run complete",
		"run_id", run.ID,
		"wallets", len(scores),
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"elapsed", time.Since(start).String(),
	)

	return &RunSummary{
		RunID:         run.ID,
		WalletsScored: len(scores),
		NodeCount:     g.NodeCount(),
		EdgeCount:     g.EdgeCount(),
	}, nil
}

// Top returns the top-limit wallets of the latest run, score descending,
// ties broken by ascending wallet address. An empty slice is returned when
// no run has completed yet.
func (s *Service) Top(ctx context.Context, limit int) ([]*StoredScore, error) {
	run, err := s.store.LatestRun(ctx)
	if err == ErrRunNotFound {
		return []*StoredScore{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.store.TopScores(ctx, run.ID, limit)
}

// WalletScore returns the wallet's row from the latest run.
// ErrWalletNotFound distinguishes absence from a zero score.
func (s *Service) WalletScore(ctx context.Context, wallet string) (*StoredScore, error) {
	run, err := s.store.LatestRun(ctx)
	if err == ErrRunNotFound {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.store.Score(ctx, run.ID, wallet)
}
