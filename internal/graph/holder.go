package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mbd888/walletrisk/internal/tx"
)

// ErrSourceUnavailable means the transaction source could not be read, so
// no graph could be built. An existing snapshot, if any, stays active.
var ErrSourceUnavailable = errors.New("transaction source unavailable")

// Holder publishes the active graph snapshot. Rebuilds go through Reload,
// which builds into a fresh Graph and swaps the pointer atomically;
// in-flight readers keep the snapshot they loaded.
type Holder struct {
	active atomic.Pointer[Graph]
}

// NewHolder creates a Holder with no active snapshot.
func NewHolder() *Holder {
	return &Holder{}
}

// Load returns the active snapshot, or (nil, false) before the first
// successful build.
func (h *Holder) Load() (*Graph, bool) {
	g := h.active.Load()
	return g, g != nil
}

// Builder rebuilds graph snapshots from a transaction source.
type Builder struct {
	source tx.Source
	holder *Holder
	seed   SeedParams
	logger *slog.Logger
}

// NewBuilder creates a Builder publishing into holder.
func NewBuilder(source tx.Source, holder *Holder, seed SeedParams, logger *slog.Logger) *Builder {
	return &Builder{source: source, holder: holder, seed: seed, logger: logger}
}

// Reload loads the full transaction set, builds a complete new graph, and
// swaps it in. Concurrent calls are safe: each builds its own instance and
// the last swap wins, so no reader ever sees a partial graph.
func (b *Builder) Reload(ctx context.Context) (*Graph, error) {
	start := time.Now()

	txs, err := b.source.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	g := Build(txs, b.seed)
	b.holder.active.Store(g)

	b.logger.Info("graph rebuilt",
		"transactions", len(txs),
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"illicit_seeds", g.IllicitCount(),
		"elapsed", time.Since(start).String(),
	)
	return g, nil
}
