package ingest

import (
	"context"
	"time"

	"github.com/mbd888/walletrisk/internal/tx"
)

// throughputWindow is the trailing window used for the tx/s estimate.
const throughputWindow = 5 * time.Minute

// Status is the observability payload for the ingestion path.
type Status struct {
	TxCount               int64    `json:"tx_count"`
	TotalInserted         int64    `json:"total_inserted"`
	IngestedLast5m        int64    `json:"ingested_last_5m"`
	TxPerSec              float64  `json:"tx_per_sec"`
	SecondsSinceLastBatch *float64 `json:"seconds_since_last_batch,omitempty"`
	LastError             string   `json:"last_error,omitempty"`
	GraphReady            bool     `json:"graph_ready"`
}

// CollectStatus assembles the current ingestion status from the store.
// Throughput is derived from insertion timestamps over the trailing
// window; the liveness signal is the age of the last committed batch.
func CollectStatus(ctx context.Context, store tx.Store, consumer string, graphReady bool) (*Status, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := store.CountIngestedSince(ctx, time.Now().Add(-throughputWindow))
	if err != nil {
		return nil, err
	}
	state, err := store.State(ctx, consumer)
	if err != nil {
		return nil, err
	}

	st := &Status{
		TxCount:        count,
		TotalInserted:  state.TotalInserted,
		IngestedLast5m: recent,
		TxPerSec:       float64(recent) / throughputWindow.Seconds(),
		LastError:      state.LastError,
		GraphReady:     graphReady,
	}
	if state.LastBatchAt != nil {
		secs := time.Since(*state.LastBatchAt).Seconds()
		st.SecondsSinceLastBatch = &secs
	}
	return st, nil
}
