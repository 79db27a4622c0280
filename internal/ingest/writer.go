// Package ingest runs the long-lived ingestion path: a Kafka consumer
// group feeding a transactional batch writer.
//
// Delivery is at-least-once; offsets are committed only after the batch
// has committed to the store, and the tx_id uniqueness key absorbs
// redelivery. Store failures are operational, not fatal: the batch is
// retried with backoff, last_error is recorded, and the consumer keeps
// running.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbd888/walletrisk/internal/metrics"
	"github.com/mbd888/walletrisk/internal/retry"
	"github.com/mbd888/walletrisk/internal/tx"
)

// Writer folds raw records into per-record outcomes and commits each batch
// (rows + state counter) as one transaction.
type Writer struct {
	store        tx.Store
	consumer     string
	batchTimeout time.Duration
	maxAttempts  int
	logger       *slog.Logger
}

// NewWriter creates a batch writer for the named consumer.
func NewWriter(store tx.Store, consumer string, batchTimeout time.Duration, maxAttempts int, logger *slog.Logger) *Writer {
	if batchTimeout <= 0 {
		batchTimeout = 30 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Writer{
		store:        store,
		consumer:     consumer,
		batchTimeout: batchTimeout,
		maxAttempts:  maxAttempts,
		logger:       logger,
	}
}

// FlushStats reports the per-record outcomes of one batch.
type FlushStats struct {
	Inserted   int
	Duplicates int
	Rejected   int
}

// Flush normalizes and validates each record independently, then writes
// the valid remainder in one store transaction. Validation failures skip
// the record only; a store failure after retries is returned to the
// caller, which must not advance its offsets.
func (w *Writer) Flush(ctx context.Context, raws []tx.RawRecord) (*FlushStats, error) {
	stats := &FlushStats{}
	now := time.Now().UTC()

	valid := make([]tx.Transaction, 0, len(raws))
	for _, r := range raws {
		t, err := tx.Normalize(r, now)
		if err != nil {
			stats.Rejected++
			metrics.IngestedRecordsTotal.WithLabelValues("rejected").Inc()
			w.logger.Debug("record rejected", "tx_id", r.TxID, "error", err)
			continue
		}
		valid = append(valid, t)
	}

	start := time.Now()
	batchCtx, cancel := context.WithTimeout(ctx, w.batchTimeout)
	defer cancel()

	var res *tx.BatchResult
	attempt := 0
	err := retry.Do(batchCtx, w.maxAttempts, 500*time.Millisecond, func() error {
		attempt++
		var ierr error
		res, ierr = w.store.InsertBatch(batchCtx, w.consumer, valid)
		if ierr != nil && attempt < w.maxAttempts {
			metrics.IngestBatchesTotal.WithLabelValues("retried").Inc()
			w.logger.Warn("batch insert failed, retrying",
				"attempt", attempt, "records", len(valid), "error", ierr)
		}
		return ierr
	})
	if err != nil {
		metrics.IngestBatchesTotal.WithLabelValues("failed").Inc()
		// Best effort: the store may still be down.
		if rerr := w.store.RecordFailure(context.WithoutCancel(ctx), w.consumer, err.Error()); rerr != nil {
			w.logger.Warn("failed to record ingestion error", "error", rerr)
		}
		return stats, fmt.Errorf("flush batch: %w", err)
	}

	stats.Inserted = len(res.InsertedIDs)
	stats.Duplicates = res.Duplicates
	metrics.IngestedRecordsTotal.WithLabelValues("inserted").Add(float64(stats.Inserted))
	metrics.IngestedRecordsTotal.WithLabelValues("duplicate").Add(float64(stats.Duplicates))
	metrics.IngestBatchesTotal.WithLabelValues("ok").Inc()
	metrics.IngestBatchDuration.Observe(time.Since(start).Seconds())

	w.logger.Info("batch committed",
		"records", len(raws),
		"inserted", stats.Inserted,
		"duplicates", stats.Duplicates,
		"rejected", stats.Rejected,
	)
	return stats, nil
}
