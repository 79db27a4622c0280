package tx

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists transactions and ingestion state in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed transaction store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the transactions and ingestion_state tables if they
// don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id           BIGSERIAL PRIMARY KEY,
			tx_id        TEXT NOT NULL UNIQUE,
			sender       TEXT NOT NULL,
			receiver     TEXT NOT NULL,
			amount       DOUBLE PRECISION NOT NULL CHECK (amount >= 0),
			ts           TIMESTAMPTZ NOT NULL,
			ingested_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_transactions_sender ON transactions (sender);
		CREATE INDEX IF NOT EXISTS idx_transactions_receiver ON transactions (receiver);
		CREATE INDEX IF NOT EXISTS idx_transactions_ingested_at ON transactions (ingested_at);

		CREATE TABLE IF NOT EXISTS ingestion_state (
			consumer_name  TEXT PRIMARY KEY,
			total_inserted BIGINT NOT NULL DEFAULT 0,
			last_error     TEXT,
			last_batch_at  TIMESTAMPTZ,
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// InsertBatch inserts the batch and bumps the consumer's state row in a
// single transaction. ON CONFLICT DO NOTHING ... RETURNING tx_id yields
// exactly the set of newly inserted keys; an affected-row count would
// conflate duplicates and must not drive the counter.
func (s *PostgresStore) InsertBatch(ctx context.Context, consumer string, txs []Transaction) (*BatchResult, error) {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	res := &BatchResult{}

	if len(txs) > 0 {
		ids := make([]string, len(txs))
		senders := make([]string, len(txs))
		receivers := make([]string, len(txs))
		amounts := make([]float64, len(txs))
		stamps := make([]time.Time, len(txs))
		for i, t := range txs {
			ids[i] = t.TxID
			senders[i] = t.Sender
			receivers[i] = t.Receiver
			amounts[i] = t.Amount
			stamps[i] = t.Timestamp
		}

		rows, err := dbtx.QueryContext(ctx, `
			INSERT INTO transactions (tx_id, sender, receiver, amount, ts)
			SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::float8[], $5::timestamptz[])
			ON CONFLICT (tx_id) DO NOTHING
			RETURNING tx_id
		`, pq.Array(ids), pq.Array(senders), pq.Array(receivers), pq.Array(amounts), pq.Array(stamps))
		if err != nil {
			return nil, fmt.Errorf("insert batch: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan inserted tx_id: %w", err)
			}
			res.InsertedIDs = append(res.InsertedIDs, id)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("insert batch: %w", err)
		}
		_ = rows.Close()
		res.Duplicates = len(txs) - len(res.InsertedIDs)
	}

	_, err = dbtx.ExecContext(ctx, `
		INSERT INTO ingestion_state (consumer_name, total_inserted, last_error, last_batch_at, updated_at)
		VALUES ($1, $2, NULL, NOW(), NOW())
		ON CONFLICT (consumer_name) DO UPDATE SET
			total_inserted = ingestion_state.total_inserted + EXCLUDED.total_inserted,
			last_error     = NULL,
			last_batch_at  = NOW(),
			updated_at     = NOW()
	`, consumer, len(res.InsertedIDs))
	if err != nil {
		return nil, fmt.Errorf("update ingestion state: %w", err)
	}

	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return res, nil
}

// RecordFailure stores the last error on the consumer's state row without
// advancing any counters.
func (s *PostgresStore) RecordFailure(ctx context.Context, consumer string, cause string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_state (consumer_name, last_error, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (consumer_name) DO UPDATE SET
			last_error = EXCLUDED.last_error,
			updated_at = NOW()
	`, consumer, cause)
	return err
}

// State returns the consumer's state row, or a zero-valued state if the
// consumer has never committed a batch.
func (s *PostgresStore) State(ctx context.Context, consumer string) (*IngestionState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT consumer_name, total_inserted, COALESCE(last_error, ''), last_batch_at, updated_at
		FROM ingestion_state
		WHERE consumer_name = $1
	`, consumer)

	st := &IngestionState{}
	var lastBatch sql.NullTime
	err := row.Scan(&st.Consumer, &st.TotalInserted, &st.LastError, &lastBatch, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return &IngestionState{Consumer: consumer}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ingestion state: %w", err)
	}
	if lastBatch.Valid {
		t := lastBatch.Time
		st.LastBatchAt = &t
	}
	return st, nil
}

// All loads the full transaction set ordered by insertion.
func (s *PostgresStore) All(ctx context.Context) ([]Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tx_id, sender, receiver, amount, ts, ingested_at
		FROM transactions
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.TxID, &t.Sender, &t.Receiver, &t.Amount, &t.Timestamp, &t.IngestedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n)
	return n, err
}

func (s *PostgresStore) CountIngestedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE ingested_at >= $1`, since).Scan(&n)
	return n, err
}
