package scoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists scoring runs and score rows in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed scoring store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the scoring_runs and risk_scores tables if they don't
// exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scoring_runs (
			run_id      TEXT PRIMARY KEY,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			tx_source   TEXT NOT NULL DEFAULT '',
			config      JSONB NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_scoring_runs_created_at
			ON scoring_runs (created_at DESC);

		CREATE TABLE IF NOT EXISTS risk_scores (
			run_id      TEXT NOT NULL REFERENCES scoring_runs(run_id) ON DELETE CASCADE,
			wallet      TEXT NOT NULL,
			score       DOUBLE PRECISION NOT NULL,
			exposures   JSONB NOT NULL DEFAULT '[]',
			in_degree   INTEGER NOT NULL,
			out_degree  INTEGER NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (run_id, wallet)
		);

		CREATE INDEX IF NOT EXISTS idx_risk_scores_run_score
			ON risk_scores (run_id, score DESC, wallet ASC);
	`)
	return err
}

// SaveRun writes the run row plus all score rows in one transaction.
func (s *PostgresStore) SaveRun(ctx context.Context, run *Run, scores []*WalletScore) error {
	cfgJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("marshal run config: %w", err)
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	_, err = dbtx.ExecContext(ctx, `
		INSERT INTO scoring_runs (run_id, created_at, tx_source, config)
		VALUES ($1, $2, $3, $4)
	`, run.ID, run.CreatedAt, run.Source, cfgJSON)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := dbtx.PrepareContext(ctx, `
		INSERT INTO risk_scores (run_id, wallet, score, exposures, in_degree, out_degree, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("prepare score insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, sc := range scores {
		expJSON, err := json.Marshal(sc.Exposures)
		if err != nil {
			return fmt.Errorf("marshal exposures for %s: %w", sc.Wallet, err)
		}
		if _, err := stmt.ExecContext(ctx, run.ID, sc.Wallet, sc.Score, expJSON,
			sc.InDegree, sc.OutDegree, run.CreatedAt); err != nil {
			return fmt.Errorf("insert score for %s: %w", sc.Wallet, err)
		}
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, created_at, tx_source, config
		FROM scoring_runs
		ORDER BY created_at DESC, run_id DESC
		LIMIT 1
	`)
	return scanRun(row)
}

func (s *PostgresStore) RunByID(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, created_at, tx_source, config
		FROM scoring_runs
		WHERE run_id = $1
	`, id)
	return scanRun(row)
}

func scanRun(row *sql.Row) (*Run, error) {
	var r Run
	var cfgJSON []byte
	err := row.Scan(&r.ID, &r.CreatedAt, &r.Source, &cfgJSON)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal(cfgJSON, &r.Config); err != nil {
		return nil, fmt.Errorf("unmarshal run config: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) TopScores(ctx context.Context, runID string, limit int) ([]*StoredScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, wallet, score, exposures, in_degree, out_degree, created_at
		FROM risk_scores
		WHERE run_id = $1
		ORDER BY score DESC, wallet ASC
		LIMIT $2
	`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("list top scores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*StoredScore
	for rows.Next() {
		sc, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Score(ctx context.Context, runID, wallet string) (*StoredScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, wallet, score, exposures, in_degree, out_degree, created_at
		FROM risk_scores
		WHERE run_id = $1 AND wallet = $2
	`, runID, wallet)
	if err != nil {
		return nil, fmt.Errorf("load score: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrWalletNotFound
	}
	return scanScore(rows)
}

func scanScore(rows *sql.Rows) (*StoredScore, error) {
	var sc StoredScore
	var expJSON []byte
	if err := rows.Scan(&sc.RunID, &sc.Wallet, &sc.Score, &expJSON,
		&sc.InDegree, &sc.OutDegree, &sc.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan score: %w", err)
	}
	if err := json.Unmarshal(expJSON, &sc.Exposures); err != nil {
		return nil, fmt.Errorf("unmarshal exposures: %w", err)
	}
	return &sc, nil
}
