// Package tx defines the canonical transaction record, schema normalization
// for the two accepted wire shapes, and the persistence contract.
//
// Deduplication is keyed on tx_id alone: re-inserting a previously seen
// record is a no-op, and the store reports exactly the set of tx_ids it
// newly inserted so ingestion counters stay accurate under redelivery.
package tx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Transaction is an immutable persisted transaction.
type Transaction struct {
	TxID       string    `json:"tx_id"`
	Sender     string    `json:"sender"`
	Receiver   string    `json:"receiver"`
	Amount     float64   `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
	IngestedAt time.Time `json:"ingested_at"`
}

// RawRecord is a transaction event as it arrives off the stream. Both
// sender/receiver and src/dst naming conventions are accepted; amount and
// timestamp may arrive as JSON numbers or strings.
type RawRecord struct {
	TxID     string `json:"tx_id"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Src      string `json:"src"`
	Dst      string `json:"dst"`
	Amount   any    `json:"amount"`
	Time     any    `json:"timestamp"`
}

// Validation failures for a single raw record. The batch writer counts
// these per record; they never abort the surrounding batch.
var (
	ErrMissingTxID    = errors.New("missing tx_id")
	ErrMissingParty   = errors.New("missing sender or receiver")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = errors.New("negative amount")
)

// Normalize converts a raw stream record into the canonical shape,
// resolving the field-naming variant before validation.
func Normalize(r RawRecord, now time.Time) (Transaction, error) {
	sender := r.Sender
	if sender == "" {
		sender = r.Src
	}
	receiver := r.Receiver
	if receiver == "" {
		receiver = r.Dst
	}

	if strings.TrimSpace(r.TxID) == "" {
		return Transaction{}, ErrMissingTxID
	}
	if strings.TrimSpace(sender) == "" || strings.TrimSpace(receiver) == "" {
		return Transaction{}, ErrMissingParty
	}

	amount, err := parseAmount(r.Amount)
	if err != nil {
		return Transaction{}, err
	}
	if amount < 0 {
		return Transaction{}, ErrNegativeAmount
	}

	ts := parseTimestamp(r.Time, now)

	return Transaction{
		TxID:       strings.TrimSpace(r.TxID),
		Sender:     strings.TrimSpace(sender),
		Receiver:   strings.TrimSpace(receiver),
		Amount:     amount,
		Timestamp:  ts,
		IngestedAt: now,
	}, nil
}

func parseAmount(v any) (float64, error) {
	switch a := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return a, nil
	case int:
		return float64(a), nil
	case int64:
		return float64(a), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, a)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, v)
	}
}

// parseTimestamp accepts epoch seconds (number or numeric string) or an
// RFC3339 / ISO-8601 string. Unparseable or absent timestamps fall back to
// the ingestion time; the record itself is still valid.
func parseTimestamp(v any, now time.Time) time.Time {
	switch ts := v.(type) {
	case float64:
		return time.Unix(int64(ts), 0).UTC()
	case int64:
		return time.Unix(ts, 0).UTC()
	case string:
		s := strings.TrimSpace(ts)
		if s == "" {
			return now
		}
		if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(epoch, 0).UTC()
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
		return now
	default:
		return now
	}
}

// BatchResult reports the outcome of one transactional batch write.
type BatchResult struct {
	InsertedIDs []string
	Duplicates  int
}

// IngestionState is the single operational-state row for a consumer.
type IngestionState struct {
	Consumer      string     `json:"consumer"`
	TotalInserted int64      `json:"total_inserted"`
	LastError     string     `json:"last_error,omitempty"`
	LastBatchAt   *time.Time `json:"last_batch_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Source is anything the graph builder can load a full transaction set from.
type Source interface {
	All(ctx context.Context) ([]Transaction, error)
}

// Store persists transactions and per-consumer ingestion state.
//
// InsertBatch writes the batch and updates the consumer's state row inside
// one database transaction: a failure leaves both untouched. The returned
// BatchResult lists the tx_ids actually inserted; conflicting duplicates
// are counted but not re-inserted and not re-counted toward TotalInserted.
type Store interface {
	Source
	InsertBatch(ctx context.Context, consumer string, txs []Transaction) (*BatchResult, error)
	RecordFailure(ctx context.Context, consumer string, cause string) error
	State(ctx context.Context, consumer string) (*IngestionState, error)
	Count(ctx context.Context) (int64, error)
	CountIngestedSince(ctx context.Context, since time.Time) (int64, error)
}
