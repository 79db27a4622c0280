package tx

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"
)

// CSVSource loads a bulk transaction snapshot from a CSV file with a
// header row. Recognized columns: tx_id, sender/src, receiver/dst, amount,
// timestamp. Rows that fail normalization are skipped.
type CSVSource struct {
	Path string
}

// NewCSVSource creates a Source reading from the given file path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

func (c *CSVSource) All(ctx context.Context) ([]Transaction, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("open csv source: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	field := func(row []string, name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	now := time.Now().UTC()
	var out []Transaction
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		raw := RawRecord{
			TxID:     field(row, "tx_id"),
			Sender:   field(row, "sender"),
			Receiver: field(row, "receiver"),
			Src:      field(row, "src"),
			Dst:      field(row, "dst"),
			Amount:   field(row, "amount"),
			Time:     field(row, "timestamp"),
		}
		t, err := Normalize(raw, now)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
