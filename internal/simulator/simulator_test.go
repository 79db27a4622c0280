package simulator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mbd888/walletrisk/internal/tx"
)

func TestGenerate_Deterministic(t *testing.T) {
	p := Params{Wallets: 50, Txs: 200, DaysBack: 7, Seed: 42, RunPrefix: 1}

	a := Generate(p)
	b := Generate(p)
	if len(a) != 200 || len(b) != 200 {
		t.Fatalf("generated %d and %d records, want 200", len(a), len(b))
	}
	for i := range a {
		if a[i].TxID != b[i].TxID || a[i].Src != b[i].Src || a[i].Dst != b[i].Dst || a[i].Amount != b[i].Amount {
			t.Fatalf("records differ at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGenerate_Shape(t *testing.T) {
	records := Generate(Params{Wallets: 20, Txs: 500, DaysBack: 7, Seed: 7, RunPrefix: 1})

	ids := make(map[string]bool)
	for _, r := range records {
		if r.Src == r.Dst {
			t.Errorf("self-transfer generated: %+v", r)
		}
		if r.Amount < 0.01 {
			t.Errorf("amount below floor: %v", r.Amount)
		}
		if ids[r.TxID] {
			t.Errorf("duplicate tx_id %s", r.TxID)
		}
		ids[r.TxID] = true
	}
}

func TestWriteCSV_ReadableByCSVSource(t *testing.T) {
	records := Generate(Params{Wallets: 10, Txs: 50, DaysBack: 7, Seed: 42, RunPrefix: 1})

	path := filepath.Join(t.TempDir(), "transactions.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if err := WriteCSV(f, records); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	src := tx.NewCSVSource(path)
	txs, err := src.All(context.Background())
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(txs) != 50 {
		t.Fatalf("loaded %d transactions, want 50", len(txs))
	}
	for i, got := range txs {
		if got.TxID != records[i].TxID || got.Sender != records[i].Src || got.Receiver != records[i].Dst {
			t.Errorf("row %d mismatch: %+v vs %+v", i, got, records[i])
		}
	}
}
