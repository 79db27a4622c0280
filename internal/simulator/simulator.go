// Package simulator generates synthetic transaction streams for load and
// demo environments. A fixed seed yields the same wallet population and
// transfer pattern on every run; the tx_id prefix is derived from the
// current clock so repeated runs against the same store still insert
// fresh rows.
package simulator

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"time"
)

// Record is the wire shape emitted to Kafka or CSV. The field names match
// the src/dst naming variant accepted by ingestion.
type Record struct {
	TxID      string  `json:"tx_id"`
	Timestamp string  `json:"timestamp"`
	Src       string  `json:"src"`
	Dst       string  `json:"dst"`
	Amount    float64 `json:"amount"`
}

// Params controls the shape of the generated stream.
type Params struct {
	Wallets  int
	Txs      int
	DaysBack int
	Seed     int64
	// RunPrefix disambiguates tx_ids across runs. Zero means "use the
	// current epoch second".
	RunPrefix int64
}

// DefaultParams mirrors the sizes used in demo environments.
func DefaultParams() Params {
	return Params{Wallets: 200, Txs: 2000, DaysBack: 30, Seed: 42}
}

// WalletID formats the i-th synthetic wallet identifier.
func WalletID(i int) string {
	return fmt.Sprintf("W%04d", i)
}

// Generate produces p.Txs records between p.Wallets distinct wallets with
// self-transfers excluded. Amounts are squared-uniform to skew small, with
// a 0.01 floor, rounded to cents.
func Generate(p Params) []Record {
	if p.Wallets < 2 {
		p.Wallets = 2
	}
	prefix := p.RunPrefix
	if prefix == 0 {
		prefix = time.Now().Unix()
	}

	rng := rand.New(rand.NewSource(p.Seed))

	wallets := make([]string, p.Wallets)
	for i := range wallets {
		wallets[i] = WalletID(i)
	}

	window := int64(p.DaysBack) * 24 * 3600
	start := time.Now().UTC().Add(-time.Duration(window) * time.Second)

	out := make([]Record, 0, p.Txs)
	for t := 0; t < p.Txs; t++ {
		src := wallets[rng.Intn(len(wallets))]
		dst := wallets[rng.Intn(len(wallets))]
		for dst == src {
			dst = wallets[rng.Intn(len(wallets))]
		}

		ts := start.Add(time.Duration(rng.Int63n(window+1)) * time.Second)
		raw := rng.Float64()
		amount := raw * raw * 10000
		if amount < 0.01 {
			amount = 0.01
		}
		amount = float64(int64(amount*100+0.5)) / 100

		out = append(out, Record{
			TxID:      fmt.Sprintf("T%d_%06d", prefix, t),
			Timestamp: ts.Format(time.RFC3339),
			Src:       src,
			Dst:       dst,
			Amount:    amount,
		})
	}
	return out
}

// WriteCSV writes records in the header-mapped layout the CSV source reads.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"tx_id", "timestamp", "src", "dst", "amount"}); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{r.TxID, r.Timestamp, r.Src, r.Dst, strconv.FormatFloat(r.Amount, 'f', 2, 64)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
