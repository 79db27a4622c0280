package graph

import (
	"fmt"
	"sort"
	"testing"

	"github.com/mbd888/walletrisk/internal/tx"
)

func walletList(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("W%04d", i)
	}
	return out
}

func TestSelectIllicit_Deterministic(t *testing.T) {
	wallets := walletList(200)
	p := SeedParams{Seed: 42, Pct: 0.05}

	first := selectIllicit(wallets, p)
	for i := 0; i < 5; i++ {
		got := selectIllicit(wallets, p)
		if len(got) != len(first) {
			t.Fatalf("run %d: len = %d, want %d", i, len(got), len(first))
		}
		for j := range got {
			if got[j] != first[j] {
				t.Fatalf("run %d: selection differs at %d: %s vs %s", i, j, got[j], first[j])
			}
		}
	}
}

func TestSelectIllicit_SeedChangesSelection(t *testing.T) {
	wallets := walletList(200)
	a := selectIllicit(wallets, SeedParams{Seed: 42, Pct: 0.05})
	b := selectIllicit(wallets, SeedParams{Seed: 43, Pct: 0.05})

	same := len(a) == len(b)
	if same {
		for i := range a {
			if a[i] != b[i] {
				same = false
				break
			}
		}
	}
	if same {
		t.Error("different seeds produced identical selections")
	}
}

func TestSelectIllicit_Size(t *testing.T) {
	tests := []struct {
		n    int
		pct  float64
		want int
	}{
		{200, 0.05, 10},
		{100, 0.053, 5},  // floor, not round
		{10, 0.01, 1},    // floor would be 0, clamped up to 1
		{3, 1.0, 3},      // every wallet
		{0, 0.05, 0},     // empty graph has no seeds
		{1, 0.5, 1},      // single wallet
	}

	for _, tt := range tests {
		got := selectIllicit(walletList(tt.n), SeedParams{Seed: 42, Pct: tt.pct})
		if len(got) != tt.want {
			t.Errorf("selectIllicit(n=%d, pct=%v) selected %d, want %d", tt.n, tt.pct, len(got), tt.want)
		}
	}
}

func TestSelectIllicit_SubsetAndPurity(t *testing.T) {
	wallets := walletList(50)
	snapshot := append([]string(nil), wallets...)

	got := selectIllicit(wallets, SeedParams{Seed: 7, Pct: 0.2})

	// Input order must not be disturbed.
	for i := range wallets {
		if wallets[i] != snapshot[i] {
			t.Fatal("selectIllicit mutated its input slice")
		}
	}

	// Every selection is a real wallet and unique.
	seen := make(map[string]bool)
	for _, w := range got {
		if seen[w] {
			t.Errorf("wallet %s selected twice", w)
		}
		seen[w] = true
		if idx := sort.SearchStrings(wallets, w); idx >= len(wallets) || wallets[idx] != w {
			t.Errorf("selected wallet %s is not in the input set", w)
		}
	}
}

func TestSelectIllicit_IndependentOfTransactionOrder(t *testing.T) {
	// Selection depends only on the sorted wallet set, so building the
	// graph from differently ordered transaction streams must mark the
	// same wallets.
	p := SeedParams{Seed: 42, Pct: 0.34}
	g1 := Build([]tx.Transaction{
		mkTx("t1", "A", "B", 1), mkTx("t2", "C", "D", 1), mkTx("t3", "E", "F", 1),
	}, p)
	g2 := Build([]tx.Transaction{
		mkTx("t3", "E", "F", 1), mkTx("t1", "A", "B", 1), mkTx("t2", "C", "D", 1),
	}, p)

	if g1.IllicitCount() != g2.IllicitCount() {
		t.Fatalf("IllicitCount differs: %d vs %d", g1.IllicitCount(), g2.IllicitCount())
	}
	for _, w := range g1.Wallets() {
		if g1.IsIllicit(w) != g2.IsIllicit(w) {
			t.Errorf("IsIllicit(%s) differs between build orders", w)
		}
	}
}
