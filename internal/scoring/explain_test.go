package scoring

import (
	"context"
	"errors"
	"testing"
)

func runAndSeed(t *testing.T) (*Service, string, string) {
	t.Helper()
	ctx := context.Background()
	svc, _ := newTestService(t, chainTxs())

	summary, err := svc.Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	g, ok := svc.holder.Load()
	if !ok {
		t.Fatal("no graph after run")
	}
	seed := ""
	for _, w := range g.Wallets() {
		if g.IsIllicit(w) {
			seed = w
		}
	}
	if seed == "" {
		t.Fatal("no illicit wallet in graph")
	}
	return svc, summary.RunID, seed
}

func TestExplain_SeedWallet(t *testing.T) {
	svc, runID, seed := runAndSeed(t)

	exp, err := svc.Explain(context.Background(), seed, ExplainOptions{})
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if exp.RunID != runID {
		t.Errorf("RunID = %s, want %s", exp.RunID, runID)
	}
	if exp.RecomputedFromCurrentGraph {
		t.Error("RecomputedFromCurrentGraph set despite stored exposures")
	}

	// The seed contributes to itself at hop 0 with full weight.
	if len(exp.HopBreakdown) == 0 {
		t.Fatal("empty hop breakdown")
	}
	h0 := exp.HopBreakdown[0]
	if h0.Hop != 0 || h0.IllicitCount != 1 || h0.Contribution != 1.0 {
		t.Errorf("hop 0 = %+v, want {Hop:0 IllicitCount:1 Contribution:1}", h0)
	}

	if len(exp.TopContributors) == 0 {
		t.Fatal("no contributors")
	}
	first := exp.TopContributors[0]
	if first.Wallet != seed || first.Hop != 0 || first.Contribution != 1.0 {
		t.Errorf("top contributor = %+v, want the seed itself at hop 0", first)
	}
}

func TestExplain_BreakdownSumsToScore(t *testing.T) {
	svc, _, _ := runAndSeed(t)
	ctx := context.Background()

	for _, w := range []string{"A", "B", "C", "D", "E"} {
		exp, err := svc.Explain(ctx, w, ExplainOptions{})
		if err != nil {
			t.Fatalf("Explain(%s) error = %v", w, err)
		}
		sum := 0.0
		for _, h := range exp.HopBreakdown {
			sum += h.Contribution
		}
		// Degree normalization is off in the test config, so the hop
		// contributions sum to the stored score exactly.
		if round6(sum) != exp.Score {
			t.Errorf("Explain(%s): breakdown sums to %v, stored score %v", w, sum, exp.Score)
		}
	}
}

func TestExplain_ContributorOrdering(t *testing.T) {
	svc, _, _ := runAndSeed(t)

	// A middle wallet sees the seed at some hop; ordering is contribution
	// desc, then hop asc, then wallet asc.
	exp, err := svc.Explain(context.Background(), "C", ExplainOptions{})
	if err != nil {
		t.Fatalf("Explain(C) error = %v", err)
	}
	for i := 1; i < len(exp.TopContributors); i++ {
		prev, cur := exp.TopContributors[i-1], exp.TopContributors[i]
		if cur.Contribution > prev.Contribution {
			t.Errorf("contributors not sorted by contribution: %+v before %+v", prev, cur)
		}
	}
}

func TestExplain_RunByID(t *testing.T) {
	svc, runID, seed := runAndSeed(t)
	ctx := context.Background()

	// A second run becomes latest; the first stays addressable by ID.
	if _, err := svc.Run(ctx, nil); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	exp, err := svc.Explain(ctx, seed, ExplainOptions{RunID: runID})
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if exp.RunID != runID {
		t.Errorf("RunID = %s, want %s", exp.RunID, runID)
	}

	_, err = svc.Explain(ctx, seed, ExplainOptions{RunID: "run_missing"})
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Explain(bad run) error = %v, want ErrRunNotFound", err)
	}
}

func TestExplain_UnknownWallet(t *testing.T) {
	svc, _, _ := runAndSeed(t)

	_, err := svc.Explain(context.Background(), "Z", ExplainOptions{})
	if !errors.Is(err, ErrWalletNotFound) {
		t.Errorf("Explain(Z) error = %v, want ErrWalletNotFound", err)
	}
}

func TestExplain_NoRuns(t *testing.T) {
	svc, _ := newTestService(t, chainTxs())

	_, err := svc.Explain(context.Background(), "A", ExplainOptions{})
	if !errors.Is(err, ErrWalletNotFound) {
		t.Errorf("Explain() error = %v before any run, want ErrWalletNotFound", err)
	}
}

func TestExplain_MaxHopsTruncatesBreakdown(t *testing.T) {
	svc, _, seed := runAndSeed(t)

	exp, err := svc.Explain(context.Background(), seed, ExplainOptions{MaxHops: 1})
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if exp.MaxHops != 1 {
		t.Errorf("MaxHops = %d, want 1", exp.MaxHops)
	}
	for _, h := range exp.HopBreakdown {
		if h.Hop > 1 {
			t.Errorf("breakdown contains hop %d beyond requested depth", h.Hop)
		}
	}
	for _, c := range exp.TopContributors {
		if c.Hop > 1 {
			t.Errorf("contributor %s at hop %d beyond requested depth", c.Wallet, c.Hop)
		}
	}
}

func TestExplain_PerHopLimit(t *testing.T) {
	svc, _ := newTestService(t, chainTxs())

	ctx := context.Background()
	if _, err := svc.Run(ctx, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	exp, err := svc.Explain(ctx, "C", ExplainOptions{PerHopLimit: 1})
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	perHop := make(map[int]int)
	for _, c := range exp.TopContributors {
		perHop[c.Hop]++
		if perHop[c.Hop] > 1 {
			t.Errorf("hop %d has %d contributors, limit 1", c.Hop, perHop[c.Hop])
		}
	}
}
