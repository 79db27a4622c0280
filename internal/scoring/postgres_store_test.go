package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mbd888/walletrisk/internal/testutil"
)

func pgStore(t *testing.T) *PostgresStore {
	t.Helper()
	db, cleanup := testutil.PGTest(t)
	t.Cleanup(cleanup)

	s := NewPostgresStore(db)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return s
}

func sampleScores() []*WalletScore {
	return []*WalletScore{
		{Wallet: "A", Score: 0.3, Exposures: []HopExposure{{Hop: 2, Weight: 0.3, IllicitCount: 1}}, InDegree: 0, OutDegree: 1},
		{Wallet: "B", Score: 0.6, Exposures: []HopExposure{{Hop: 1, Weight: 0.6, IllicitCount: 1}}, InDegree: 1, OutDegree: 1},
		{Wallet: "C", Score: 1.0, Exposures: []HopExposure{{Hop: 0, Weight: 1.0, IllicitCount: 1}}, InDegree: 1, OutDegree: 1},
		{Wallet: "D", Score: 0.6, Exposures: []HopExposure{{Hop: 1, Weight: 0.6, IllicitCount: 1}}, InDegree: 1, OutDegree: 1},
	}
}

func TestPostgresStore_SaveAndQueryRun(t *testing.T) {
	s := pgStore(t)
	ctx := context.Background()

	run := &Run{
		ID:        "run_test1",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		Source:    "store",
		Config:    DefaultConfig(),
	}
	if err := s.SaveRun(ctx, run, sampleScores()); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	got, err := s.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun() error = %v", err)
	}
	if got.ID != run.ID {
		t.Errorf("LatestRun().ID = %s, want %s", got.ID, run.ID)
	}
	if got.Config.MaxHops != run.Config.MaxHops {
		t.Errorf("round-tripped MaxHops = %d, want %d", got.Config.MaxHops, run.Config.MaxHops)
	}

	byID, err := s.RunByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("RunByID() error = %v", err)
	}
	if byID.ID != run.ID {
		t.Errorf("RunByID().ID = %s, want %s", byID.ID, run.ID)
	}

	top, err := s.TopScores(ctx, run.ID, 10)
	if err != nil {
		t.Fatalf("TopScores() error = %v", err)
	}
	if len(top) != 4 {
		t.Fatalf("TopScores() returned %d rows, want 4", len(top))
	}
	// Score descending, ties broken by ascending wallet: C, B, D, A.
	wantOrder := []string{"C", "B", "D", "A"}
	for i, w := range wantOrder {
		if top[i].Wallet != w {
			t.Errorf("TopScores()[%d] = %s, want %s", i, top[i].Wallet, w)
		}
	}

	sc, err := s.Score(ctx, run.ID, "B")
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if sc.Score != 0.6 || len(sc.Exposures) != 1 || sc.Exposures[0].Hop != 1 {
		t.Errorf("Score(B) = %+v, want score 0.6 with hop-1 exposure", sc)
	}
}

func TestPostgresStore_NotFound(t *testing.T) {
	s := pgStore(t)
	ctx := context.Background()

	if _, err := s.LatestRun(ctx); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LatestRun() error = %v, want ErrRunNotFound", err)
	}
	if _, err := s.RunByID(ctx, "run_missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("RunByID() error = %v, want ErrRunNotFound", err)
	}

	run := &Run{ID: "run_test2", CreatedAt: time.Now().UTC(), Config: DefaultConfig()}
	if err := s.SaveRun(ctx, run, sampleScores()); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if _, err := s.Score(ctx, run.ID, "Z"); !errors.Is(err, ErrWalletNotFound) {
		t.Errorf("Score(Z) error = %v, want ErrWalletNotFound", err)
	}
}

func TestPostgresStore_LatestRunOrdering(t *testing.T) {
	s := pgStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, id := range []string{"run_a", "run_b", "run_c"} {
		run := &Run{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Second), Config: DefaultConfig()}
		if err := s.SaveRun(ctx, run, nil); err != nil {
			t.Fatalf("SaveRun(%s) error = %v", id, err)
		}
	}

	got, err := s.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun() error = %v", err)
	}
	if got.ID != "run_c" {
		t.Errorf("LatestRun().ID = %s, want run_c", got.ID)
	}
}
