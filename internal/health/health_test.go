package health

import (
	"context"
	"errors"
	"testing"
)

func TestRegistry_AllHealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("database", func(ctx context.Context) error { return nil })
	r.Register("graph", func(ctx context.Context) error { return nil })

	healthy, statuses := r.Check(context.Background())
	if !healthy {
		t.Error("Check() healthy = false, want true")
	}
	if len(statuses) != 2 {
		t.Fatalf("Check() returned %d statuses, want 2", len(statuses))
	}
	// Registration order is preserved.
	if statuses[0].Name != "database" || statuses[1].Name != "graph" {
		t.Errorf("status order = [%s, %s], want [database, graph]", statuses[0].Name, statuses[1].Name)
	}
}

func TestRegistry_FailurePropagates(t *testing.T) {
	r := NewRegistry()
	r.Register("database", func(ctx context.Context) error { return errors.New("connection refused") })
	r.Register("graph", func(ctx context.Context) error { return nil })

	healthy, statuses := r.Check(context.Background())
	if healthy {
		t.Error("Check() healthy = true with a failing probe")
	}
	if statuses[0].Healthy || statuses[0].Detail != "connection refused" {
		t.Errorf("failing status = %+v, want unhealthy with detail", statuses[0])
	}
	if !statuses[1].Healthy {
		t.Errorf("passing probe reported unhealthy: %+v", statuses[1])
	}
}

func TestRegistry_ReplaceProbe(t *testing.T) {
	r := NewRegistry()
	r.Register("database", func(ctx context.Context) error { return errors.New("down") })
	r.Register("database", func(ctx context.Context) error { return nil })

	healthy, statuses := r.Check(context.Background())
	if !healthy {
		t.Error("Check() healthy = false after probe replacement")
	}
	if len(statuses) != 1 {
		t.Errorf("Check() returned %d statuses, want 1", len(statuses))
	}
}

func TestRegistry_Empty(t *testing.T) {
	healthy, statuses := NewRegistry().Check(context.Background())
	if !healthy {
		t.Error("empty registry should be healthy")
	}
	if len(statuses) != 0 {
		t.Errorf("empty registry returned %d statuses", len(statuses))
	}
}
