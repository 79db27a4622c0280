package scoring

import (
	"context"
	"sort"

	"github.com/mbd888/walletrisk/internal/graph"
)

// HopContribution is one row of the hop-by-hop attribution.
type HopContribution struct {
	Hop          int     `json:"hop"`
	Weight       float64 `json:"weight"`
	IllicitCount int     `json:"illicit_count"`
	Contribution float64 `json:"contribution"`
}

// Contributor is a single illicit wallet and the weight it contributed at
// its hop distance.
type Contributor struct {
	Wallet       string  `json:"wallet"`
	Hop          int     `json:"hop"`
	Contribution float64 `json:"contribution"`
}

// Explanation reconstructs how a stored score was composed.
//
// Contributor identities are not persisted with runs, so TopContributors
// always reflect the current graph snapshot. RecomputedFromCurrentGraph is
// set when the hop totals themselves had to be rebuilt from the current
// snapshot (the run stored no exposures); in that case the breakdown may
// differ from the graph the run was scored against.
type Explanation struct {
	Wallet                     string            `json:"wallet"`
	RunID                      string            `json:"run_id"`
	Score                      float64           `json:"score"`
	MaxHops                    int               `json:"max_hops"`
	HopBreakdown               []HopContribution `json:"hop_breakdown"`
	TopContributors            []Contributor     `json:"top_contributors"`
	RecomputedFromCurrentGraph bool              `json:"recomputed_from_current_graph"`
}

// ExplainOptions bound the attribution depth and contributor list size.
type ExplainOptions struct {
	RunID       string // empty selects the latest run
	MaxHops     int    // 0 uses the run's configured depth
	PerHopLimit int    // 0 means no per-hop truncation
}

// Explain reconstructs the hop-level attribution for one wallet.
func (s *Service) Explain(ctx context.Context, wallet string, opts ExplainOptions) (*Explanation, error) {
	var run *Run
	var err error
	if opts.RunID == "" {
		run, err = s.store.LatestRun(ctx)
		if err == ErrRunNotFound {
			return nil, ErrWalletNotFound
		}
	} else {
		run, err = s.store.RunByID(ctx, opts.RunID)
	}
	if err != nil {
		return nil, err
	}

	stored, err := s.store.Score(ctx, run.ID, wallet)
	if err != nil {
		return nil, err
	}

	cfg := run.Config.normalized()
	maxHops := cfg.MaxHops
	if opts.MaxHops > 0 && opts.MaxHops < maxHops {
		maxHops = opts.MaxHops
	}

	g, graphReady := s.holder.Load()
	if !graphReady {
		// Contributors cannot be derived without a snapshot.
		return nil, ErrGraphNotReady
	}

	exp := stored.Exposures
	recomputed := false
	if len(exp) == 0 {
		if !g.HasWallet(wallet) {
			return nil, ErrGraphNotReady
		}
		exp = exposures(g, wallet, cfg)
		recomputed = true
	}

	breakdown := make([]HopContribution, 0, maxHops+1)
	for _, e := range exp {
		if e.Hop > maxHops {
			continue
		}
		breakdown = append(breakdown, HopContribution{
			Hop:          e.Hop,
			Weight:       e.Weight,
			IllicitCount: e.IllicitCount,
			Contribution: round6(e.Weight * float64(e.IllicitCount)),
		})
	}

	contributors := collectContributors(g, wallet, cfg, maxHops, opts.PerHopLimit)

	return &Explanation{
		Wallet:                     wallet,
		RunID:                      run.ID,
		Score:                      stored.Score,
		MaxHops:                    maxHops,
		HopBreakdown:               breakdown,
		TopContributors:            contributors,
		RecomputedFromCurrentGraph: recomputed,
	}, nil
}

// collectContributors lists illicit wallets reachable within maxHops,
// ordered by contribution descending, then hop ascending, then address
// ascending, optionally truncated per hop.
func collectContributors(g *graph.Graph, wallet string, cfg Config, maxHops, perHopLimit int) []Contributor {
	if !g.HasWallet(wallet) {
		return nil
	}

	dist := hopDistances(g, wallet, maxHops)

	var out []Contributor
	for w, h := range dist {
		if g.IsIllicit(w) {
			out = append(out, Contributor{Wallet: w, Hop: h, Contribution: cfg.HopWeights[h]})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Contribution != out[j].Contribution {
			return out[i].Contribution > out[j].Contribution
		}
		if out[i].Hop != out[j].Hop {
			return out[i].Hop < out[j].Hop
		}
		return out[i].Wallet < out[j].Wallet
	})

	if perHopLimit > 0 {
		kept := out[:0]
		perHop := make(map[int]int)
		for _, c := range out {
			if perHop[c.Hop] >= perHopLimit {
				continue
			}
			perHop[c.Hop]++
			kept = append(kept, c)
		}
		out = kept
	}
	return out
}
