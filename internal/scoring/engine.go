package scoring

import (
	"math"

	"github.com/mbd888/walletrisk/internal/graph"
)

// hopDistances runs a bounded BFS over the undirected adjacency and
// returns each reached wallet's shortest-path distance from start. A
// wallet reachable by multiple paths appears once, at its minimum
// distance, so the hop buckets partition the reached set.
func hopDistances(g *graph.Graph, start string, maxHops int) map[string]int {
	dist := map[string]int{start: 0}
	frontier := []string{start}

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		var next []string
		for _, w := range frontier {
			for _, nb := range g.Neighbors(w) {
				if _, seen := dist[nb]; seen {
					continue
				}
				dist[nb] = hop
				next = append(next, nb)
			}
		}
		frontier = next
	}
	return dist
}

// exposures counts illicit wallets per exact hop bucket.
func exposures(g *graph.Graph, wallet string, cfg Config) []HopExposure {
	dist := hopDistances(g, wallet, cfg.MaxHops)

	out := make([]HopExposure, cfg.MaxHops+1)
	for h := 0; h <= cfg.MaxHops; h++ {
		out[h] = HopExposure{Hop: h, Weight: cfg.HopWeights[h]}
	}
	for w, h := range dist {
		if g.IsIllicit(w) {
			out[h].IllicitCount++
		}
	}
	return out
}

// ScoreWallet computes the exposure score for a single wallet against the
// given snapshot. Returns ErrWalletNotFound if the wallet is not in the
// graph; absence is distinct from a legitimate zero score.
func ScoreWallet(g *graph.Graph, wallet string, cfg Config) (*WalletScore, error) {
	if !g.HasWallet(wallet) {
		return nil, ErrWalletNotFound
	}
	cfg = cfg.normalized()

	exp := exposures(g, wallet, cfg)

	raw := 0.0
	for _, e := range exp {
		raw += e.Weight * float64(e.IllicitCount)
	}

	score := raw
	if cfg.DegreeNormalize {
		deg := g.InDegree(wallet) + g.OutDegree(wallet)
		// Isolated wallets skip normalization; never divide by zero.
		if deg > 0 {
			score = raw / math.Sqrt(float64(deg))
		}
	}

	return &WalletScore{
		Wallet:    wallet,
		Score:     round6(score),
		Exposures: exp,
		InDegree:  g.InDegree(wallet),
		OutDegree: g.OutDegree(wallet),
	}, nil
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}
