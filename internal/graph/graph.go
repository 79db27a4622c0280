// Package graph materializes the directed weighted transaction graph and
// the deterministic illicit seed set used by exposure scoring.
//
// A Graph is immutable once built. Rebuilds construct a complete new
// instance and publish it through a Holder, so readers always observe one
// stable snapshot end-to-end.
package graph

import (
	"sort"

	"github.com/mbd888/walletrisk/internal/tx"
)

// Edge aggregates all transactions sharing an ordered (from, to) pair.
type Edge struct {
	From        string  `json:"from"`
	To          string  `json:"to"`
	TxCount     int64   `json:"tx_count"`
	TotalAmount float64 `json:"total_amount"`
}

type node struct {
	inDegree  int
	outDegree int
	neighbors []string // undirected adjacency, deduplicated
	illicit   bool
}

// Graph is an immutable snapshot of the transaction network.
type Graph struct {
	nodes   map[string]*node
	edges   map[string]*Edge // key: from + "\x00" + to
	wallets []string         // sorted ascending
	illicit int
}

func edgeKey(from, to string) string {
	return from + "\x00" + to
}

// SeedParams controls illicit seed selection.
type SeedParams struct {
	Seed int64
	Pct  float64
}

// Build constructs a graph from the full transaction set and marks the
// illicit seed set. It never mutates an existing graph.
func Build(txs []tx.Transaction, seed SeedParams) *Graph {
	g := &Graph{
		nodes: make(map[string]*node),
		edges: make(map[string]*Edge),
	}

	neighborSets := make(map[string]map[string]struct{})

	for _, t := range txs {
		from, to := t.Sender, t.Receiver

		e, ok := g.edges[edgeKey(from, to)]
		if !ok {
			e = &Edge{From: from, To: to}
			g.edges[edgeKey(from, to)] = e
			g.getOrCreate(from).outDegree++
			g.getOrCreate(to).inDegree++
		}
		e.TxCount++
		e.TotalAmount += t.Amount

		if _, ok := neighborSets[from]; !ok {
			neighborSets[from] = make(map[string]struct{})
		}
		if _, ok := neighborSets[to]; !ok {
			neighborSets[to] = make(map[string]struct{})
		}
		neighborSets[from][to] = struct{}{}
		neighborSets[to][from] = struct{}{}
	}

	g.wallets = make([]string, 0, len(g.nodes))
	for w := range g.nodes {
		g.wallets = append(g.wallets, w)
	}
	sort.Strings(g.wallets)

	for w, set := range neighborSets {
		n := g.nodes[w]
		n.neighbors = make([]string, 0, len(set))
		for nb := range set {
			n.neighbors = append(n.neighbors, nb)
		}
		sort.Strings(n.neighbors)
	}

	for _, w := range selectIllicit(g.wallets, seed) {
		g.nodes[w].illicit = true
		g.illicit++
	}

	return g
}

func (g *Graph) getOrCreate(w string) *node {
	n, ok := g.nodes[w]
	if !ok {
		n = &node{}
		g.nodes[w] = n
	}
	return n
}

// NodeCount returns the number of wallets.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of aggregated directed edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// IllicitCount returns the size of the illicit seed set.
func (g *Graph) IllicitCount() int { return g.illicit }

// Wallets returns all wallets in ascending address order. Callers must
// not mutate the returned slice.
func (g *Graph) Wallets() []string { return g.wallets }

// HasWallet reports whether the wallet appears in the graph.
func (g *Graph) HasWallet(w string) bool {
	_, ok := g.nodes[w]
	return ok
}

// Neighbors returns the undirected adjacency of a wallet in ascending
// order. Callers must not mutate the returned slice.
func (g *Graph) Neighbors(w string) []string {
	if n, ok := g.nodes[w]; ok {
		return n.neighbors
	}
	return nil
}

// InDegree returns the number of distinct wallets sending to w.
func (g *Graph) InDegree(w string) int {
	if n, ok := g.nodes[w]; ok {
		return n.inDegree
	}
	return 0
}

// OutDegree returns the number of distinct wallets w sends to.
func (g *Graph) OutDegree(w string) int {
	if n, ok := g.nodes[w]; ok {
		return n.outDegree
	}
	return 0
}

// IsIllicit reports seed-set membership.
func (g *Graph) IsIllicit(w string) bool {
	if n, ok := g.nodes[w]; ok {
		return n.illicit
	}
	return false
}

// Edge returns the aggregated edge for an ordered pair, or nil.
func (g *Graph) Edge(from, to string) *Edge {
	if e, ok := g.edges[edgeKey(from, to)]; ok {
		cp := *e
		return &cp
	}
	return nil
}
