package graph

// Illicit seed selection is a pure function of (seed, sorted wallet set,
// pct). The generator and shuffle are pinned here rather than delegated to
// math/rand so that the same inputs select the same wallets on every
// platform and release: splitmix64 drives a Fisher-Yates shuffle over the
// ascending wallet list, and the first k = max(1, floor(pct*n)) entries of
// the permutation form the seed set.

type splitmix64 struct {
	state uint64
}

func (r *splitmix64) next() uint64 {
	r.state += 0x9e3779b97f4a7c15
	z := r.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// intn returns a uniform value in [0, n) using rejection sampling to avoid
// modulo bias.
func (r *splitmix64) intn(n int) int {
	bound := uint64(n)
	threshold := -bound % bound
	for {
		v := r.next()
		if v >= threshold {
			return int(v % bound)
		}
	}
}

func selectIllicit(sortedWallets []string, p SeedParams) []string {
	n := len(sortedWallets)
	if n == 0 || p.Pct <= 0 {
		return nil
	}

	k := int(p.Pct * float64(n))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}

	perm := make([]string, n)
	copy(perm, sortedWallets)

	rng := &splitmix64{state: uint64(p.Seed)}
	for i := n - 1; i > 0; i-- {
		j := rng.intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}

	return perm[:k]
}
