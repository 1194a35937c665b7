// Package rng derives reproducible, independent random substreams from a
// single root seed. Substream assignment is a pure function of (seed, index),
// so the values a repetition draws never depend on which worker runs it or on
// completion order.
package rng

import "math/rand/v2"

// splitmix64 is the SplitMix64 output function over a 64-bit counter state.
// It is the standard seed-expansion step for PCG-family generators.
func splitmix64(state *uint64) uint64 {
	*state += 0x9E3779B97F4A7C15
	z := *state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Substream returns the generator for substream idx of the given root seed.
// Distinct indices yield statistically independent PCG states.
func Substream(seed, idx uint64) *rand.Rand {
	// Counter-based derivation: advance a SplitMix64 chain whose start
	// depends on both the seed and the substream index.
	state := seed ^ (idx * 0xD1B54A32D192ED03)
	hi := splitmix64(&state)
	lo := splitmix64(&state)
	return rand.New(rand.NewPCG(hi, lo))
}

// Streams derives one substream per task, all assigned up front.
func Streams(seed uint64, n int) []*rand.Rand {
	out := make([]*rand.Rand, n)
	for i := range out {
		out[i] = Substream(seed, uint64(i))
	}
	return out
}
