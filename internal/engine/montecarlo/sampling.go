// Package montecarlo drives repeated scenario runs with resampled DSL
// values, seeded deterministically per (scenario, trial) so results are
// reproducible, and merges the per-trial EngineResult rows for the
// caller.
package montecarlo

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/example/kigalisim/internal/engine/interpreter"
	"github.com/example/kigalisim/internal/engine/lang"
	"github.com/example/kigalisim/internal/engine/number"
)

// SeedFor derives a deterministic per-trial seed from a base seed, a
// scenario name, and a trial index, so any worker can reproduce the same
// resampled values given the same three inputs regardless of scheduling
// order.
func SeedFor(baseSeed int64, scenario string, trial int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%s:%d", baseSeed, scenario, trial)
	return int64(h.Sum64())
}

// NewResolver builds an interpreter.Resolver backed by a *rand.Rand
// seeded with seed. Literal values pass through unchanged; sampling
// nodes are drawn from the normal or uniform distribution they specify,
// then clamped to their optional limit range.
func NewResolver(seed int64) interpreter.Resolver {
	rng := rand.New(rand.NewSource(seed))
	return func(v lang.Value) (number.EngineNumber, error) {
		if !v.IsSampled() {
			return v.Literal, nil
		}
		node := v.Sampling
		var value float64
		switch node.Kind {
		case lang.SamplingNormal:
			value = node.Mean + rng.NormFloat64()*node.StdDev
		case lang.SamplingUniform:
			value = node.Low + rng.Float64()*(node.High-node.Low)
		default:
			value = 0
		}
		if node.HasLimit {
			value = math.Max(node.LimitLow, math.Min(node.LimitHigh, value))
		}
		return number.New(value, node.Units), nil
	}
}
