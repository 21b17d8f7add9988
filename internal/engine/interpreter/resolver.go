// Package interpreter evaluates parsed DSL commands against a scope,
// calling the state-model mutators and the recalculator. It implements
// conditional gating on year matchers and resolves sampled (Monte Carlo)
// values through a pluggable Resolver.
package interpreter

import (
	"errors"

	"github.com/example/kigalisim/internal/engine/lang"
	"github.com/example/kigalisim/internal/engine/number"
)

// Resolver turns a lang.Value into a concrete EngineNumber. For literal
// values this is a pass-through; for sampled values (normally/uniformly)
// it draws from the bound random source. The scenario runner uses a
// literal-only resolver for deterministic single-run execution; the
// Monte Carlo driver supplies a seeded resolver per trial.
type Resolver func(lang.Value) (number.EngineNumber, error)

// LiteralResolver returns a Resolver that rejects sampled values,
// suitable for scenario runs with trials=1 where no sampling node should
// appear, and for validation passes that never execute a trial.
func LiteralResolver() Resolver {
	return func(v lang.Value) (number.EngineNumber, error) {
		if v.IsSampled() {
			return number.EngineNumber{}, errors.New("interpreter: sampled value encountered by the literal-only resolver")
		}
		return v.Literal, nil
	}
}
