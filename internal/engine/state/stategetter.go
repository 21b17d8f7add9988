package state

import "github.com/example/kigalisim/internal/engine/number"

// scopedStateGetter adapts a (SimulationState, Scope) pair to the
// number.StateGetter interface so the unit converter can resolve
// context-dependent conversions (percentage bases, kg<->units) against
// whichever substance is currently in scope.
type scopedStateGetter struct {
	sim   *SimulationState
	scope Scope
}

// NewStateGetter builds a number.StateGetter bound to scope's substance
// within sim. The interpreter constructs one per command application; it
// is cheap, holding only two pointers/values.
func NewStateGetter(sim *SimulationState, scope Scope) number.StateGetter {
	return &scopedStateGetter{sim: sim, scope: scope}
}

func (g *scopedStateGetter) substance() *SubstanceState {
	return g.sim.EnsureSubstance(g.scope)
}

func (g *scopedStateGetter) GetPopulation() number.EngineNumber {
	return g.substance().Streams.Equipment
}

func (g *scopedStateGetter) GetVolume() number.EngineNumber {
	return g.substance().Streams.Sales()
}

// GetAmortizedUnitVolume returns the weighted-average kg/unit initial
// charge across the enabled domestic/import streams, weighted by the
// substance's current sales distribution.
func (g *scopedStateGetter) GetAmortizedUnitVolume() number.EngineNumber {
	sub := g.substance()
	domestic, hasDomestic := sub.InitialCharge[StreamDomestic]
	imp, hasImport := sub.InitialCharge[StreamImport]

	switch {
	case hasDomestic && hasImport:
		weighted := domestic.Value*sub.Distribution.PercentDomestic + imp.Value*sub.Distribution.PercentImport
		return number.New(weighted, "kg/unit")
	case hasDomestic:
		return domestic
	case hasImport:
		return imp
	default:
		return number.New(0, "kg/unit")
	}
}

func (g *scopedStateGetter) GetSubstanceConsumption() number.EngineNumber {
	return g.substance().GhgIntensity
}

func (g *scopedStateGetter) GetEnergyIntensity() number.EngineNumber {
	return g.substance().EnergyIntensity
}

func (g *scopedStateGetter) GetYearsElapsed() int {
	return g.sim.Year
}

func (g *scopedStateGetter) GetGhgConsumption() number.EngineNumber {
	return g.substance().Streams.Consumption
}

func (g *scopedStateGetter) GetEnergyConsumption() number.EngineNumber {
	return g.substance().Streams.Energy
}

func (g *scopedStateGetter) GetAmortizedUnitConsumption() number.EngineNumber {
	charge := g.GetAmortizedUnitVolume()
	ghg := g.substance().GhgIntensity
	return number.New(charge.Value*ghg.Value, "kgCO2e/unit")
}

func (g *scopedStateGetter) GetLastSpecifiedValue(stream string) number.EngineNumber {
	return g.substance().GetLastSpecifiedValue(StreamName(stream))
}

func (g *scopedStateGetter) GetStreamValue(stream string) number.EngineNumber {
	return g.substance().Streams.Get(StreamName(stream))
}
