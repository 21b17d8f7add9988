// Package recalc implements the consistency engine that re-derives
// dependent streams (equipment, retirement, recycling, emissions, energy)
// whenever a primary stream changes. Recalculation is a bounded
// fixed-point over a small, statically known dependency graph, resolved
// by a fixed topological order rather than iterative relaxation, per the
// design notes on the graph of mutual dependence.
package recalc

import (
	"github.com/example/kigalisim/internal/engine/engineerr"
	"github.com/example/kigalisim/internal/engine/number"
	"github.com/example/kigalisim/internal/engine/state"
)

// Recalculator re-derives every dependent stream for a substance after a
// primary stream write. It holds no state of its own; a single value is
// safe to reuse across scopes and years within one run.
type Recalculator struct{}

// New constructs a Recalculator.
func New() *Recalculator { return &Recalculator{} }

// Run re-derives equipment, retirement, recycling, recharge/eol/export
// emissions, consumption, and energy for scope's substance, in the fixed
// order from component design section 4.3. It is idempotent: calling it
// twice with no intervening mutation leaves state unchanged (property P4).
func (r *Recalculator) Run(sim *state.SimulationState, scope state.Scope) error {
	sub, err := sim.Substance(scope)
	if err != nil {
		return err
	}

	newUnitsFromSales := r.newUnitsFromSales(sub)
	retiredDelta := r.retiredDelta(sub)

	equipment := sub.Streams.PriorEquipment.Value - retiredDelta + newUnitsFromSales
	if equipment < 0 {
		equipment = 0
	}
	if sub.Retirement.WithReplacement {
		// Replaced units stay in the population: retirement does not
		// reduce equipment this year, only the cumulative retired count
		// advances.
		equipment = sub.Streams.PriorEquipment.Value + newUnitsFromSales
	}
	sub.Streams.Equipment = number.New(equipment, "units")

	sub.Streams.Retired = number.New(sub.Streams.Retired.Value+retiredDelta, "units")

	r.recalcRecycling(sub)
	r.recalcRechargeEmissions(sub)
	r.recalcEolEmissions(sub, retiredDelta)
	r.recalcExportEmissions(sub)
	r.recalcConsumption(sub)
	r.recalcEnergy(sub)

	if err := r.checkInvariants(sim, scope, sub); err != nil {
		return err
	}

	return nil
}

// newUnitsFromSales implements (domestic + import)_y / initialCharge,
// averaged over enabled streams weighted by distribution (invariant I4).
func (r *Recalculator) newUnitsFromSales(sub *state.SubstanceState) float64 {
	charge := weightedInitialCharge(sub)
	if charge <= 0 {
		return 0
	}
	manufacturedKg := sub.Streams.Domestic.Value + sub.Streams.Import.Value
	return manufacturedKg / charge
}

func weightedInitialCharge(sub *state.SubstanceState) float64 {
	domestic, hasDomestic := sub.InitialCharge[state.StreamDomestic]
	imp, hasImport := sub.InitialCharge[state.StreamImport]

	switch {
	case hasDomestic && hasImport:
		return domestic.Value*sub.Distribution.PercentDomestic + imp.Value*sub.Distribution.PercentImport
	case hasDomestic:
		return domestic.Value
	case hasImport:
		return imp.Value
	default:
		return 0
	}
}

// retiredDelta computes this year's newly retired units from the
// retirement rate applied to priorEquipment, per the base the
// retirement policy's assume mode implies.
func (r *Recalculator) retiredDelta(sub *state.SubstanceState) float64 {
	if sub.Retirement.PercentPerYear == 0 {
		return 0
	}
	base := sub.Streams.PriorEquipment.Value
	if sub.AssumeMode == state.AssumeContinued {
		// Continued mode bases retirement on the population as it stands
		// after this year's new units, matching end-of-year retirement
		// timing used by the source tutorials for "continued" assumption.
		base = sub.Streams.PriorEquipment.Value + r.newUnitsFromSales(sub)
	}
	return base * (sub.Retirement.PercentPerYear / 100)
}

// recalcRecycling derives recycleRecharge and recycleEol from the total
// recycle credit, split toward recharge need first and end-of-life second.
func (r *Recalculator) recalcRecycling(sub *state.SubstanceState) {
	total := sub.Streams.Recycle.Value
	rechargeNeedKg := sub.Streams.Equipment.Value * (sub.Recharge.PercentPerYear / 100) * sub.Recharge.KgPerUnit

	toRecharge := total
	if toRecharge > rechargeNeedKg {
		toRecharge = rechargeNeedKg
	}
	toEol := total - toRecharge

	sub.Streams.RecycleRecharge = number.New(toRecharge, "kg")
	sub.Streams.RecycleEol = number.New(toEol, "kg")
}

// recalcRechargeEmissions implements rechargeEmissions = rechargePopulation
// x rechargeKgPerUnit x GWP x leakFraction, with leak fraction treated as
// full loss on recharge unless recycled material offsets it (the
// recycleRecharge credit reduces the virgin mass that leaks).
func (r *Recalculator) recalcRechargeEmissions(sub *state.SubstanceState) {
	rechargePopulation := sub.Streams.Equipment.Value * (sub.Recharge.PercentPerYear / 100)
	virginKg := rechargePopulation*sub.Recharge.KgPerUnit - sub.Streams.RecycleRecharge.Value
	if virginKg < 0 {
		virginKg = 0
	}
	tco2e := number.KgCO2eToTCO2e(virginKg * sub.GhgIntensity.Value)
	sub.Streams.RechargeEmissions = number.New(tco2e, "tCO2e")
}

// recalcEolEmissions implements eolEmissions = retiredUnits x kgPerUnit x
// GWP for the non-replaced retired share: withReplacement retirement does
// not vent the full charge because the unit re-enters service.
func (r *Recalculator) recalcEolEmissions(sub *state.SubstanceState, retiredDelta float64) {
	if sub.Retirement.WithReplacement {
		sub.Streams.EolEmissions = number.New(0, "tCO2e")
		return
	}
	charge := weightedInitialCharge(sub)
	ventedKg := retiredDelta*charge - sub.Streams.RecycleEol.Value
	if ventedKg < 0 {
		ventedKg = 0
	}
	tco2e := number.KgCO2eToTCO2e(ventedKg * sub.GhgIntensity.Value)
	sub.Streams.EolEmissions = number.New(tco2e, "tCO2e")
}

// recalcExportEmissions treats exported volume the same as virgin
// manufacture for GWP purposes: it is assumed vented at export.
func (r *Recalculator) recalcExportEmissions(sub *state.SubstanceState) {
	tco2e := number.KgCO2eToTCO2e(sub.Streams.Export.Value * sub.GhgIntensity.Value)
	sub.Streams.ExportEmissions = number.New(tco2e, "tCO2e")
}

// recalcConsumption sets the substance's GHG consumption for the year to
// the virgin manufacture emissions of domestic plus import volume. The
// recharge, end-of-life and export emissions stay in their own streams and
// are not added into this total.
func (r *Recalculator) recalcConsumption(sub *state.SubstanceState) {
	manufactureKg := sub.Streams.Domestic.Value + sub.Streams.Import.Value
	manufactureTco2e := number.KgCO2eToTCO2e(manufactureKg * sub.GhgIntensity.Value)

	total := manufactureTco2e
	sub.Streams.Consumption = number.New(total, "tCO2e")
}

// recalcEnergy derives energy consumption from the equipment population
// or mass throughput, depending on which intensity unit was configured.
func (r *Recalculator) recalcEnergy(sub *state.SubstanceState) {
	unit := number.NormalizeRateUnit(sub.EnergyIntensity.Units)
	switch unit {
	case "kwh/unit":
		sub.Streams.Energy = number.New(sub.Streams.Equipment.Value*sub.EnergyIntensity.Value, "kwh")
	case "kwh/kg":
		massKg := sub.Streams.Domestic.Value + sub.Streams.Import.Value
		sub.Streams.Energy = number.New(massKg*sub.EnergyIntensity.Value, "kwh")
	default:
		sub.Streams.Energy = number.New(sub.Streams.Equipment.Value*sub.EnergyIntensity.Value, "kwh")
	}
}

// checkInvariants verifies I1 (non-negativity) and I2 (sales identity)
// after recalculation, raising a typed InvariantError with scope and year
// context on the first violation found.
func (r *Recalculator) checkInvariants(sim *state.SimulationState, scope state.Scope, sub *state.SubstanceState) error {
	streams := map[state.StreamName]number.EngineNumber{
		state.StreamDomestic:        sub.Streams.Domestic,
		state.StreamImport:          sub.Streams.Import,
		state.StreamExport:          sub.Streams.Export,
		state.StreamRecycle:         sub.Streams.Recycle,
		state.StreamEquipment:       sub.Streams.Equipment,
		state.StreamRetired:         sub.Streams.Retired,
		state.StreamPriorEquipment:  sub.Streams.PriorEquipment,
	}
	for name, v := range streams {
		if v.Value < -1e-9 {
			return &engineerr.InvariantError{
				Invariant:   "I1",
				Application: scope.Application,
				Substance:   scope.Substance,
				Year:        sim.Year,
				Stream:      string(name),
				Detail:      "stream value is negative",
			}
		}
	}

	sales := sub.Streams.Sales()
	expected := sub.Streams.Domestic.Value + sub.Streams.Import.Value + sub.Streams.Recycle.Value
	if absDiff(sales.Value, expected) > 1e-6 {
		return &engineerr.InvariantError{
			Invariant:   "I2",
			Application: scope.Application,
			Substance:   scope.Substance,
			Year:        sim.Year,
			Stream:      string(state.StreamSales),
			Detail:      "sales != domestic + import + recycle",
		}
	}

	return nil
}

func absDiff(a, b float64) float64 {
	d := a - b
	if d < 0 {
		return -d
	}
	return d
}
