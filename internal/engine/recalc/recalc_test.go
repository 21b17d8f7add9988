package recalc

import (
	"errors"
	"testing"

	"github.com/example/kigalisim/internal/engine/engineerr"
	"github.com/example/kigalisim/internal/engine/number"
	"github.com/example/kigalisim/internal/engine/state"
)

func setupSubstance(t *testing.T) (*state.SimulationState, state.Scope) {
	t.Helper()
	sim := state.NewSimulationState()
	scope := state.NewDefaultScope("Domestic Refrigeration", "HFC-134a")
	sim.MarkStreamAsEnabled(scope, state.StreamDomestic)
	sim.SetInitialCharge(scope, state.StreamDomestic, number.New(2, "kg"))
	sim.SetGhgIntensity(scope, number.New(1430, "kgCO2e/kg"))
	return sim, scope
}

func TestRunDerivesEquipmentFromSales(t *testing.T) {
	sim, scope := setupSubstance(t)
	if err := sim.Update(scope, state.NewStreamUpdate(state.StreamDomestic, number.New(1000, "kg"))); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	r := New()
	if err := r.Run(sim, scope); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	sub, _ := sim.Substance(scope)
	if sub.Streams.Equipment.Value != 500 {
		t.Errorf("expected 1000kg / 2kg-per-unit = 500 units, got %v", sub.Streams.Equipment.Value)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	sim, scope := setupSubstance(t)
	_ = sim.Update(scope, state.NewStreamUpdate(state.StreamDomestic, number.New(1000, "kg")))

	r := New()
	if err := r.Run(sim, scope); err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}
	sub, _ := sim.Substance(scope)
	first := sub.Streams.Equipment.Value

	if err := r.Run(sim, scope); err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if sub.Streams.Equipment.Value != first {
		t.Errorf("expected idempotent Run, got %v then %v", first, sub.Streams.Equipment.Value)
	}
}

func TestRunRetirementAssumeContinuedBasesOnPostNewUnitsPopulation(t *testing.T) {
	sim, scope := setupSubstance(t)
	sub, _ := sim.Substance(scope)
	sub.Streams.PriorEquipment = number.New(1000, "units")
	sub.Retirement = state.RetirementPolicy{PercentPerYear: 10}
	sub.AssumeMode = state.AssumeContinued

	_ = sim.Update(scope, state.NewStreamUpdate(state.StreamDomestic, number.New(200, "kg"))) // 100 new units

	r := New()
	if err := r.Run(sim, scope); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// base = 1000 + 100 = 1100; retiredDelta = 110
	if sub.Streams.Retired.Value != 110 {
		t.Errorf("expected retiredDelta 110, got %v", sub.Streams.Retired.Value)
	}
	// equipment = prior(1000) - retiredDelta(110) + newUnits(100) = 990
	if sub.Streams.Equipment.Value != 990 {
		t.Errorf("expected equipment 990, got %v", sub.Streams.Equipment.Value)
	}
}

func TestRunRetirementWithReplacementKeepsEquipmentFlat(t *testing.T) {
	sim, scope := setupSubstance(t)
	sub, _ := sim.Substance(scope)
	sub.Streams.PriorEquipment = number.New(1000, "units")
	sub.Retirement = state.RetirementPolicy{PercentPerYear: 10, WithReplacement: true}

	_ = sim.Update(scope, state.NewStreamUpdate(state.StreamDomestic, number.New(200, "kg"))) // 100 new units

	r := New()
	if err := r.Run(sim, scope); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// equipment = prior + newUnits, retirement does not reduce population
	if sub.Streams.Equipment.Value != 1100 {
		t.Errorf("expected equipment 1100 under withReplacement, got %v", sub.Streams.Equipment.Value)
	}
	if sub.Streams.Retired.Value <= 0 {
		t.Error("expected cumulative retired to still accumulate under withReplacement")
	}
	if sub.Streams.EolEmissions.Value != 0 {
		t.Errorf("expected eolEmissions suppressed under withReplacement, got %v", sub.Streams.EolEmissions.Value)
	}
}

func TestRunRecyclingSplitsTowardRechargeFirst(t *testing.T) {
	sim, scope := setupSubstance(t)
	sub, _ := sim.Substance(scope)
	sub.Streams.PriorEquipment = number.New(1000, "units")
	sub.Recharge = state.RechargeSchedule{PercentPerYear: 10, KgPerUnit: 1}
	sub.Streams.Recycle = number.New(50, "kg")

	r := New()
	if err := r.Run(sim, scope); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// rechargeNeed = 1000 * 10% * 1kg = 100kg; recycle credit 50kg all goes to recharge
	if sub.Streams.RecycleRecharge.Value != 50 {
		t.Errorf("expected all 50kg recycle credit routed to recharge, got %v", sub.Streams.RecycleRecharge.Value)
	}
	if sub.Streams.RecycleEol.Value != 0 {
		t.Errorf("expected no recycle credit left for eol, got %v", sub.Streams.RecycleEol.Value)
	}
}

func TestRunRecyclingOverflowsToEol(t *testing.T) {
	sim, scope := setupSubstance(t)
	sub, _ := sim.Substance(scope)
	sub.Streams.PriorEquipment = number.New(100, "units")
	sub.Recharge = state.RechargeSchedule{PercentPerYear: 10, KgPerUnit: 1}
	sub.Streams.Recycle = number.New(50, "kg")

	r := New()
	if err := r.Run(sim, scope); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// rechargeNeed = 100 * 10% * 1kg = 10kg; remaining 40kg falls to eol
	if sub.Streams.RecycleRecharge.Value != 10 {
		t.Errorf("expected rechargeNeed 10kg consumed, got %v", sub.Streams.RecycleRecharge.Value)
	}
	if sub.Streams.RecycleEol.Value != 40 {
		t.Errorf("expected remaining 40kg routed to eol, got %v", sub.Streams.RecycleEol.Value)
	}
}

func TestRunExportEmissions(t *testing.T) {
	sim, scope := setupSubstance(t)
	sim.MarkStreamAsEnabled(scope, state.StreamExport)
	_ = sim.Update(scope, state.NewStreamUpdate(state.StreamExport, number.New(10, "kg")))

	r := New()
	if err := r.Run(sim, scope); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	sub, _ := sim.Substance(scope)
	want := number.KgCO2eToTCO2e(10 * 1430)
	if sub.Streams.ExportEmissions.Value != want {
		t.Errorf("ExportEmissions = %v, want %v", sub.Streams.ExportEmissions.Value, want)
	}
}

func TestRunEnergyFromKwhPerUnit(t *testing.T) {
	sim, scope := setupSubstance(t)
	sub, _ := sim.Substance(scope)
	sub.EnergyIntensity = number.New(5, "kwh/unit")
	_ = sim.Update(scope, state.NewStreamUpdate(state.StreamDomestic, number.New(200, "kg"))) // 100 units

	r := New()
	if err := r.Run(sim, scope); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if sub.Streams.Energy.Value != 500 {
		t.Errorf("expected 100 units * 5 kwh/unit = 500 kwh, got %v", sub.Streams.Energy.Value)
	}
}

func TestRunEnergyFromKwhPerKg(t *testing.T) {
	sim, scope := setupSubstance(t)
	sub, _ := sim.Substance(scope)
	sub.EnergyIntensity = number.New(2, "kwh/kg")
	_ = sim.Update(scope, state.NewStreamUpdate(state.StreamDomestic, number.New(200, "kg")))

	r := New()
	if err := r.Run(sim, scope); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if sub.Streams.Energy.Value != 400 {
		t.Errorf("expected 200kg * 2 kwh/kg = 400 kwh, got %v", sub.Streams.Energy.Value)
	}
}

func TestRunInvariantViolationOnUnknownSubstance(t *testing.T) {
	sim := state.NewSimulationState()
	r := New()
	err := r.Run(sim, state.NewDefaultScope("Nope", "Nope"))
	if !errors.Is(err, engineerr.ErrUnknownSubstance) {
		t.Fatalf("expected ErrUnknownSubstance, got %v", err)
	}
}

func TestRunSalesIdentityHoldsAfterRecalc(t *testing.T) {
	sim, scope := setupSubstance(t)
	sim.MarkStreamAsEnabled(scope, state.StreamImport)
	_ = sim.Update(scope, state.NewStreamUpdate(state.StreamDomestic, number.New(100, "kg")))
	_ = sim.Update(scope, state.NewStreamUpdate(state.StreamImport, number.New(50, "kg")))

	r := New()
	if err := r.Run(sim, scope); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	sub, _ := sim.Substance(scope)
	sales := sub.Streams.Sales()
	want := sub.Streams.Domestic.Value + sub.Streams.Import.Value + sub.Streams.Recycle.Value
	if sales.Value != want {
		t.Errorf("sales identity violated: sales=%v, want %v", sales.Value, want)
	}
}
