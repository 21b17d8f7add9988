package state

import (
	"testing"

	"github.com/example/kigalisim/internal/engine/number"
)

func TestStateGetterPopulationAndVolume(t *testing.T) {
	sim := NewSimulationState()
	scope := NewDefaultScope("App", "Sub")
	sub := sim.EnsureSubstance(scope)
	sub.Streams.Equipment = number.New(1000, "units")
	sub.Streams.Domestic = number.New(100, "kg")
	sub.Streams.Import = number.New(50, "kg")

	g := NewStateGetter(sim, scope)
	if got := g.GetPopulation(); got.Value != 1000 {
		t.Errorf("GetPopulation() = %+v, want value 1000", got)
	}
	if got := g.GetVolume(); got.Value != 150 {
		t.Errorf("GetVolume() = %+v, want value 150", got)
	}
}

func TestStateGetterAmortizedUnitVolumeWeighted(t *testing.T) {
	sim := NewSimulationState()
	scope := NewDefaultScope("App", "Sub")
	sub := sim.EnsureSubstance(scope)
	sub.InitialCharge[StreamDomestic] = number.New(2, "kg")
	sub.InitialCharge[StreamImport] = number.New(4, "kg")
	sub.Distribution = SalesStreamDistribution{PercentDomestic: 0.25, PercentImport: 0.75}

	g := NewStateGetter(sim, scope)
	got := g.GetAmortizedUnitVolume()
	want := 2*0.25 + 4*0.75
	if got.Value != want {
		t.Errorf("GetAmortizedUnitVolume() = %v, want %v", got.Value, want)
	}
}

func TestStateGetterAmortizedUnitVolumeSingleStream(t *testing.T) {
	sim := NewSimulationState()
	scope := NewDefaultScope("App", "Sub")
	sub := sim.EnsureSubstance(scope)
	sub.InitialCharge[StreamDomestic] = number.New(3, "kg")

	g := NewStateGetter(sim, scope)
	if got := g.GetAmortizedUnitVolume(); got.Value != 3 {
		t.Errorf("GetAmortizedUnitVolume() = %+v, want value 3", got)
	}
}

func TestStateGetterAmortizedUnitVolumeNoChargeIsZero(t *testing.T) {
	sim := NewSimulationState()
	scope := NewDefaultScope("App", "Sub")
	g := NewStateGetter(sim, scope)
	if got := g.GetAmortizedUnitVolume(); got.Value != 0 {
		t.Errorf("expected zero charge when none set, got %+v", got)
	}
}

func TestStateGetterAmortizedUnitConsumption(t *testing.T) {
	sim := NewSimulationState()
	scope := NewDefaultScope("App", "Sub")
	sub := sim.EnsureSubstance(scope)
	sub.InitialCharge[StreamDomestic] = number.New(2, "kg")
	sub.GhgIntensity = number.New(10, "kgCO2e/kg")

	g := NewStateGetter(sim, scope)
	got := g.GetAmortizedUnitConsumption()
	if got.Value != 20 {
		t.Errorf("GetAmortizedUnitConsumption() = %+v, want value 20", got)
	}
}

func TestStateGetterLastSpecifiedAndStreamValue(t *testing.T) {
	sim := NewSimulationState()
	scope := NewDefaultScope("App", "Sub")
	sim.MarkStreamAsEnabled(scope, StreamDomestic)
	_ = sim.Update(scope, NewStreamUpdate(StreamDomestic, number.New(77, "kg")))

	g := NewStateGetter(sim, scope)
	if got := g.GetLastSpecifiedValue("domestic"); got.Value != 77 {
		t.Errorf("GetLastSpecifiedValue = %+v, want value 77", got)
	}
	if got := g.GetStreamValue("domestic"); got.Value != 77 {
		t.Errorf("GetStreamValue = %+v, want value 77", got)
	}
}

func TestStateGetterYearsElapsed(t *testing.T) {
	sim := NewSimulationState()
	scope := NewDefaultScope("App", "Sub")
	sim.IncrementYear()
	sim.IncrementYear()

	g := NewStateGetter(sim, scope)
	if got := g.GetYearsElapsed(); got != 2 {
		t.Errorf("GetYearsElapsed() = %d, want 2", got)
	}
}
