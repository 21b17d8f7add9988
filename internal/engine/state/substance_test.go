package state

import (
	"testing"

	"github.com/example/kigalisim/internal/engine/number"
)

func TestStreamsSales(t *testing.T) {
	s := Streams{
		Domestic: number.New(10, "kg"),
		Import:   number.New(20, "kg"),
		Recycle:  number.New(5, "kg"),
	}
	sales := s.Sales()
	if sales.Value != 35 || sales.Units != "kg" {
		t.Errorf("Sales() = %+v, want {35 kg}", sales)
	}
}

func TestStreamsGetSetRoundTrip(t *testing.T) {
	var s Streams
	names := []StreamName{
		StreamDomestic, StreamImport, StreamExport, StreamRecycle,
		StreamRecycleRecharge, StreamRecycleEol, StreamPriorEquipment,
		StreamEquipment, StreamRetired, StreamConsumption, StreamEnergy,
		StreamRechargeEmissions, StreamEolEmissions, StreamExportEmissions,
	}
	for _, name := range names {
		s.Set(name, number.New(42, "kg"))
		if got := s.Get(name); got.Value != 42 {
			t.Errorf("Get(%s) after Set = %+v, want value 42", name, got)
		}
	}
}

func TestStreamNameIsValidAndEnableable(t *testing.T) {
	if !StreamDomestic.IsValid() {
		t.Error("expected StreamDomestic to be valid")
	}
	if StreamName("bogus").IsValid() {
		t.Error("expected bogus stream name to be invalid")
	}
	if !StreamDomestic.Enableable() || !StreamImport.Enableable() || !StreamExport.Enableable() {
		t.Error("expected domestic/import/export to be enableable")
	}
	if StreamEquipment.Enableable() {
		t.Error("expected equipment to not be enableable")
	}
}

func TestNewSubstanceStateDefaults(t *testing.T) {
	sub := NewSubstanceState("App", "Sub")
	if sub.Streams.Domestic.Value != 0 || sub.Streams.Domestic.Units != "kg" {
		t.Errorf("expected zeroed kg domestic stream, got %+v", sub.Streams.Domestic)
	}
	if sub.AssumeMode != AssumeContinued {
		t.Errorf("expected default AssumeContinued, got %v", sub.AssumeMode)
	}
	if sub.Distribution.PercentDomestic != 0.5 || sub.Distribution.PercentImport != 0.5 {
		t.Errorf("expected 50/50 default distribution, got %+v", sub.Distribution)
	}
	if sub.IsStreamEnabled(StreamDomestic) {
		t.Error("expected domestic to start disabled")
	}
	if !sub.IsStreamEnabled(StreamEquipment) {
		t.Error("expected non-enableable streams to report enabled")
	}
}

func TestMarkStreamEnabled(t *testing.T) {
	sub := NewSubstanceState("App", "Sub")
	sub.MarkStreamEnabled(StreamImport)
	if !sub.IsStreamEnabled(StreamImport) {
		t.Error("expected import to report enabled after MarkStreamEnabled")
	}
}

func TestSetLastSpecifiedValueSetsFreshFlagOnSalesFamily(t *testing.T) {
	sub := NewSubstanceState("App", "Sub")
	if sub.SalesIntentFreshlySet {
		t.Fatal("expected SalesIntentFreshlySet to start false")
	}
	sub.SetLastSpecifiedValue(StreamDomestic, number.New(10, "kg"))
	if !sub.SalesIntentFreshlySet {
		t.Error("expected SalesIntentFreshlySet after a domestic write")
	}
	sub.ResetSalesIntentFlag()
	if sub.SalesIntentFreshlySet {
		t.Error("expected ResetSalesIntentFlag to clear the flag")
	}

	sub.SetLastSpecifiedValue(StreamEnergy, number.New(1, "kwh"))
	if sub.SalesIntentFreshlySet {
		t.Error("expected non-sales-family stream write to not set the fresh flag")
	}
}

func TestGetLastSpecifiedValueFallsBackToStream(t *testing.T) {
	sub := NewSubstanceState("App", "Sub")
	sub.Streams.Equipment = number.New(30, "units")

	got := sub.GetLastSpecifiedValue(StreamEquipment)
	if got.Value != 30 {
		t.Errorf("expected fallback to current stream value, got %+v", got)
	}
}

func TestIncrementYearPreservesRetiredAndEquipment(t *testing.T) {
	sub := NewSubstanceState("App", "Sub")
	sub.Streams.Equipment = number.New(100, "units")
	sub.Streams.Retired = number.New(10, "units")
	sub.Streams.Domestic = number.New(500, "kg")

	sub.IncrementYear()

	if sub.Streams.PriorEquipment.Value != 100 {
		t.Errorf("expected priorEquipment = 100, got %v", sub.Streams.PriorEquipment.Value)
	}
	if sub.Streams.Equipment.Value != 100 {
		t.Errorf("expected equipment to carry forward unchanged, got %v", sub.Streams.Equipment.Value)
	}
	if sub.Streams.Retired.Value != 10 {
		t.Errorf("expected retired to carry forward unchanged, got %v", sub.Streams.Retired.Value)
	}
	if sub.Streams.Domestic.Value != 0 {
		t.Errorf("expected domestic flow to reset to 0, got %v", sub.Streams.Domestic.Value)
	}
}
