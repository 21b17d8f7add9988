package state

import (
	"sort"

	"github.com/example/kigalisim/internal/engine/engineerr"
	"github.com/example/kigalisim/internal/engine/number"
)

// SimulationState owns every SubstanceState referenced during one
// scenario run. It is reset at the start of each run (fresh instance per
// run, per the concurrency model in section 5) and is never shared across
// concurrent scenarios.
type SimulationState struct {
	Year       int
	substances map[SubstanceKey]*SubstanceState
	order      []SubstanceKey // insertion order, for deterministic iteration
}

// NewSimulationState constructs an empty registry for a fresh run.
func NewSimulationState() *SimulationState {
	return &SimulationState{
		substances: make(map[SubstanceKey]*SubstanceState),
	}
}

// EnsureSubstance returns the SubstanceState for scope's (application,
// substance), creating and registering it on first reference.
func (s *SimulationState) EnsureSubstance(scope Scope) *SubstanceState {
	key := scope.Key()
	if existing, ok := s.substances[key]; ok {
		return existing
	}
	fresh := NewSubstanceState(scope.Application, scope.Substance)
	s.substances[key] = fresh
	s.order = append(s.order, key)
	return fresh
}

// HasSubstance reports whether scope's substance has been referenced yet.
func (s *SimulationState) HasSubstance(scope Scope) bool {
	_, ok := s.substances[scope.Key()]
	return ok
}

// Substance returns the SubstanceState for scope, or an
// *engineerr.UnknownEntityError if it has never been referenced.
func (s *SimulationState) Substance(scope Scope) (*SubstanceState, error) {
	sub, ok := s.substances[scope.Key()]
	if !ok {
		return nil, engineerr.NewUnknownSubstance(scope.Substance)
	}
	return sub, nil
}

// GetRegisteredSubstances returns every (application, substance) key
// registered so far, in first-reference order.
func (s *SimulationState) GetRegisteredSubstances() []SubstanceKey {
	out := make([]SubstanceKey, len(s.order))
	copy(out, s.order)
	return out
}

// GetStream returns the current value of a named stream for scope's
// substance.
func (s *SimulationState) GetStream(scope Scope, name StreamName) (number.EngineNumber, error) {
	sub, err := s.Substance(scope)
	if err != nil {
		return number.EngineNumber{}, err
	}
	if !name.IsValid() {
		return number.EngineNumber{}, engineerr.NewUnknownStream(string(name))
	}
	return sub.Streams.Get(name), nil
}

// Update applies a StreamUpdate against scope (or update.Scope, if set).
// It validates invariant I5 (enable-before-write, nonzero initial charge
// for units-valued amounts), performs sales redistribution, deducts
// recycling credit when requested, and records LastSpecifiedValue
// (skipping percentage writes per I6). It does not itself invoke the
// recalculator, keeping this package free of a dependency on
// internal/engine/recalc; the command interpreter runs the recalculator
// after its writes and does not consult PropagateChanges.
func (s *SimulationState) Update(scope Scope, upd StreamUpdate) error {
	target := scope
	if upd.Scope != nil {
		target = *upd.Scope
	}
	sub := s.EnsureSubstance(target)

	if !upd.Value.IsZero() && upd.Name.Enableable() && !sub.IsStreamEnabled(upd.Name) {
		return &engineerr.StreamNotEnabledError{
			Application: target.Application,
			Substance:   target.Substance,
			Stream:      string(upd.Name),
		}
	}

	if upd.Name == StreamSales {
		return s.updateSales(sub, upd)
	}

	value := upd.Value
	if value.HasEquipmentUnits() && (upd.Name == StreamDomestic || upd.Name == StreamImport) {
		charge, ok := sub.InitialCharge[upd.Name]
		if !ok || charge.Value == 0 {
			return engineerr.ErrZeroInitialCharge
		}
		kg := value.Value * number.MassToKg(number.New(charge.Value, charge.Units))
		if upd.SubtractRecycling {
			kg -= sub.Streams.Recycle.Value
			if kg < 0 {
				kg = 0
			}
		}
		value = number.New(kg, "kg")
	}

	sub.Streams.Set(upd.Name, value)

	isPercent := upd.Value.Units == "%" || upd.Value.Units == "percent"
	if !isPercent && !upd.SkipLastSpecified {
		recordUnits := upd.UnitsToRecord
		recorded := value
		if recordUnits != "" {
			recorded = number.New(value.Value, recordUnits)
		}
		sub.SetLastSpecifiedValue(upd.Name, recorded)
	}

	return nil
}

// updateSales redistributes a write to the derived "sales" stream into
// domestic and import according to the substance's current distribution
// (or upd.Distribution, if the caller supplied an override), requiring
// both streams enabled or routing entirely into the sole enabled one.
func (s *SimulationState) updateSales(sub *SubstanceState, upd StreamUpdate) error {
	dist := sub.Distribution
	if upd.Distribution != nil {
		dist = *upd.Distribution
	}

	domesticEnabled := sub.IsStreamEnabled(StreamDomestic)
	importEnabled := sub.IsStreamEnabled(StreamImport)

	kg := number.MassToKg(upd.Value)
	if !upd.Value.HasMassUnits() {
		kg = upd.Value.Value
	}

	var domesticKg, importKg float64
	switch {
	case domesticEnabled && importEnabled:
		domesticKg = kg * dist.PercentDomestic
		importKg = kg * dist.PercentImport
	case domesticEnabled:
		domesticKg = kg
	case importEnabled:
		importKg = kg
	default:
		if kg == 0 {
			return nil
		}
		return &engineerr.StreamNotEnabledError{
			Application: sub.Application,
			Substance:   sub.Substance,
			Stream:      string(StreamSales),
		}
	}

	sub.Streams.Domestic = number.New(domesticKg, "kg")
	sub.Streams.Import = number.New(importKg, "kg")

	isPercent := upd.Value.Units == "%" || upd.Value.Units == "percent"
	if !isPercent {
		sub.SetLastSpecifiedValue(StreamDomestic, sub.Streams.Domestic)
		sub.SetLastSpecifiedValue(StreamImport, sub.Streams.Import)
		sub.SetLastSpecifiedValue(StreamSales, number.New(kg, "kg"))
	}

	return nil
}

// SetInitialCharge sets the kg/unit charge for a stream (domestic or
// import) on scope's substance.
func (s *SimulationState) SetInitialCharge(scope Scope, stream StreamName, charge number.EngineNumber) {
	sub := s.EnsureSubstance(scope)
	sub.InitialCharge[stream] = charge
}

// SetGhgIntensity sets the GHG intensity (kgCO2e/kg) on scope's substance.
func (s *SimulationState) SetGhgIntensity(scope Scope, v number.EngineNumber) {
	s.EnsureSubstance(scope).GhgIntensity = v
}

// SetEnergyIntensity sets the energy intensity (kwh/unit or kwh/kg) on
// scope's substance.
func (s *SimulationState) SetEnergyIntensity(scope Scope, v number.EngineNumber) {
	s.EnsureSubstance(scope).EnergyIntensity = v
}

// MarkStreamAsEnabled enables stream on scope's substance.
func (s *SimulationState) MarkStreamAsEnabled(scope Scope, stream StreamName) {
	s.EnsureSubstance(scope).MarkStreamEnabled(stream)
}

// SetLastSpecifiedValue records an explicit intent value directly,
// bypassing Update -- used by the interpreter when seeding priorEquipment
// and other state that is not itself a stream write.
func (s *SimulationState) SetLastSpecifiedValue(scope Scope, stream StreamName, v number.EngineNumber) {
	s.EnsureSubstance(scope).SetLastSpecifiedValue(stream, v)
}

// GetLastSpecifiedValue returns scope's substance's last explicit value
// for stream.
func (s *SimulationState) GetLastSpecifiedValue(scope Scope, stream StreamName) number.EngineNumber {
	return s.EnsureSubstance(scope).GetLastSpecifiedValue(stream)
}

// IsSalesIntentFreshlySet reports whether scope's substance had a fresh
// non-percent sales-family write this year.
func (s *SimulationState) IsSalesIntentFreshlySet(scope Scope) bool {
	return s.EnsureSubstance(scope).SalesIntentFreshlySet
}

// ResetSalesIntentFlag clears the freshly-set flag for scope's substance.
func (s *SimulationState) ResetSalesIntentFlag(scope Scope) {
	s.EnsureSubstance(scope).ResetSalesIntentFlag()
}

// IncrementYear rolls every registered substance forward one year and
// advances the simulation clock.
func (s *SimulationState) IncrementYear() {
	s.Year++
	for _, key := range s.order {
		s.substances[key].IncrementYear()
	}
}

// SortedKeys returns the registered substance keys sorted by
// (application, substance), used when emission order must be
// deterministic regardless of first-reference order.
func (s *SimulationState) SortedKeys() []SubstanceKey {
	out := s.GetRegisteredSubstances()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Application != out[j].Application {
			return out[i].Application < out[j].Application
		}
		return out[i].Substance < out[j].Substance
	})
	return out
}
