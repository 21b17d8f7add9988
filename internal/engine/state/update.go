package state

import "github.com/example/kigalisim/internal/engine/number"

// StreamUpdate is an immutable record describing a single write to a
// stream. The interpreter constructs one per command application and
// applies it via SimulationState.Update.
type StreamUpdate struct {
	Name StreamName
	Value number.EngineNumber

	// Scope overrides the target substance; nil means "the current scope".
	Scope *Scope

	// PropagateChanges records whether a full recalculation is wanted after
	// this update. Update does not act on it, and the interpreter does not
	// read it: the interpreter recalculates after every stream write.
	PropagateChanges bool

	// UnitsToRecord, if non-empty, is the unit string under which
	// LastSpecifiedValue should be recorded, overriding Value.Units. This
	// lets a units-denominated write still record its mass-equivalent
	// last-specified value when the caller has already converted it.
	UnitsToRecord string

	// SubtractRecycling, when true and Name is domestic or import,
	// deducts the recycling-credit portion of a units-denominated write so
	// material balance holds (see component design 4.2).
	SubtractRecycling bool

	// ForceUseFullRecharge is carried on the update but nothing in the
	// engine reads it; recharge-need accounting is the same either way.
	ForceUseFullRecharge bool

	// Distribution overrides the substance's current sales distribution
	// for this write only; nil means "use the substance's distribution".
	Distribution *SalesStreamDistribution

	// SkipLastSpecified, when true, writes the stream value without
	// touching LastSpecifiedValue even though Value is not percent-unit.
	// Used by "set s by P%", whose resulting absolute value must never
	// become the new last-specified baseline (invariant I6).
	SkipLastSpecified bool
}

// NewStreamUpdate builds a StreamUpdate with PropagateChanges defaulted to
// true, matching the recalculator's "runs after every update unless told
// otherwise" contract (component design 4.3).
func NewStreamUpdate(name StreamName, value number.EngineNumber) StreamUpdate {
	return StreamUpdate{Name: name, Value: value, PropagateChanges: true}
}
