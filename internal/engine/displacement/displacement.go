// Package displacement implements the compensating-transfer algorithm
// that conserves material when a cap, floor, recycle routing, or replace
// command offsets one stream or substance against another. This is the
// hottest path in the engine; every branch must uphold invariant I7
// (equipment-unit or volume conservation) and I2 (sales identity).
package displacement

import (
	"github.com/example/kigalisim/internal/engine/engineerr"
	"github.com/example/kigalisim/internal/engine/number"
	"github.com/example/kigalisim/internal/engine/state"
)

// Mode selects whether a displaced amount is interpreted as an
// equipment-unit count or a mass/volume quantity.
type Mode string

const (
	ByVolume Mode = "volume"
	ByUnits  Mode = "units"
)

// Executor applies displacement transfers against a SimulationState.
type Executor struct{}

// New constructs an Executor.
func New() *Executor { return &Executor{} }

// Displace moves the compensating amount implied by a Δ kg change in
// sourceStream within sourceScope to targetName, interpreted either as
// another stream on the same substance or as a substance name within the
// same application. delta is the signed change already applied to the
// source (negative for a reduction, as with a cap).
func (e *Executor) Displace(sim *state.SimulationState, sourceScope state.Scope, sourceStream state.StreamName, delta number.EngineNumber, targetName string, mode Mode) error {
	target := state.StreamName(targetName)

	if target.IsValid() && targetName == string(sourceStream) {
		return engineerr.ErrSelfDisplacement
	}

	sourceSub, err := sim.Substance(sourceScope)
	if err != nil {
		return err
	}

	// Automatic recycling pre-step: if the source of the mutation is the
	// recovery/sales stream itself and the target is another stream on
	// this same substance, first add the recycled delta back to the
	// recovery stream so material balance holds before routing the
	// remainder onward. A substance-to-substance target skips this --
	// Recycle belongs to the source substance, not the destination, so
	// crediting it here would double-count against I7.
	if sourceStream == state.StreamSales && target.IsValid() {
		sourceSub.Streams.Recycle = number.New(sourceSub.Streams.Recycle.Value-delta.Value, "kg")
	}

	if target.IsValid() {
		return e.displaceToStream(sourceSub, delta, target, mode)
	}
	return e.displaceToSubstance(sim, sourceScope, sourceSub, delta, targetName, mode)
}

// displaceToStream moves −Δ into another stream on the same substance.
// Volumes match directly because the initial charge is shared within one
// substance, regardless of mode.
func (e *Executor) displaceToStream(sourceSub *state.SubstanceState, delta number.EngineNumber, target state.StreamName, mode Mode) error {
	current := sourceSub.Streams.Get(target)
	moved := -delta.Value
	updated := current.Value + moved
	if updated < 0 {
		updated = 0
	}
	sourceSub.Streams.Set(target, number.New(updated, current.Units))
	return nil
}

// displaceToSubstance moves the compensating amount to a different
// substance within the same application. For units-denominated sources
// the unit count is preserved (I7); the destination mass is derived from
// the destination's own initial charge, not the source's, since GWP and
// charge rate differ per substance.
func (e *Executor) displaceToSubstance(sim *state.SimulationState, sourceScope state.Scope, sourceSub *state.SubstanceState, delta number.EngineNumber, targetSubstance string, mode Mode) error {
	destScope := sourceScope.WithSubstance(targetSubstance)
	destSub := sim.EnsureSubstance(destScope)

	if mode == ByUnits {
		sourceCharge := weightedCharge(sourceSub)
		if sourceCharge == 0 {
			return engineerr.ErrZeroInitialCharge
		}
		unitsMoved := -delta.Value / sourceCharge

		destCharge := weightedCharge(destSub)
		if destCharge == 0 {
			return engineerr.ErrZeroInitialCharge
		}
		destKg := unitsMoved * destCharge

		e.applyToDestination(destSub, destKg)
		return nil
	}

	// Volume-denominated: apply −Δ kg to the destination directly; no
	// re-derivation through initial charge since the transfer is already
	// mass-denominated.
	e.applyToDestination(destSub, -delta.Value)
	return nil
}

// applyToDestination routes kg into whichever of domestic/import is
// enabled on the destination substance (mirroring updateSales routing),
// and proportionally updates lastSpecifiedValue so later "change by %"
// commands on the destination compound against the post-displacement
// baseline.
func (e *Executor) applyToDestination(destSub *state.SubstanceState, kg float64) {
	domesticEnabled := destSub.IsStreamEnabled(state.StreamDomestic)
	importEnabled := destSub.IsStreamEnabled(state.StreamImport)

	var domesticKg, importKg float64
	switch {
	case domesticEnabled && importEnabled:
		domesticKg = kg * destSub.Distribution.PercentDomestic
		importKg = kg * destSub.Distribution.PercentImport
	case domesticEnabled:
		domesticKg = kg
	case importEnabled:
		importKg = kg
	default:
		domesticKg = kg
		destSub.MarkStreamEnabled(state.StreamDomestic)
	}

	newDomestic := destSub.Streams.Domestic.Value + domesticKg
	newImport := destSub.Streams.Import.Value + importKg
	if newDomestic < 0 {
		newDomestic = 0
	}
	if newImport < 0 {
		newImport = 0
	}
	destSub.Streams.Domestic = number.New(newDomestic, "kg")
	destSub.Streams.Import = number.New(newImport, "kg")

	destSub.SetLastSpecifiedValue(state.StreamDomestic, destSub.Streams.Domestic)
	destSub.SetLastSpecifiedValue(state.StreamImport, destSub.Streams.Import)
}

func weightedCharge(sub *state.SubstanceState) float64 {
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
