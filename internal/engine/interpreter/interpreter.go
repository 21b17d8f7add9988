package interpreter

import (
	"github.com/example/kigalisim/internal/engine/displacement"
	"github.com/example/kigalisim/internal/engine/engineerr"
	"github.com/example/kigalisim/internal/engine/lang"
	"github.com/example/kigalisim/internal/engine/number"
	"github.com/example/kigalisim/internal/engine/recalc"
	"github.com/example/kigalisim/internal/engine/state"
)

// Interpreter evaluates lang.Command values against a SimulationState,
// gated by each command's YearMatcher, and triggers recalculation after
// every stream-writing or policy command. Parameter commands (enable,
// initial charge, equals, prior equipment) do not trigger recalculation.
type Interpreter struct {
	recalc       *recalc.Recalculator
	displacement *displacement.Executor
}

// New constructs an Interpreter with its own Recalculator and
// displacement Executor; both are stateless and cheap to share, but each
// Interpreter owns its own for clarity at call sites.
func New() *Interpreter {
	return &Interpreter{recalc: recalc.New(), displacement: displacement.New()}
}

// Apply evaluates cmd against scope for the given year using resolve to
// turn any sampled value into a concrete number. If the command's
// YearMatcher rejects year, Apply is a no-op. Apply triggers a full
// recalculation after set, change, cap, floor, recharge, retire, recover,
// recycle and replace; enable, initial charge, equals and prior equipment
// only record the value and return without recalculating.
func (in *Interpreter) Apply(sim *state.SimulationState, scope state.Scope, cmd lang.Command, year int, resolve Resolver) error {
	if !cmd.Matcher.Matches(year) {
		return nil
	}

	switch cmd.Kind {
	case lang.CmdEnable:
		sim.MarkStreamAsEnabled(scope, state.StreamName(cmd.Stream))
		return nil

	case lang.CmdInitialCharge:
		val, err := resolve(cmd.Value)
		if err != nil {
			return err
		}
		sim.SetInitialCharge(scope, state.StreamName(cmd.InitialChargeStream), val)
		return nil

	case lang.CmdEqualsGhg:
		val, err := resolve(cmd.Value)
		if err != nil {
			return err
		}
		sim.SetGhgIntensity(scope, val)
		return nil

	case lang.CmdEqualsEnergy:
		val, err := resolve(cmd.Value)
		if err != nil {
			return err
		}
		sim.SetEnergyIntensity(scope, val)
		return nil

	case lang.CmdPriorEquipment:
		val, err := resolve(cmd.Value)
		if err != nil {
			return err
		}
		sim.SetLastSpecifiedValue(scope, state.StreamPriorEquipment, val)
		sim.EnsureSubstance(scope).Streams.PriorEquipment = val
		return nil

	case lang.CmdSetTo:
		return in.applySetTo(sim, scope, cmd, resolve)

	case lang.CmdSetBy:
		return in.applySetBy(sim, scope, cmd, resolve)

	case lang.CmdChangeBy:
		return in.applyChangeBy(sim, scope, cmd, resolve)

	case lang.CmdCap:
		return in.applyCapFloor(sim, scope, cmd, resolve, true)

	case lang.CmdFloor:
		return in.applyCapFloor(sim, scope, cmd, resolve, false)

	case lang.CmdRecharge:
		return in.applyRecharge(sim, scope, cmd, resolve)

	case lang.CmdRetire:
		return in.applyRetire(sim, scope, cmd, resolve)

	case lang.CmdRecover:
		return in.applyRecover(sim, scope, cmd, resolve)

	case lang.CmdRecycle:
		return in.applyRecycle(sim, scope, cmd, resolve)

	case lang.CmdReplace:
		return in.applyReplace(sim, scope, cmd, resolve)

	default:
		return engineerr.NewParseError(0, 0, "unrecognized command kind %q", cmd.Kind)
	}
}

func (in *Interpreter) converter(sim *state.SimulationState, scope state.Scope) *number.UnitConverter {
	return number.NewUnitConverter(state.NewStateGetter(sim, scope))
}

func (in *Interpreter) nativeUnit(streamName state.StreamName) string {
	switch streamName {
	case state.StreamPriorEquipment, state.StreamEquipment, state.StreamRetired:
		return "units"
	case state.StreamConsumption, state.StreamRechargeEmissions, state.StreamEolEmissions, state.StreamExportEmissions:
		return "tCO2e"
	case state.StreamEnergy:
		return "kwh"
	default:
		return "kg"
	}
}

func (in *Interpreter) applySetTo(sim *state.SimulationState, scope state.Scope, cmd lang.Command, resolve Resolver) error {
	streamName := state.StreamName(cmd.Stream)
	raw, err := resolve(cmd.Value)
	if err != nil {
		return err
	}

	native := in.nativeUnit(streamName)
	converted, err := in.converter(sim, scope).Convert(raw, native)
	if err != nil {
		return err
	}

	upd := state.NewStreamUpdate(streamName, converted)
	if err := sim.Update(scope, upd); err != nil {
		return err
	}
	return in.recalc.Run(sim, scope)
}

func (in *Interpreter) applySetBy(sim *state.SimulationState, scope state.Scope, cmd lang.Command, resolve Resolver) error {
	streamName := state.StreamName(cmd.Stream)
	pct, err := resolve(cmd.Value)
	if err != nil {
		return err
	}

	base := sim.GetLastSpecifiedValue(scope, streamName)
	newValue := base.Value + base.Value*pct.Value/100

	upd := state.StreamUpdate{
		Name:              streamName,
		Value:             number.New(newValue, base.Units),
		PropagateChanges:  true,
		SkipLastSpecified: true,
	}
	if err := sim.Update(scope, upd); err != nil {
		return err
	}
	return in.recalc.Run(sim, scope)
}

func (in *Interpreter) applyChangeBy(sim *state.SimulationState, scope state.Scope, cmd lang.Command, resolve Resolver) error {
	streamName := state.StreamName(cmd.Stream)
	delta, err := resolve(cmd.Value)
	if err != nil {
		return err
	}

	current, err := sim.GetStream(scope, streamName)
	if err != nil {
		return err
	}

	var newValue float64
	if delta.Units == "%" || delta.Units == "percent" {
		newValue = current.Value * (1 + delta.Value/100)
	} else {
		native := in.nativeUnit(streamName)
		converted, err := in.converter(sim, scope).Convert(delta, native)
		if err != nil {
			return err
		}
		newValue = current.Value + converted.Value
	}

	upd := state.NewStreamUpdate(streamName, number.New(newValue, current.Units))
	if err := sim.Update(scope, upd); err != nil {
		return err
	}
	return in.recalc.Run(sim, scope)
}

func (in *Interpreter) applyCapFloor(sim *state.SimulationState, scope state.Scope, cmd lang.Command, resolve Resolver, isCap bool) error {
	streamName := state.StreamName(cmd.Stream)
	raw, err := resolve(cmd.Value)
	if err != nil {
		return err
	}

	current, err := sim.GetStream(scope, streamName)
	if err != nil {
		return err
	}

	var target float64
	if raw.Units == "%" || raw.Units == "percent" {
		target = current.Value * (raw.Value / 100)
	} else {
		native := in.nativeUnit(streamName)
		converted, err := in.converter(sim, scope).Convert(raw, native)
		if err != nil {
			return err
		}
		target = converted.Value
	}

	shouldAdjust := (isCap && current.Value > target) || (!isCap && current.Value < target)
	if !shouldAdjust {
		return nil
	}

	delta := number.New(target-current.Value, current.Units)
	upd := state.NewStreamUpdate(streamName, number.New(target, current.Units))
	if err := sim.Update(scope, upd); err != nil {
		return err
	}

	if cmd.HasDisplace {
		mode := displacement.ByVolume
		if cmd.DisplaceBy == lang.DisplaceByUnits {
			mode = displacement.ByUnits
		}
		if err := in.displacement.Displace(sim, scope, streamName, delta, cmd.DisplaceTarget, mode); err != nil {
			return err
		}
	}

	return in.recalc.Run(sim, scope)
}

func (in *Interpreter) applyRecharge(sim *state.SimulationState, scope state.Scope, cmd lang.Command, resolve Resolver) error {
	pctVal, err := resolve(cmd.RechargePercent)
	if err != nil {
		return err
	}
	kgVal, err := resolve(cmd.RechargeKgUnit)
	if err != nil {
		return err
	}

	sub := sim.EnsureSubstance(scope)
	sub.Recharge = state.RechargeSchedule{PercentPerYear: pctVal.Value, KgPerUnit: kgVal.Value}
	return in.recalc.Run(sim, scope)
}

func (in *Interpreter) applyRetire(sim *state.SimulationState, scope state.Scope, cmd lang.Command, resolve Resolver) error {
	val, err := resolve(cmd.Value)
	if err != nil {
		return err
	}
	sub := sim.EnsureSubstance(scope)
	sub.Retirement = state.RetirementPolicy{PercentPerYear: val.Value, WithReplacement: cmd.WithReplacement}
	return in.recalc.Run(sim, scope)
}

func (in *Interpreter) applyRecover(sim *state.SimulationState, scope state.Scope, cmd lang.Command, resolve Resolver) error {
	raw, err := resolve(cmd.Value)
	if err != nil {
		return err
	}
	converted, err := in.converter(sim, scope).Convert(raw, "kg")
	if err != nil {
		return err
	}

	sub := sim.EnsureSubstance(scope)
	switch cmd.RecoverFor {
	case "recharge":
		sub.Streams.RecycleRecharge = number.New(sub.Streams.RecycleRecharge.Value+converted.Value, "kg")
	case "eol":
		sub.Streams.RecycleEol = number.New(sub.Streams.RecycleEol.Value+converted.Value, "kg")
	default:
		sub.Streams.Recycle = number.New(sub.Streams.Recycle.Value+converted.Value, "kg")
	}
	return in.recalc.Run(sim, scope)
}

// applyRecycle routes a percentage of stream s into the recycle pool,
// optionally displacing the diverted amount against another stream or
// substance. The source stream itself is reduced by the diverted amount
// when a displacement target is given; otherwise the recycle credit is
// additive, representing external recovery rather than an internal
// diversion.
func (in *Interpreter) applyRecycle(sim *state.SimulationState, scope state.Scope, cmd lang.Command, resolve Resolver) error {
	pct, err := resolve(cmd.Value)
	if err != nil {
		return err
	}
	streamName := state.StreamName(cmd.Stream)
	current, err := sim.GetStream(scope, streamName)
	if err != nil {
		return err
	}

	amount := current.Value * (pct.Value / 100)
	sub := sim.EnsureSubstance(scope)
	sub.Streams.Recycle = number.New(sub.Streams.Recycle.Value+amount, "kg")

	if cmd.HasDisplace {
		newCurrent := current.Value - amount
		if newCurrent < 0 {
			newCurrent = 0
		}
		delta := number.New(newCurrent-current.Value, current.Units)
		sub.Streams.Set(streamName, number.New(newCurrent, current.Units))
		if err := in.displacement.Displace(sim, scope, streamName, delta, cmd.DisplaceTarget, displacement.ByVolume); err != nil {
			return err
		}
	}

	return in.recalc.Run(sim, scope)
}

// applyReplace transfers amount kg from ReplaceFromSubstance to
// ReplaceToSubstance within the current application, preserving total
// mass (scenario 2 of the testable properties).
func (in *Interpreter) applyReplace(sim *state.SimulationState, scope state.Scope, cmd lang.Command, resolve Resolver) error {
	raw, err := resolve(cmd.ReplaceAmount)
	if err != nil {
		return err
	}
	fromScope := scope.WithSubstance(cmd.ReplaceFromSubstance)
	amountKg, err := in.converter(sim, fromScope).Convert(raw, "kg")
	if err != nil {
		return err
	}

	fromSub := sim.EnsureSubstance(fromScope)
	domesticEnabled := fromSub.IsStreamEnabled(state.StreamDomestic)
	importEnabled := fromSub.IsStreamEnabled(state.StreamImport)

	var domesticCut, importCut float64
	switch {
	case domesticEnabled && importEnabled:
		domesticCut = amountKg.Value * fromSub.Distribution.PercentDomestic
		importCut = amountKg.Value * fromSub.Distribution.PercentImport
	case domesticEnabled:
		domesticCut = amountKg.Value
	case importEnabled:
		importCut = amountKg.Value
	default:
		domesticCut = amountKg.Value
	}

	fromSub.Streams.Domestic = number.New(maxFloat(fromSub.Streams.Domestic.Value-domesticCut, 0), "kg")
	fromSub.Streams.Import = number.New(maxFloat(fromSub.Streams.Import.Value-importCut, 0), "kg")
	fromSub.SetLastSpecifiedValue(state.StreamDomestic, fromSub.Streams.Domestic)
	fromSub.SetLastSpecifiedValue(state.StreamImport, fromSub.Streams.Import)

	delta := number.New(-amountKg.Value, "kg")
	if err := in.displacement.Displace(sim, fromScope, state.StreamDomestic, delta, cmd.ReplaceToSubstance, displacement.ByVolume); err != nil {
		return err
	}

	if err := in.recalc.Run(sim, fromScope); err != nil {
		return err
	}
	return in.recalc.Run(sim, fromScope.WithSubstance(cmd.ReplaceToSubstance))
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
