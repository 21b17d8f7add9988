package runner

import (
	"fmt"

	"github.com/example/kigalisim/internal/engine/engineerr"
	"github.com/example/kigalisim/internal/engine/interpreter"
	"github.com/example/kigalisim/internal/engine/lang"
	"github.com/example/kigalisim/internal/engine/recalc"
	"github.com/example/kigalisim/internal/engine/state"
)

// ProgressFunc is invoked once per simulated year with a monotonic
// fraction in [0,1]. Implementations must be non-blocking and must not
// re-enter the engine.
type ProgressFunc func(fraction float64)

// Options configures one scenario run.
type Options struct {
	// Trial tags every emitted EngineResult; Monte Carlo callers pass the
	// trial index, single-run callers pass 0.
	Trial int

	// Resolve turns sampled DSL values into concrete numbers. Pass
	// interpreter.LiteralResolver() for deterministic single-trial runs.
	Resolve interpreter.Resolver

	// Progress, if non-nil, is called once per simulated year.
	Progress ProgressFunc

	// Cancel, if non-nil, is checked at the start of each simulated year.
	// When closed, Run returns engineerr.ErrCancelled with no rows emitted
	// for the interrupted year.
	Cancel <-chan struct{}
}

// Run executes scenarioName from prog, returning one EngineResult per
// (application, substance, year) in year-then-substance order.
func Run(prog *lang.ParsedProgram, scenarioName string, opts Options) ([]EngineResult, error) {
	scenario, ok := prog.SimulationByName(scenarioName)
	if !ok {
		return nil, fmt.Errorf("runner: %w: simulation %q", engineerr.ErrUnknownApplication, scenarioName)
	}

	resolve := opts.Resolve
	if resolve == nil {
		resolve = interpreter.LiteralResolver()
	}

	var policies []lang.PolicyStanza
	for _, name := range scenario.PolicyNames {
		policy, ok := prog.PolicyByName(name)
		if !ok {
			return nil, fmt.Errorf("runner: unknown policy %q referenced by simulation %q", name, scenarioName)
		}
		policies = append(policies, policy)
	}

	sim := state.NewSimulationState()
	interp := interpreter.New()
	recalculator := recalc.New()

	totalYears := scenario.YearEnd - scenario.YearStart + 1
	if totalYears <= 0 {
		return nil, fmt.Errorf("runner: simulation %q has empty year range [%d,%d]", scenarioName, scenario.YearStart, scenario.YearEnd)
	}

	var results []EngineResult

	for year := scenario.YearStart; year <= scenario.YearEnd; year++ {
		if opts.Cancel != nil {
			select {
			case <-opts.Cancel:
				return nil, engineerr.ErrCancelled
			default:
			}
		}

		sim.Year = year

		if err := applyStanza(sim, interp, state.StanzaDefault, "", prog.Default.Applications, year, resolve); err != nil {
			return nil, err
		}
		for _, policy := range policies {
			if err := applyStanza(sim, interp, state.StanzaPolicy, policy.Name, policy.Applications, year, resolve); err != nil {
				return nil, err
			}
		}

		for _, key := range sim.SortedKeys() {
			scope := state.NewDefaultScope(key.Application, key.Substance)
			if err := recalculator.Run(sim, scope); err != nil {
				return nil, err
			}
		}

		for _, key := range sim.SortedKeys() {
			sub, err := sim.Substance(state.NewDefaultScope(key.Application, key.Substance))
			if err != nil {
				return nil, err
			}
			results = append(results, buildResult(scenarioName, opts.Trial, year, sub))
		}

		if opts.Progress != nil {
			opts.Progress(float64(year-scenario.YearStart+1) / float64(totalYears))
		}

		sim.IncrementYear()
	}

	return results, nil
}

// applyStanza applies every command in every substance of every
// application in apps whose matcher accepts year, scoping each to the
// given stanza/policy name.
func applyStanza(sim *state.SimulationState, interp *interpreter.Interpreter, stanza state.Stanza, policyName string, apps []lang.ApplicationDef, year int, resolve interpreter.Resolver) error {
	for _, app := range apps {
		for _, sub := range app.Substances {
			var scope state.Scope
			if stanza == state.StanzaPolicy {
				scope = state.NewPolicyScope(policyName, app.Name, sub.Name)
			} else {
				scope = state.NewDefaultScope(app.Name, sub.Name)
			}
			for _, cmd := range sub.Commands {
				if err := interp.Apply(sim, scope, cmd, year, resolve); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func buildResult(scenario string, trial, year int, sub *state.SubstanceState) EngineResult {
	return EngineResult{
		Scenario:          scenario,
		Trial:             trial,
		Year:              year,
		Application:       sub.Application,
		Substance:         sub.Substance,
		Domestic:          sub.Streams.Domestic,
		Import:            sub.Streams.Import,
		Export:            sub.Streams.Export,
		Sales:             sub.Streams.Sales(),
		Recycle:           sub.Streams.Recycle,
		RecycleRecharge:   sub.Streams.RecycleRecharge,
		RecycleEol:        sub.Streams.RecycleEol,
		Population:        sub.Streams.Equipment,
		PriorPopulation:   sub.Streams.PriorEquipment,
		Retired:           sub.Streams.Retired,
		RechargeEmissions: sub.Streams.RechargeEmissions,
		EolEmissions:      sub.Streams.EolEmissions,
		ExportEmissions:   sub.Streams.ExportEmissions,
		GhgConsumption:    sub.Streams.Consumption,
		Energy:            sub.Streams.Energy,
	}
}
