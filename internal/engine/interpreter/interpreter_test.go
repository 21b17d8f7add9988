package interpreter

import (
	"testing"

	"github.com/example/kigalisim/internal/engine/lang"
	"github.com/example/kigalisim/internal/engine/number"
	"github.com/example/kigalisim/internal/engine/state"
)

func newSim(t *testing.T) (*state.SimulationState, state.Scope) {
	t.Helper()
	sim := state.NewSimulationState()
	scope := state.NewDefaultScope("Domestic Refrigeration", "HFC-134a")
	sim.MarkStreamAsEnabled(scope, state.StreamDomestic)
	return sim, scope
}

func TestApplyEnableMarksStream(t *testing.T) {
	sim, scope := newSim(t)
	in := New()
	cmd := lang.Command{Kind: lang.CmdEnable, Stream: "import", Matcher: lang.AlwaysMatcher()}
	if err := in.Apply(sim, scope, cmd, 2020, LiteralResolver()); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	sub, _ := sim.Substance(scope)
	if !sub.IsStreamEnabled(state.StreamImport) {
		t.Error("expected import stream to be enabled")
	}
}

func TestApplyRespectsYearMatcher(t *testing.T) {
	sim, scope := newSim(t)
	in := New()
	cmd := lang.Command{
		Kind:    lang.CmdSetTo,
		Stream:  "domestic",
		Value:   lang.Literal(number.New(100, "kg")),
		Matcher: lang.DuringYear(2025),
	}
	if err := in.Apply(sim, scope, cmd, 2020, LiteralResolver()); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	sub, _ := sim.Substance(scope)
	if sub.Streams.Domestic.Value != 0 {
		t.Errorf("expected no-op outside the matcher's year, got %v", sub.Streams.Domestic.Value)
	}

	if err := in.Apply(sim, scope, cmd, 2025, LiteralResolver()); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if sub.Streams.Domestic.Value != 100 {
		t.Errorf("expected domestic = 100 in the matching year, got %v", sub.Streams.Domestic.Value)
	}
}

func TestApplySetToConvertsUnits(t *testing.T) {
	sim, scope := newSim(t)
	sim.SetInitialCharge(scope, state.StreamDomestic, number.New(2, "kg"))
	in := New()
	cmd := lang.Command{
		Kind:    lang.CmdSetTo,
		Stream:  "domestic",
		Value:   lang.Literal(number.New(1, "mt")),
		Matcher: lang.AlwaysMatcher(),
	}
	if err := in.Apply(sim, scope, cmd, 2020, LiteralResolver()); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	sub, _ := sim.Substance(scope)
	if sub.Streams.Domestic.Value != 1000 {
		t.Errorf("expected 1mt to convert to 1000kg, got %v", sub.Streams.Domestic.Value)
	}
}

func TestApplySetByAppliesPercentOfLastSpecified(t *testing.T) {
	sim, scope := newSim(t)
	in := New()
	setCmd := lang.Command{Kind: lang.CmdSetTo, Stream: "domestic", Value: lang.Literal(number.New(100, "kg")), Matcher: lang.AlwaysMatcher()}
	if err := in.Apply(sim, scope, setCmd, 2020, LiteralResolver()); err != nil {
		t.Fatalf("Apply(set) returned error: %v", err)
	}

	byCmd := lang.Command{Kind: lang.CmdSetBy, Stream: "domestic", Value: lang.Literal(number.New(10, "%")), Matcher: lang.AlwaysMatcher()}
	if err := in.Apply(sim, scope, byCmd, 2021, LiteralResolver()); err != nil {
		t.Fatalf("Apply(set by) returned error: %v", err)
	}

	sub, _ := sim.Substance(scope)
	if sub.Streams.Domestic.Value != 110 {
		t.Errorf("expected 100 * 1.10 = 110, got %v", sub.Streams.Domestic.Value)
	}
}

func TestApplyChangeByPercent(t *testing.T) {
	sim, scope := newSim(t)
	in := New()
	setCmd := lang.Command{Kind: lang.CmdSetTo, Stream: "domestic", Value: lang.Literal(number.New(200, "kg")), Matcher: lang.AlwaysMatcher()}
	_ = in.Apply(sim, scope, setCmd, 2020, LiteralResolver())

	changeCmd := lang.Command{Kind: lang.CmdChangeBy, Stream: "domestic", Value: lang.Literal(number.New(-10, "%")), Matcher: lang.AlwaysMatcher()}
	if err := in.Apply(sim, scope, changeCmd, 2021, LiteralResolver()); err != nil {
		t.Fatalf("Apply(change by) returned error: %v", err)
	}

	sub, _ := sim.Substance(scope)
	if sub.Streams.Domestic.Value != 180 {
		t.Errorf("expected 200 * 0.90 = 180, got %v", sub.Streams.Domestic.Value)
	}
}

func TestApplyCapWithoutDisplacement(t *testing.T) {
	sim, scope := newSim(t)
	in := New()
	setCmd := lang.Command{Kind: lang.CmdSetTo, Stream: "domestic", Value: lang.Literal(number.New(200, "kg")), Matcher: lang.AlwaysMatcher()}
	_ = in.Apply(sim, scope, setCmd, 2020, LiteralResolver())

	capCmd := lang.Command{Kind: lang.CmdCap, Stream: "domestic", Value: lang.Literal(number.New(50, "kg")), Matcher: lang.AlwaysMatcher()}
	if err := in.Apply(sim, scope, capCmd, 2021, LiteralResolver()); err != nil {
		t.Fatalf("Apply(cap) returned error: %v", err)
	}
	sub, _ := sim.Substance(scope)
	if sub.Streams.Domestic.Value != 50 {
		t.Errorf("expected capped domestic = 50, got %v", sub.Streams.Domestic.Value)
	}
}

func TestApplyCapWithDisplacementMovesToImport(t *testing.T) {
	sim, scope := newSim(t)
	sim.MarkStreamAsEnabled(scope, state.StreamImport)
	in := New()
	setCmd := lang.Command{Kind: lang.CmdSetTo, Stream: "domestic", Value: lang.Literal(number.New(200, "kg")), Matcher: lang.AlwaysMatcher()}
	_ = in.Apply(sim, scope, setCmd, 2020, LiteralResolver())

	capCmd := lang.Command{
		Kind: lang.CmdCap, Stream: "domestic", Value: lang.Literal(number.New(50, "kg")),
		Matcher: lang.AlwaysMatcher(), HasDisplace: true, DisplaceTarget: "import", DisplaceBy: lang.DisplaceByVolume,
	}
	if err := in.Apply(sim, scope, capCmd, 2021, LiteralResolver()); err != nil {
		t.Fatalf("Apply(cap displacing) returned error: %v", err)
	}

	sub, _ := sim.Substance(scope)
	if sub.Streams.Domestic.Value != 50 {
		t.Errorf("expected domestic capped at 50, got %v", sub.Streams.Domestic.Value)
	}
	if sub.Streams.Import.Value != 150 {
		t.Errorf("expected the 150kg removed from domestic to land in import, got %v", sub.Streams.Import.Value)
	}
}

func TestApplyFloorRaisesBelowTarget(t *testing.T) {
	sim, scope := newSim(t)
	in := New()
	setCmd := lang.Command{Kind: lang.CmdSetTo, Stream: "domestic", Value: lang.Literal(number.New(10, "kg")), Matcher: lang.AlwaysMatcher()}
	_ = in.Apply(sim, scope, setCmd, 2020, LiteralResolver())

	floorCmd := lang.Command{Kind: lang.CmdFloor, Stream: "domestic", Value: lang.Literal(number.New(50, "kg")), Matcher: lang.AlwaysMatcher()}
	if err := in.Apply(sim, scope, floorCmd, 2021, LiteralResolver()); err != nil {
		t.Fatalf("Apply(floor) returned error: %v", err)
	}
	sub, _ := sim.Substance(scope)
	if sub.Streams.Domestic.Value != 50 {
		t.Errorf("expected floored domestic = 50, got %v", sub.Streams.Domestic.Value)
	}
}

func TestApplyRechargeSetsSchedule(t *testing.T) {
	sim, scope := newSim(t)
	in := New()
	cmd := lang.Command{
		Kind:            lang.CmdRecharge,
		RechargePercent: lang.Literal(number.New(10, "%")),
		RechargeKgUnit:  lang.Literal(number.New(0.5, "kg")),
		Matcher:         lang.AlwaysMatcher(),
	}
	if err := in.Apply(sim, scope, cmd, 2020, LiteralResolver()); err != nil {
		t.Fatalf("Apply(recharge) returned error: %v", err)
	}
	sub, _ := sim.Substance(scope)
	if sub.Recharge.PercentPerYear != 10 || sub.Recharge.KgPerUnit != 0.5 {
		t.Errorf("unexpected recharge schedule: %+v", sub.Recharge)
	}
}

func TestApplyRetireSetsPolicy(t *testing.T) {
	sim, scope := newSim(t)
	in := New()
	cmd := lang.Command{Kind: lang.CmdRetire, Value: lang.Literal(number.New(10, "%")), WithReplacement: true, Matcher: lang.AlwaysMatcher()}
	if err := in.Apply(sim, scope, cmd, 2020, LiteralResolver()); err != nil {
		t.Fatalf("Apply(retire) returned error: %v", err)
	}
	sub, _ := sim.Substance(scope)
	if sub.Retirement.PercentPerYear != 10 || !sub.Retirement.WithReplacement {
		t.Errorf("unexpected retirement policy: %+v", sub.Retirement)
	}
}

func TestApplyRecoverAddsToRecharge(t *testing.T) {
	sim, scope := newSim(t)
	in := New()
	cmd := lang.Command{Kind: lang.CmdRecover, Value: lang.Literal(number.New(10, "kg")), RecoverFor: "recharge", Matcher: lang.AlwaysMatcher()}
	if err := in.Apply(sim, scope, cmd, 2020, LiteralResolver()); err != nil {
		t.Fatalf("Apply(recover) returned error: %v", err)
	}
	sub, _ := sim.Substance(scope)
	if sub.Streams.RecycleRecharge.Value != 10 {
		t.Errorf("expected RecycleRecharge credited with 10kg, got %v", sub.Streams.RecycleRecharge.Value)
	}
}

func TestApplyRecycleWithDisplacementReducesSource(t *testing.T) {
	sim, scope := newSim(t)
	sim.MarkStreamAsEnabled(scope, state.StreamImport)
	in := New()
	setCmd := lang.Command{Kind: lang.CmdSetTo, Stream: "domestic", Value: lang.Literal(number.New(100, "kg")), Matcher: lang.AlwaysMatcher()}
	_ = in.Apply(sim, scope, setCmd, 2020, LiteralResolver())

	cmd := lang.Command{
		Kind: lang.CmdRecycle, Stream: "domestic", Value: lang.Literal(number.New(20, "%")),
		Matcher: lang.AlwaysMatcher(), HasDisplace: true, DisplaceTarget: "import",
	}
	if err := in.Apply(sim, scope, cmd, 2021, LiteralResolver()); err != nil {
		t.Fatalf("Apply(recycle) returned error: %v", err)
	}
	sub, _ := sim.Substance(scope)
	if sub.Streams.Domestic.Value != 80 {
		t.Errorf("expected domestic reduced to 80 after 20%% diverted, got %v", sub.Streams.Domestic.Value)
	}
	if sub.Streams.Recycle.Value != 20 {
		t.Errorf("expected recycle credited with 20kg, got %v", sub.Streams.Recycle.Value)
	}
}

func TestApplyReplaceMovesMassBetweenSubstances(t *testing.T) {
	sim := state.NewSimulationState()
	fromScope := state.NewDefaultScope("Domestic Refrigeration", "HFC-134a")
	sim.MarkStreamAsEnabled(fromScope, state.StreamDomestic)
	sim.SetInitialCharge(fromScope, state.StreamDomestic, number.New(1, "kg"))

	toScope := fromScope.WithSubstance("HFC-32")
	sim.MarkStreamAsEnabled(toScope, state.StreamDomestic)
	sim.SetInitialCharge(toScope, state.StreamDomestic, number.New(1, "kg"))

	in := New()
	setCmd := lang.Command{Kind: lang.CmdSetTo, Stream: "domestic", Value: lang.Literal(number.New(100, "kg")), Matcher: lang.AlwaysMatcher()}
	_ = in.Apply(sim, fromScope, setCmd, 2020, LiteralResolver())

	cmd := lang.Command{
		Kind:                 lang.CmdReplace,
		ReplaceAmount:        lang.Literal(number.New(30, "kg")),
		ReplaceFromSubstance: "HFC-134a",
		ReplaceToSubstance:   "HFC-32",
		Matcher:              lang.AlwaysMatcher(),
	}
	if err := in.Apply(sim, fromScope, cmd, 2021, LiteralResolver()); err != nil {
		t.Fatalf("Apply(replace) returned error: %v", err)
	}

	fromSub, _ := sim.Substance(fromScope)
	toSub, _ := sim.Substance(toScope)
	if fromSub.Streams.Domestic.Value != 70 {
		t.Errorf("expected source domestic reduced to 70, got %v", fromSub.Streams.Domestic.Value)
	}
	if toSub.Streams.Domestic.Value != 30 {
		t.Errorf("expected destination domestic to gain 30, got %v", toSub.Streams.Domestic.Value)
	}
}

func TestLiteralResolverPassesThroughLiteral(t *testing.T) {
	resolve := LiteralResolver()
	val, err := resolve(lang.Literal(number.New(42, "kg")))
	if err != nil {
		t.Fatalf("LiteralResolver returned error: %v", err)
	}
	if val.Value != 42 || val.Units != "kg" {
		t.Errorf("unexpected resolved value: %+v", val)
	}
}
