package lang

import (
	"fmt"
	"strings"

	"github.com/example/kigalisim/internal/engine/number"
)

// Parser implements a recursive-descent parser over the kigalisim DSL
// grammar sketched in the structural forms: default/policy/simulations
// stanzas, application/substance definitions, and the command verbs in
// the command interpreter's table.
type Parser struct {
	tokens []Token
	pos    int
	errors []error

	seenApplications map[string]bool
	seenPolicies     map[string]bool
	seenSimulations  map[string]bool
}

// Parse tokenizes and parses src, returning a ParseResult. On any
// recoverable error the parser records it and attempts to resynchronize
// at the next stanza boundary so a single pass can surface multiple
// diagnostics.
func Parse(src string) *ParseResult {
	tokens, err := NewLexer(src).Tokenize()
	if err != nil {
		return &ParseResult{Errors: []error{err}}
	}

	p := &Parser{
		tokens:           tokens,
		seenApplications: make(map[string]bool),
		seenPolicies:     make(map[string]bool),
		seenSimulations:  make(map[string]bool),
	}
	program := p.parseProgram()

	if len(p.errors) > 0 {
		return &ParseResult{Errors: p.errors}
	}
	return &ParseResult{Program: program}
}

// --- token stream helpers -------------------------------------------------

func (p *Parser) cur() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: TokEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) at(offset int) Token {
	idx := p.pos + offset
	if idx >= len(p.tokens) {
		return Token{Kind: TokEOF}
	}
	return p.tokens[idx]
}

func (p *Parser) advance() Token {
	t := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *Parser) atEOF() bool { return p.cur().Kind == TokEOF }

func (p *Parser) isKeyword(word string) bool {
	t := p.cur()
	return t.Kind == TokKeyword && t.Text == word
}

func (p *Parser) expectKeyword(word string) bool {
	if p.isKeyword(word) {
		p.advance()
		return true
	}
	p.errf("expected %q, found %q", word, p.cur().Text)
	return false
}

func (p *Parser) expectString() (string, bool) {
	if p.cur().Kind == TokString {
		return p.advance().Text, true
	}
	p.errf("expected a quoted string, found %q", p.cur().Text)
	return "", false
}

func (p *Parser) expectIdentifier() (string, bool) {
	t := p.cur()
	if t.Kind == TokIdentifier || t.Kind == TokKeyword {
		p.advance()
		return t.Text, true
	}
	p.errf("expected an identifier, found %q", t.Text)
	return "", false
}

func (p *Parser) expectNumber() (float64, bool) {
	if p.cur().Kind == TokNumber {
		text := p.advance().Text
		val, err := number.ParseFlexible(text)
		if err != nil {
			p.errors = append(p.errors, err)
			return 0, false
		}
		return val, true
	}
	p.errf("expected a number, found %q", p.cur().Text)
	return 0, false
}

func (p *Parser) errf(format string, args ...any) {
	t := p.cur()
	p.errors = append(p.errors, NewLexError(t.Row, t.Col, format, args...))
}

// resyncToStanzaEnd advances past tokens until an "end" keyword or EOF,
// so a malformed stanza does not cascade into spurious downstream errors.
func (p *Parser) resyncToStanzaEnd() {
	for !p.atEOF() && !p.isKeyword("end") {
		p.advance()
	}
	if p.isKeyword("end") {
		p.advance()
		if !p.atEOF() {
			p.advance() // the stanza-kind word following "end"
		}
	}
}

// --- top-level program -----------------------------------------------------

func (p *Parser) parseProgram() *ParsedProgram {
	program := &ParsedProgram{}

	for !p.atEOF() {
		switch {
		case p.isKeyword("start") && p.at(1).Text == "default":
			program.Default = p.parseDefaultStanza()
		case p.isKeyword("start") && p.at(1).Text == "policy":
			policy := p.parsePolicyStanza()
			if p.seenPolicies[policy.Name] {
				p.errf("duplicate policy name %q", policy.Name)
			}
			p.seenPolicies[policy.Name] = true
			program.Policies = append(program.Policies, policy)
		case p.isKeyword("start") && p.at(1).Text == "simulations":
			program.Simulations = p.parseSimulationsStanza()
		default:
			p.errf("expected a stanza (start default/policy/simulations), found %q", p.cur().Text)
			p.advance()
		}
	}

	for _, sim := range program.Simulations {
		if p.seenSimulations[sim.Name] {
			p.errf("duplicate simulation name %q", sim.Name)
		}
		p.seenSimulations[sim.Name] = true
	}

	return program
}

func (p *Parser) parseDefaultStanza() DefaultStanza {
	p.expectKeyword("start")
	p.expectKeyword("default")
	stanza := DefaultStanza{}
	for !p.atEOF() && !p.isKeyword("end") {
		app := p.parseApplicationDef()
		if p.seenApplications[app.Name] {
			p.errf("duplicate application name %q", app.Name)
		}
		p.seenApplications[app.Name] = true
		stanza.Applications = append(stanza.Applications, app)
	}
	p.expectKeyword("end")
	p.expectKeyword("default")
	return stanza
}

func (p *Parser) parsePolicyStanza() PolicyStanza {
	p.expectKeyword("start")
	p.expectKeyword("policy")
	name, _ := p.expectString()
	policy := PolicyStanza{Name: name}
	for !p.atEOF() && !p.isKeyword("end") {
		policy.Applications = append(policy.Applications, p.parseApplicationDef())
	}
	p.expectKeyword("end")
	p.expectKeyword("policy")
	return policy
}

func (p *Parser) parseSimulationsStanza() []SimulationScenario {
	p.expectKeyword("start")
	p.expectKeyword("simulations")
	var scenarios []SimulationScenario
	for !p.atEOF() && !p.isKeyword("end") {
		scenarios = append(scenarios, p.parseSimulationDef())
	}
	p.expectKeyword("end")
	p.expectKeyword("simulations")
	return scenarios
}

func (p *Parser) parseSimulationDef() SimulationScenario {
	p.expectKeyword("simulate")
	name, _ := p.expectString()
	scenario := SimulationScenario{Name: name, Trials: 1}

	if p.isKeyword("using") {
		p.advance()
		for {
			policyName, ok := p.expectString()
			if !ok {
				break
			}
			scenario.PolicyNames = append(scenario.PolicyNames, policyName)
			if p.isKeyword("and") {
				p.advance()
				continue
			}
			break
		}
	}

	p.expectKeyword("from")
	p.expectKeyword("years")
	if v, ok := p.expectNumber(); ok {
		scenario.YearStart = int(v)
	}
	p.expectKeyword("to")
	if v, ok := p.expectNumber(); ok {
		scenario.YearEnd = int(v)
	}

	if p.isKeyword("trials") {
		p.advance()
		if v, ok := p.expectNumber(); ok {
			scenario.Trials = int(v)
		}
	}

	return scenario
}

// --- application / substance -----------------------------------------------

func (p *Parser) parseApplicationDef() ApplicationDef {
	isModify := p.isKeyword("modify")
	if isModify {
		p.advance()
	} else {
		p.expectKeyword("define")
	}
	p.expectKeyword("application")
	name, _ := p.expectString()
	def := ApplicationDef{Name: name, IsModify: isModify}

	seenSubstances := make(map[string]bool)
	for !p.atEOF() && !p.isKeyword("end") {
		sub := p.parseSubstanceDef()
		if seenSubstances[sub.Name] {
			p.errf("duplicate substance name %q in application %q", sub.Name, name)
		}
		seenSubstances[sub.Name] = true
		def.Substances = append(def.Substances, sub)
	}
	p.expectKeyword("end")
	p.expectKeyword("application")
	return def
}

func (p *Parser) parseSubstanceDef() SubstanceDef {
	isModify := p.isKeyword("modify")
	if isModify {
		p.advance()
	} else {
		p.expectKeyword("uses")
	}
	p.expectKeyword("substance")
	name, _ := p.expectString()
	def := SubstanceDef{Name: name, IsModify: isModify}

	for !p.atEOF() && !p.isKeyword("end") {
		cmd, ok := p.parseCommand()
		if !ok {
			// Resynchronize within the substance body: skip to the next
			// recognizable command keyword or the stanza's "end".
			p.advance()
			continue
		}
		def.Commands = append(def.Commands, cmd)
	}
	p.expectKeyword("end")
	p.expectKeyword("substance")
	return def
}

// --- commands ---------------------------------------------------------------

func (p *Parser) parseCommand() (Command, bool) {
	t := p.cur()
	if t.Kind != TokKeyword {
		p.errf("expected a command, found %q", t.Text)
		return Command{}, false
	}

	var cmd Command
	var ok bool
	switch t.Text {
	case "enable":
		cmd, ok = p.parseEnable()
	case "initial":
		cmd, ok = p.parseInitialCharge()
	case "equals":
		cmd, ok = p.parseEquals()
	case "set":
		cmd, ok = p.parseSet()
	case "change":
		cmd, ok = p.parseChange()
	case "cap":
		cmd, ok = p.parseCapFloor(CmdCap)
	case "floor":
		cmd, ok = p.parseCapFloor(CmdFloor)
	case "recharge":
		cmd, ok = p.parseRecharge()
	case "retire":
		cmd, ok = p.parseRetire()
	case "recover":
		cmd, ok = p.parseRecover()
	case "recycle":
		cmd, ok = p.parseRecycle()
	case "replace":
		cmd, ok = p.parseReplace()
	default:
		p.errf("unrecognized command %q", t.Text)
		return Command{}, false
	}
	if !ok {
		return Command{}, false
	}

	cmd.Matcher = p.parseOptionalYearMatcher()
	return cmd, true
}

func (p *Parser) parseEnable() (Command, bool) {
	p.advance() // "enable"
	stream, ok := p.expectIdentifier()
	if !ok {
		return Command{}, false
	}
	return Command{Kind: CmdEnable, Stream: stream}, true
}

func (p *Parser) parseInitialCharge() (Command, bool) {
	p.advance() // "initial"
	p.expectKeyword("charge")
	p.expectKeyword("with")
	val, ok := p.parseValue()
	if !ok {
		return Command{}, false
	}
	p.expectKeyword("for")
	stream, ok := p.expectIdentifier()
	if !ok {
		return Command{}, false
	}
	return Command{Kind: CmdInitialCharge, InitialChargeStream: stream, Value: val}, true
}

func (p *Parser) parseEquals() (Command, bool) {
	p.advance() // "equals"
	val, ok := p.parseValue()
	if !ok {
		return Command{}, false
	}
	unit := number.NormalizeRateUnit(val.Literal.Units)
	kind := CmdEqualsGhg
	if strings.HasPrefix(unit, "kwh") {
		kind = CmdEqualsEnergy
	}
	return Command{Kind: kind, Value: val}, true
}

func (p *Parser) parseSet() (Command, bool) {
	p.advance() // "set"
	stream, ok := p.expectIdentifier()
	if !ok {
		return Command{}, false
	}
	if p.isKeyword("to") {
		p.advance()
		val, ok := p.parseValue()
		if !ok {
			return Command{}, false
		}
		kind := CmdSetTo
		if stream == "priorEquipment" {
			kind = CmdPriorEquipment
		}
		return Command{Kind: kind, Stream: stream, Value: val}, true
	}
	if p.isKeyword("by") {
		p.advance()
		val, ok := p.parseValue()
		if !ok {
			return Command{}, false
		}
		return Command{Kind: CmdSetBy, Stream: stream, Value: val}, true
	}
	p.errf("expected 'to' or 'by' after set %s", stream)
	return Command{}, false
}

func (p *Parser) parseChange() (Command, bool) {
	p.advance() // "change"
	stream, ok := p.expectIdentifier()
	if !ok {
		return Command{}, false
	}
	p.expectKeyword("by")
	val, ok := p.parseValue()
	if !ok {
		return Command{}, false
	}
	return Command{Kind: CmdChangeBy, Stream: stream, Value: val}, true
}

func (p *Parser) parseCapFloor(kind CommandKind) (Command, bool) {
	p.advance() // "cap" or "floor"
	stream, ok := p.expectIdentifier()
	if !ok {
		return Command{}, false
	}
	p.expectKeyword("to")
	val, ok := p.parseValue()
	if !ok {
		return Command{}, false
	}
	cmd := Command{Kind: kind, Stream: stream, Value: val}

	if p.isKeyword("displacing") {
		p.advance()
		target, ok := p.expectIdentifier()
		if !ok {
			return Command{}, false
		}
		cmd.HasDisplace = true
		cmd.DisplaceTarget = target
		cmd.DisplaceBy = DisplaceByVolume
		if p.isKeyword("by") {
			p.advance()
			mode, ok := p.expectIdentifier()
			if ok {
				switch mode {
				case "units":
					cmd.DisplaceBy = DisplaceByUnits
				case "volume":
					cmd.DisplaceBy = DisplaceByVolume
				default:
					p.errf("unrecognized displacement mode %q", mode)
				}
			}
		}
	}
	return cmd, true
}

func (p *Parser) parseRecharge() (Command, bool) {
	p.advance() // "recharge"
	pct, ok := p.parseValue()
	if !ok {
		return Command{}, false
	}
	if p.isKeyword("each") {
		p.advance()
		p.expectKeyword("year")
	}
	p.expectKeyword("with")
	kgUnit, ok := p.parseValue()
	if !ok {
		return Command{}, false
	}
	return Command{Kind: CmdRecharge, RechargePercent: pct, RechargeKgUnit: kgUnit}, true
}

func (p *Parser) parseRetire() (Command, bool) {
	p.advance() // "retire"
	pct, ok := p.parseValue()
	if !ok {
		return Command{}, false
	}
	cmd := Command{Kind: CmdRetire, Value: pct}
	if p.isKeyword("with") {
		p.advance()
		p.expectKeyword("replacement")
		cmd.WithReplacement = true
	}
	return cmd, true
}

func (p *Parser) parseRecover() (Command, bool) {
	p.advance() // "recover"
	val, ok := p.parseValue()
	if !ok {
		return Command{}, false
	}
	cmd := Command{Kind: CmdRecover, Value: val, RecoverFor: "recharge"}
	if p.isKeyword("for") {
		p.advance()
		kind, ok := p.expectIdentifier()
		if ok {
			cmd.RecoverFor = kind
		}
	}
	return cmd, true
}

func (p *Parser) parseRecycle() (Command, bool) {
	p.advance() // "recycle"
	stream, ok := p.expectIdentifier()
	if !ok {
		return Command{}, false
	}
	p.expectKeyword("with")
	pct, ok := p.parseValue()
	if !ok {
		return Command{}, false
	}
	cmd := Command{Kind: CmdRecycle, Stream: stream, Value: pct}
	if p.isKeyword("displacing") {
		p.advance()
		target, ok := p.expectIdentifier()
		if ok {
			cmd.HasDisplace = true
			cmd.DisplaceTarget = target
		}
	}
	return cmd, true
}

func (p *Parser) parseReplace() (Command, bool) {
	p.advance() // "replace"
	amount, ok := p.parseValue()
	if !ok {
		return Command{}, false
	}
	p.expectKeyword("of")
	from, ok := p.expectIdentifier()
	if !ok {
		return Command{}, false
	}
	p.expectKeyword("with")
	to, ok := p.expectIdentifier()
	if !ok {
		return Command{}, false
	}
	return Command{
		Kind:                 CmdReplace,
		ReplaceAmount:        amount,
		ReplaceFromSubstance: from,
		ReplaceToSubstance:   to,
	}, true
}

// --- values and year matchers ------------------------------------------------

func (p *Parser) parseValue() (Value, bool) {
	if p.isKeyword("normally") {
		return p.parseNormal()
	}
	if p.isKeyword("uniformly") {
		return p.parseUniform()
	}

	val, ok := p.expectNumber()
	if !ok {
		return Value{}, false
	}
	units := p.parseUnitSuffix()
	return Literal(number.New(val, units)), true
}

func (p *Parser) parseUnitSuffix() string {
	t := p.cur()
	var base string
	switch t.Kind {
	case TokPercent:
		p.advance()
		base = "%"
	case TokUnit, TokIdentifier:
		p.advance()
		base = t.Text
	case TokKeyword:
		switch t.Text {
		case "year", "years":
			p.advance()
			return "units"
		default:
			return ""
		}
	default:
		return ""
	}
	return base + p.parseOptionalPerYearSuffix()
}

// parseOptionalPerYearSuffix consumes a trailing "/ year" or "/ yr" that
// the lexer split into separate operator/keyword tokens because of
// surrounding whitespace (e.g. "% / year"), folding it onto the unit
// already read.
func (p *Parser) parseOptionalPerYearSuffix() string {
	if p.cur().Kind != TokOperator || p.cur().Text != "/" {
		return ""
	}
	save := p.pos
	p.advance()
	t := p.cur()
	if t.Kind == TokKeyword && (t.Text == "year" || t.Text == "years") {
		p.advance()
		return "/year"
	}
	if t.Kind == TokIdentifier && t.Text == "yr" {
		p.advance()
		return "/year"
	}
	p.pos = save
	return ""
}

func (p *Parser) parseNormal() (Value, bool) {
	p.advance() // "normally"
	p.expectKeyword("mean")
	p.consumeOptionalEquals()
	mean, ok := p.expectNumber()
	if !ok {
		return Value{}, false
	}
	p.expectKeyword("std")
	p.consumeOptionalEquals()
	std, ok := p.expectNumber()
	if !ok {
		return Value{}, false
	}
	units := p.parseUnitSuffix()
	node := &SamplingNode{Kind: SamplingNormal, Mean: mean, StdDev: std, Units: units}
	p.parseOptionalLimit(node)
	return Sampled(node), true
}

func (p *Parser) parseUniform() (Value, bool) {
	p.advance() // "uniformly"
	low, ok := p.expectNumber()
	if !ok {
		return Value{}, false
	}
	p.expectKeyword("to")
	high, ok := p.expectNumber()
	if !ok {
		return Value{}, false
	}
	units := p.parseUnitSuffix()
	node := &SamplingNode{Kind: SamplingUniform, Low: low, High: high, Units: units}
	p.parseOptionalLimit(node)
	return Sampled(node), true
}

func (p *Parser) parseOptionalLimit(node *SamplingNode) {
	if !p.isKeyword("limit") {
		return
	}
	p.advance()
	low, ok := p.expectNumber()
	if !ok {
		return
	}
	p.expectKeyword("to")
	high, ok := p.expectNumber()
	if !ok {
		return
	}
	node.HasLimit = true
	node.LimitLow = low
	node.LimitHigh = high
}

func (p *Parser) consumeOptionalEquals() {
	if p.cur().Kind == TokOperator && p.cur().Text == "=" {
		p.advance()
	}
}

func (p *Parser) parseOptionalYearMatcher() YearMatcher {
	switch {
	case p.isKeyword("during"):
		p.advance()
		if p.isKeyword("year") {
			p.advance()
			y, ok := p.expectNumber()
			if !ok {
				return AlwaysMatcher()
			}
			return DuringYear(int(y))
		}
		if p.isKeyword("years") {
			p.advance()
			a, ok := p.expectNumber()
			if !ok {
				return AlwaysMatcher()
			}
			p.expectKeyword("to")
			b, ok := p.expectNumber()
			if !ok {
				return AlwaysMatcher()
			}
			return DuringRange(int(a), int(b))
		}
		p.errf("expected 'year' or 'years' after 'during'")
		return AlwaysMatcher()

	case p.isKeyword("beginning"):
		p.advance()
		y, ok := p.expectNumber()
		if !ok {
			return AlwaysMatcher()
		}
		return Beginning(int(y))

	case p.cur().Kind == TokNumber && p.at(1).Kind == TokKeyword && p.at(1).Text == "onwards":
		y, _ := p.expectNumber()
		p.advance() // "onwards"
		return Onwards(int(y))

	default:
		return AlwaysMatcher()
	}
}

// Validate runs the duplicate-name checks the parser already performs
// during a single Parse call; exposed separately for callers assembling
// a ParsedProgram from another source (e.g. programmatic construction in
// tests) who still want the grammar's uniqueness invariants enforced.
func Validate(program *ParsedProgram) []error {
	var errs []error
	seenApps := map[string]bool{}
	for _, app := range program.Default.Applications {
		if seenApps[app.Name] {
			errs = append(errs, fmt.Errorf("duplicate application name %q", app.Name))
		}
		seenApps[app.Name] = true
		seenSubs := map[string]bool{}
		for _, sub := range app.Substances {
			if seenSubs[sub.Name] {
				errs = append(errs, fmt.Errorf("duplicate substance name %q in application %q", sub.Name, app.Name))
			}
			seenSubs[sub.Name] = true
		}
	}
	seenPolicies := map[string]bool{}
	for _, policy := range program.Policies {
		if seenPolicies[policy.Name] {
			errs = append(errs, fmt.Errorf("duplicate policy name %q", policy.Name))
		}
		seenPolicies[policy.Name] = true
	}
	seenSims := map[string]bool{}
	for _, sim := range program.Simulations {
		if seenSims[sim.Name] {
			errs = append(errs, fmt.Errorf("duplicate simulation name %q", sim.Name))
		}
		seenSims[sim.Name] = true
	}
	return errs
}
