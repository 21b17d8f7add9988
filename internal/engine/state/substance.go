package state

import "github.com/example/kigalisim/internal/engine/number"

// StreamName identifies one of the named per-year quantities tracked on a
// substance.
type StreamName string

const (
	StreamDomestic          StreamName = "domestic"
	StreamImport            StreamName = "import"
	StreamExport            StreamName = "export"
	StreamSales             StreamName = "sales" // derived: domestic + import + recycle
	StreamRecycle           StreamName = "recycle"
	StreamRecycleRecharge   StreamName = "recycleRecharge"
	StreamRecycleEol        StreamName = "recycleEol"
	StreamPriorEquipment    StreamName = "priorEquipment"
	StreamEquipment         StreamName = "equipment"
	StreamRetired           StreamName = "retired"
	StreamConsumption       StreamName = "consumption"
	StreamEnergy            StreamName = "energy"
	StreamRechargeEmissions StreamName = "rechargeEmissions"
	StreamEolEmissions      StreamName = "eolEmissions"
	StreamExportEmissions   StreamName = "exportEmissions"
)

// IsValid reports whether s is one of the recognized stream names.
func (s StreamName) IsValid() bool {
	switch s {
	case StreamDomestic, StreamImport, StreamExport, StreamSales, StreamRecycle,
		StreamRecycleRecharge, StreamRecycleEol, StreamPriorEquipment, StreamEquipment,
		StreamRetired, StreamConsumption, StreamEnergy, StreamRechargeEmissions,
		StreamEolEmissions, StreamExportEmissions:
		return true
	}
	return false
}

// Enableable reports whether s is one of the three streams that must be
// explicitly enabled before a non-zero write is accepted.
func (s StreamName) Enableable() bool {
	return s == StreamDomestic || s == StreamImport || s == StreamExport
}

// AssumeMode records a substance's assumption mode. The recalculator reads
// it only to pick the retirement base: under AssumeContinued retirement
// applies to the population after this year's new units. No mode carries
// forward, zeroes, or derives streams the DSL has not set this year.
type AssumeMode string

const (
	// AssumeContinued is the default mode of every new substance.
	AssumeContinued AssumeMode = "continued"
	// AssumeZero is declared but not set or read by the engine.
	AssumeZero AssumeMode = "zero"
	// AssumeRecharge is declared but not set or read by the engine.
	AssumeRecharge AssumeMode = "recharge"
)

// SalesStreamDistribution splits newly manufactured/imported volume
// between the domestic and import streams. PercentDomestic and
// PercentImport sum to 1.0 when both streams are enabled.
type SalesStreamDistribution struct {
	PercentDomestic float64
	PercentImport   float64
}

// RechargeSchedule defines the annual recharge of existing equipment:
// a percentage of population recharged each year, at a fixed kg/unit.
type RechargeSchedule struct {
	PercentPerYear float64
	KgPerUnit      float64
}

// RetirementPolicy defines the annual equipment retirement rate and
// whether retired units are immediately replaced (kept in `equipment`).
type RetirementPolicy struct {
	PercentPerYear  float64
	WithReplacement bool
}

// Streams holds every per-year EngineNumber tracked on a substance, in
// canonical base units (kg for mass streams, units for equipment/retired,
// tCO2e for emissions components, kwh for energy).
type Streams struct {
	Domestic          number.EngineNumber
	Import            number.EngineNumber
	Export            number.EngineNumber
	Recycle           number.EngineNumber
	RecycleRecharge   number.EngineNumber
	RecycleEol        number.EngineNumber
	PriorEquipment    number.EngineNumber
	Equipment         number.EngineNumber
	Retired           number.EngineNumber
	Consumption       number.EngineNumber
	Energy            number.EngineNumber
	RechargeEmissions number.EngineNumber
	EolEmissions      number.EngineNumber
	ExportEmissions   number.EngineNumber
}

// Sales computes the derived sales stream: domestic + import + recycle,
// all assumed to already be in kg.
func (s Streams) Sales() number.EngineNumber {
	return number.New(s.Domestic.Value+s.Import.Value+s.Recycle.Value, "kg")
}

// Get returns the stream's current value by name. StreamSales is computed
// on demand; StreamPriorEquipment/Equipment/Retired are unit-denominated;
// all others are kg or tCO2e/kwh per their kind.
func (s Streams) Get(name StreamName) number.EngineNumber {
	switch name {
	case StreamDomestic:
		return s.Domestic
	case StreamImport:
		return s.Import
	case StreamExport:
		return s.Export
	case StreamSales:
		return s.Sales()
	case StreamRecycle:
		return s.Recycle
	case StreamRecycleRecharge:
		return s.RecycleRecharge
	case StreamRecycleEol:
		return s.RecycleEol
	case StreamPriorEquipment:
		return s.PriorEquipment
	case StreamEquipment:
		return s.Equipment
	case StreamRetired:
		return s.Retired
	case StreamConsumption:
		return s.Consumption
	case StreamEnergy:
		return s.Energy
	case StreamRechargeEmissions:
		return s.RechargeEmissions
	case StreamEolEmissions:
		return s.EolEmissions
	case StreamExportEmissions:
		return s.ExportEmissions
	default:
		return number.EngineNumber{}
	}
}

// Set assigns a stream's value by name. Setting StreamSales is not
// supported here; callers redistribute sales writes into domestic/import
// before calling Set (see SimulationState.Update).
func (s *Streams) Set(name StreamName, value number.EngineNumber) {
	switch name {
	case StreamDomestic:
		s.Domestic = value
	case StreamImport:
		s.Import = value
	case StreamExport:
		s.Export = value
	case StreamRecycle:
		s.Recycle = value
	case StreamRecycleRecharge:
		s.RecycleRecharge = value
	case StreamRecycleEol:
		s.RecycleEol = value
	case StreamPriorEquipment:
		s.PriorEquipment = value
	case StreamEquipment:
		s.Equipment = value
	case StreamRetired:
		s.Retired = value
	case StreamConsumption:
		s.Consumption = value
	case StreamEnergy:
		s.Energy = value
	case StreamRechargeEmissions:
		s.RechargeEmissions = value
	case StreamEolEmissions:
		s.EolEmissions = value
	case StreamExportEmissions:
		s.ExportEmissions = value
	}
}

// SubstanceState holds the full mutable state for one (application,
// substance) pair: streams, parameters, and policy state. It is created
// lazily by SimulationState.EnsureSubstance and mutated only through
// Update and the recalculator.
type SubstanceState struct {
	Application string
	Substance   string

	Streams Streams

	GhgIntensity    number.EngineNumber // kgCO2e / kg
	EnergyIntensity number.EngineNumber // kwh/unit or kwh/kg
	InitialCharge   map[StreamName]number.EngineNumber // kg/unit, keyed by domestic/import
	Recharge        RechargeSchedule
	Retirement      RetirementPolicy

	EnabledStreams map[StreamName]bool
	LastSpecified  map[StreamName]number.EngineNumber
	SalesIntentFreshlySet bool
	AssumeMode            AssumeMode
	Distribution          SalesStreamDistribution
}

// NewSubstanceState builds a zeroed SubstanceState for (application,
// substance), matching the defaults in section 3 of the data model: every
// stream at 0 in canonical units, no streams enabled, assumeMode continued,
// and an even 50/50 sales distribution until the interpreter sets one.
func NewSubstanceState(application, substance string) *SubstanceState {
	zeroKg := number.New(0, "kg")
	zeroUnits := number.New(0, "units")
	zeroTco2e := number.New(0, "tCO2e")
	zeroKwh := number.New(0, "kwh")

	return &SubstanceState{
		Application: application,
		Substance:   substance,
		Streams: Streams{
			Domestic:          zeroKg,
			Import:            zeroKg,
			Export:            zeroKg,
			Recycle:           zeroKg,
			RecycleRecharge:   zeroKg,
			RecycleEol:        zeroKg,
			PriorEquipment:    zeroUnits,
			Equipment:         zeroUnits,
			Retired:           zeroUnits,
			Consumption:       zeroTco2e,
			Energy:            zeroKwh,
			RechargeEmissions: zeroTco2e,
			EolEmissions:      zeroTco2e,
			ExportEmissions:   zeroTco2e,
		},
		InitialCharge:  make(map[StreamName]number.EngineNumber),
		EnabledStreams: make(map[StreamName]bool),
		LastSpecified:  make(map[StreamName]number.EngineNumber),
		AssumeMode:     AssumeContinued,
		Distribution:   SalesStreamDistribution{PercentDomestic: 0.5, PercentImport: 0.5},
	}
}

// IsStreamEnabled reports whether the given stream has been enabled.
// Non-enableable streams (derived/computed ones) are always considered
// enabled.
func (s *SubstanceState) IsStreamEnabled(name StreamName) bool {
	if !name.Enableable() {
		return true
	}
	return s.EnabledStreams[name]
}

// MarkStreamEnabled adds name to the enabled set.
func (s *SubstanceState) MarkStreamEnabled(name StreamName) {
	s.EnabledStreams[name] = true
}

// SetLastSpecifiedValue records the user's last explicit non-percentage
// intent for a stream. Percentage-valued writes must never call this
// (invariant I6); on any non-percent write to domestic, import, export,
// or sales it also sets SalesIntentFreshlySet.
func (s *SubstanceState) SetLastSpecifiedValue(name StreamName, value number.EngineNumber) {
	s.LastSpecified[name] = value
	switch name {
	case StreamDomestic, StreamImport, StreamExport, StreamSales:
		s.SalesIntentFreshlySet = true
	}
}

// GetLastSpecifiedValue returns the last recorded explicit value for a
// stream, or the stream's current value if none was ever recorded.
func (s *SubstanceState) GetLastSpecifiedValue(name StreamName) number.EngineNumber {
	if v, ok := s.LastSpecified[name]; ok {
		return v
	}
	return s.Streams.Get(name)
}

// ResetSalesIntentFlag clears SalesIntentFreshlySet, called once the
// recalculator has consumed it for the current year.
func (s *SubstanceState) ResetSalesIntentFlag() { s.SalesIntentFreshlySet = false }

// IncrementYear rolls equipment forward into priorEquipment and resets
// per-year flow streams to zero, preserving cumulative totals (retired).
func (s *SubstanceState) IncrementYear() {
	s.Streams.PriorEquipment = s.Streams.Equipment
	s.Streams.Domestic = number.New(0, "kg")
	s.Streams.Import = number.New(0, "kg")
	s.Streams.Export = number.New(0, "kg")
	s.Streams.Recycle = number.New(0, "kg")
	s.Streams.RecycleRecharge = number.New(0, "kg")
	s.Streams.RecycleEol = number.New(0, "kg")
	s.Streams.Consumption = number.New(0, "tCO2e")
	s.Streams.Energy = number.New(0, "kwh")
	s.Streams.RechargeEmissions = number.New(0, "tCO2e")
	s.Streams.EolEmissions = number.New(0, "tCO2e")
	s.Streams.ExportEmissions = number.New(0, "tCO2e")
	// Equipment and retired carry forward unchanged; retired is cumulative
	// monotone (I3), equipment is re-derived by the recalculator this year.
}
