package number

import (
	"strings"

	"github.com/example/kigalisim/internal/engine/engineerr"
)

// StateGetter supplies the contextual quantities a UnitConverter needs to
// resolve unit conversions that depend on the current scope: population,
// amortized per-unit volume, GHG/energy intensities, elapsed simulated
// years, and the percentage base for relative writes.
type StateGetter interface {
	GetPopulation() EngineNumber
	GetVolume() EngineNumber
	GetAmortizedUnitVolume() EngineNumber // kg/unit
	GetSubstanceConsumption() EngineNumber // kgCO2e/kg
	GetEnergyIntensity() EngineNumber      // kwh/kg or kwh/unit
	GetYearsElapsed() int
	GetGhgConsumption() EngineNumber
	GetEnergyConsumption() EngineNumber
	GetAmortizedUnitConsumption() EngineNumber
	// GetLastSpecifiedValue returns the base used to resolve a percentage
	// write against a named stream ("set x by N%").
	GetLastSpecifiedValue(stream string) EngineNumber
	// GetStreamValue returns the current value of a named stream, used as
	// the base for "cap/floor N%".
	GetStreamValue(stream string) EngineNumber
}

// UnitConverter converts an EngineNumber into a requested target unit,
// consulting a StateGetter for any context the conversion needs.
type UnitConverter struct {
	state StateGetter
}

// NewUnitConverter constructs a UnitConverter bound to the given state
// context. A fresh converter is cheap to build and is typically
// constructed once per command application against the active scope.
func NewUnitConverter(state StateGetter) *UnitConverter {
	return &UnitConverter{state: state}
}

// Convert converts n into targetUnits, resolving unit-dependent context
// (initial charge, intensities, percentage bases) through the bound
// StateGetter. The target unit string is matched case-insensitively and
// with "/ yr" folded to "/ year".
func (c *UnitConverter) Convert(n EngineNumber, targetUnits string) (EngineNumber, error) {
	src := normalizeUnitString(n.Units)
	dst := normalizeUnitString(targetUnits)

	if src == dst {
		return New(n.Value, targetUnits), nil
	}

	switch {
	case isMassUnit(src) && isMassUnit(dst):
		kg := MassToKg(n)
		return New(KgToUnits(kg, targetUnits), targetUnits), nil

	case isMassUnit(src) && isUnitsUnit(dst):
		charge := c.state.GetAmortizedUnitVolume()
		if charge.Value == 0 {
			return EngineNumber{}, engineerr.ErrZeroInitialCharge
		}
		kg := MassToKg(n)
		chargeKg := MassToKg(New(charge.Value, charge.Units))
		return New(kg/chargeKg, targetUnits), nil

	case isUnitsUnit(src) && isMassUnit(dst):
		charge := c.state.GetAmortizedUnitVolume()
		if charge.Value == 0 {
			return EngineNumber{}, engineerr.ErrZeroInitialCharge
		}
		chargeKg := MassToKg(New(charge.Value, charge.Units))
		kg := n.Value * chargeKg
		return New(KgToUnits(kg, targetUnits), targetUnits), nil

	case src == "tco2e" && dst == "kgco2e", src == "mkgco2e" && dst == "kgco2e":
		return New(TCO2eToKgCO2e(n.Value), targetUnits), nil

	case src == "kgco2e" && (dst == "tco2e" || dst == "mkgco2e"):
		return New(KgCO2eToTCO2e(n.Value), targetUnits), nil

	case src == "%" || src == "percent":
		return c.convertPercent(n, targetUnits)

	case dst == "%" || dst == "percent":
		return c.convertToPercent(n, targetUnits)

	default:
		// Units already match after normalization, or the pair is not
		// convertible; return as-is under the requested label so callers
		// that only need relabeling (e.g. "/yr" -> "/year") still work.
		return New(n.Value, targetUnits), nil
	}
}

// convertPercent resolves a percentage value against the implied base for
// the destination unit family: equipment population for "units", recharge
// mass for "kg", or the generic last-specified-value base otherwise.
func (c *UnitConverter) convertPercent(n EngineNumber, targetUnits string) (EngineNumber, error) {
	dst := normalizeUnitString(targetUnits)
	fraction := n.Value / 100

	switch {
	case isUnitsUnit(dst):
		pop := c.state.GetPopulation()
		return New(fraction*pop.Value, targetUnits), nil
	case isMassUnit(dst):
		base := c.state.GetAmortizedUnitConsumption()
		return New(fraction*base.Value, targetUnits), nil
	default:
		base := c.state.GetLastSpecifiedValue(dst)
		return New(fraction*base.Value, targetUnits), nil
	}
}

// convertToPercent is the inverse of convertPercent: express n as a
// percentage of the stream's current value (used by cap/floor N%).
func (c *UnitConverter) convertToPercent(n EngineNumber, targetUnits string) (EngineNumber, error) {
	base := c.state.GetStreamValue(normalizeUnitString(n.Units))
	if base.Value == 0 {
		return New(0, targetUnits), nil
	}
	return New(n.Value/base.Value*100, targetUnits), nil
}

func isMassUnit(u string) bool {
	switch u {
	case "kg", "mt", "g":
		return true
	}
	return false
}

func isUnitsUnit(u string) bool {
	return u == "unit" || u == "units"
}

// NormalizeRateUnit folds "/ yr" to "/ year" in a compound rate unit
// string (e.g. "% / yr" -> "% / year").
func NormalizeRateUnit(unit string) string {
	u := strings.ReplaceAll(unit, " ", "")
	u = strings.ReplaceAll(u, "/yr", "/year")
	return u
}
