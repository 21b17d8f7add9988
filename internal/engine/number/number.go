// Package number implements the engine's tagged numeric value type
// (EngineNumber), canonical unit normalization, and the flexible
// UK-format number parser used by the DSL lexer.
package number

import (
	"fmt"
	"math"
	"strings"
)

// EngineNumber is a (value, units) pair with an optional preserved
// original literal, as it appeared in source text.
type EngineNumber struct {
	Value    float64
	Units    string
	Original string
}

// New constructs an EngineNumber with no preserved literal.
func New(value float64, units string) EngineNumber {
	return EngineNumber{Value: value, Units: units}
}

// WithOriginal returns a copy of n carrying the given source literal.
func (n EngineNumber) WithOriginal(src string) EngineNumber {
	n.Original = src
	return n
}

// IsZero reports whether the value is exactly zero, ignoring units.
func (n EngineNumber) IsZero() bool { return n.Value == 0 }

// HasEquipmentUnits reports whether n's units are equipment-unit
// denominated ("units" or "unit"), as opposed to mass or volume.
func (n EngineNumber) HasEquipmentUnits() bool {
	base := canonicalUnitFamily(n.Units)
	return base == familyUnits
}

// HasMassUnits reports whether n's units are mass denominated (kg, mt...).
func (n EngineNumber) HasMassUnits() bool {
	return canonicalUnitFamily(n.Units) == familyMass
}

// String renders the number in "value units" form.
func (n EngineNumber) String() string {
	return fmt.Sprintf("%s %s", formatValue(n.Value), n.Units)
}

// Equal reports numeric equality after normalizing both operands to the
// same canonical unit family, within an absolute tolerance of 1e-9.
// Two numbers with incompatible unit families are never equal.
func Equal(a, b EngineNumber) bool {
	af, aok := canonicalize(a)
	bf, bok := canonicalize(b)
	if !aok || !bok {
		return a.Units == b.Units && a.Value == b.Value
	}
	fa, fb := canonicalUnitFamily(a.Units), canonicalUnitFamily(b.Units)
	if fa == familyGHGTonne {
		fa = familyGHGMass
	}
	if fb == familyGHGTonne {
		fb = familyGHGMass
	}
	if fa != fb {
		return false
	}
	return math.Abs(af-bf) < 1e-9
}

type unitFamily int

const (
	familyUnknown unitFamily = iota
	familyMass
	familyUnits
	familyGHGMass  // kgCO2e / MkgCO2e
	familyGHGTonne // tCO2e
	familyEnergy   // kwh
	familyPercent
)

// canonicalUnitFamily classifies a unit string into a coarse family used
// for equality and HasX predicates. It does not handle compound rate
// units (kg/unit, %/year); callers that need those inspect the raw
// string themselves (e.g. after NormalizeRateUnit).
func canonicalUnitFamily(units string) unitFamily {
	u := normalizeUnitString(units)
	switch u {
	case "kg", "mt", "g":
		return familyMass
	case "unit", "units":
		return familyUnits
	case "kgco2e":
		return familyGHGMass
	case "tco2e", "mkgco2e":
		return familyGHGTonne
	case "kwh":
		return familyEnergy
	case "%", "percent":
		return familyPercent
	default:
		return familyUnknown
	}
}

// normalizeUnitString lowercases, strips surrounding whitespace, and
// folds "/ yr" to "/ year" so callers can compare normalized forms.
func normalizeUnitString(units string) string {
	u := strings.ToLower(strings.TrimSpace(units))
	u = strings.ReplaceAll(u, " ", "")
	u = strings.ReplaceAll(u, "/yr", "/year")
	return u
}

// canonicalize converts a value to a per-family base unit: kg for mass,
// units for equipment, kgCO2e for GHG mass families, kwh for energy,
// fraction-of-one for percent. It reports false for unrecognized or
// compound-rate units, which the caller must compare structurally instead.
func canonicalize(n EngineNumber) (float64, bool) {
	u := normalizeUnitString(n.Units)
	switch u {
	case "kg":
		return n.Value, true
	case "mt":
		return n.Value * 1000, true
	case "g":
		return n.Value / 1000, true
	case "unit", "units":
		return n.Value, true
	case "kgco2e":
		return n.Value, true
	case "tco2e", "mkgco2e":
		return n.Value * 1000, true
	case "kwh":
		return n.Value, true
	case "%", "percent":
		return n.Value / 100, true
	default:
		return 0, false
	}
}

// MassToKg converts a mass-family EngineNumber to kilograms. It panics
// (programmer error, not user error) if units is not a recognized mass
// unit; callers must check HasMassUnits first.
func MassToKg(n EngineNumber) float64 {
	switch normalizeUnitString(n.Units) {
	case "kg":
		return n.Value
	case "mt":
		return n.Value * 1000
	case "g":
		return n.Value / 1000
	default:
		panic(fmt.Sprintf("number: %q is not a mass unit", n.Units))
	}
}

// KgToUnits converts a kg value to a target mass unit string.
func KgToUnits(kg float64, units string) float64 {
	switch normalizeUnitString(units) {
	case "kg":
		return kg
	case "mt":
		return kg / 1000
	case "g":
		return kg * 1000
	default:
		return kg
	}
}

// TCO2eToKgCO2e converts a tCO2e (or MkgCO2e, an equivalent alias) value
// to kgCO2e.
func TCO2eToKgCO2e(v float64) float64 { return v * 1000 }

// KgCO2eToTCO2e converts a kgCO2e value to tCO2e.
func KgCO2eToTCO2e(v float64) float64 { return v / 1000 }

func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%d", int64(v))
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", v), "0"), ".")
}
