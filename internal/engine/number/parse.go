package number

import (
	"strconv"
	"strings"

	"github.com/example/kigalisim/internal/engine/engineerr"
)

// ParseFlexible parses a UK-format numeric literal: "," as thousands
// separator, "." as decimal point. European-style input ("," as decimal,
// "." as thousands) is rejected with a *engineerr.NumberFormatError
// suggesting the UK-format equivalent, per the DSL's bit-level-significant
// number grammar.
func ParseFlexible(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, engineerr.NewParseError(0, 0, "empty number literal")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}

	commaCount := strings.Count(s, ",")
	dotCount := strings.Count(s, ".")

	var normalized string
	switch {
	case commaCount == 0 && dotCount <= 1:
		// Plain integer or UK decimal, e.g. "1234" or "1234.5".
		normalized = s

	case commaCount > 0 && dotCount == 0:
		// Only commas present. Either UK thousands ("1,234") or a
		// European decimal written with a single comma ("1,5"). Resolve
		// using the trailing-group length: a lone comma whose trailing
		// group is not exactly three digits reads as a decimal comma and
		// is rejected; three-digit groups read as UK thousands.
		groups := strings.Split(s, ",")
		if commaCount == 1 && len(groups) == 2 && len(groups[1]) != 3 {
			return 0, europeanRejection(raw, s, ',')
		}
		if !allGroupsValid(groups) {
			return 0, europeanRejection(raw, s, ',')
		}
		normalized = strings.Join(groups, "")

	case commaCount == 0 && dotCount > 1:
		// Multiple dots: European thousands-dot style ("1.234.567").
		return 0, europeanRejection(raw, s, '.')

	case commaCount > 0 && dotCount == 1:
		// Both present: the last separator is the decimal point only if
		// it is a dot and comes after every comma (UK: "1,234.56").
		lastDot := strings.LastIndex(s, ".")
		lastComma := strings.LastIndex(s, ",")
		if lastDot < lastComma {
			// Dot appears before comma: European "1.234,56".
			return 0, europeanRejection(raw, s, '.')
		}
		intPart := s[:lastDot]
		fracPart := s[lastDot+1:]
		groups := strings.Split(intPart, ",")
		if !allGroupsValid(groups) {
			return 0, europeanRejection(raw, s, ',')
		}
		normalized = strings.Join(groups, "") + "." + fracPart

	default:
		return 0, europeanRejection(raw, s, '.')
	}

	val, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, engineerr.NewParseError(0, 0, "cannot parse number %q", raw)
	}
	if neg {
		val = -val
	}
	return val, nil
}

// allGroupsValid checks that every group after the first in a
// comma-split literal is exactly 3 digits, and the first group is one or
// more digits. An empty first group (a leading comma) is rejected; the
// first group's length is not capped at three.
func allGroupsValid(groups []string) bool {
	if len(groups) < 2 {
		return true
	}
	first := groups[0]
	if len(first) == 0 {
		return false
	}
	for _, r := range first {
		if r < '0' || r > '9' {
			return false
		}
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
		for _, r := range g {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

// europeanRejection builds the deterministic ErrNumberFormat with a
// best-effort UK-format suggestion: swap the roles of the separators.
func europeanRejection(original, cleaned string, decimalSep byte) error {
	suggestion := ""
	switch decimalSep {
	case ',':
		// "1,5" (European decimal comma) -> "1.5"
		suggestion = strings.Replace(cleaned, ",", ".", 1)
	case '.':
		// "1.234.567" or "1.234,56" -> swap dots/commas
		swapped := strings.Map(func(r rune) rune {
			switch r {
			case '.':
				return ','
			case ',':
				return '.'
			}
			return r
		}, cleaned)
		suggestion = swapped
	}
	return &engineerr.NumberFormatError{Literal: original, Suggestion: suggestion}
}
