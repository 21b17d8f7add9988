// Package runner implements the scenario runner: given a ParsedProgram
// and a scenario name, it iterates simulated years, applies the default
// stanza plus stacked policies in declared order, and yields one
// EngineResult per (application, substance, year).
package runner

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/example/kigalisim/internal/engine/number"
)

// EngineResult is one row of the engine's output: every observable
// stream and derived metric for a single (scenario, trial, year,
// application, substance) combination, each as a (value, unit) pair.
type EngineResult struct {
	Scenario    string
	Trial       int
	Year        int
	Application string
	Substance   string

	Domestic        number.EngineNumber
	Import          number.EngineNumber
	Export          number.EngineNumber
	Sales           number.EngineNumber
	Recycle         number.EngineNumber
	RecycleRecharge number.EngineNumber
	RecycleEol      number.EngineNumber

	Population      number.EngineNumber
	PriorPopulation number.EngineNumber
	Retired         number.EngineNumber

	RechargeEmissions number.EngineNumber
	EolEmissions      number.EngineNumber
	ExportEmissions   number.EngineNumber
	GhgConsumption    number.EngineNumber
	Energy            number.EngineNumber
}

// CSVHeader is the fixed column order for the scenario runner's default
// CSV serialization. It omits sales/recycleRecharge/recycleEol, which are
// carried on EngineResult but are not part of the interop-stable format.
var CSVHeader = []string{
	"scenario", "trial", "year", "application", "substance",
	"domestic_kg", "import_kg", "export_kg", "recycle_kg",
	"population_units", "priorPopulation_units", "retired_units",
	"rechargeEmissions_tCO2e", "eolEmissions_tCO2e", "exportEmissions_tCO2e",
	"ghgConsumption_tCO2e", "energy_kwh",
}

// Row renders r as the string fields of one CSV record, in CSVHeader order.
func (r EngineResult) Row() []string {
	return []string{
		r.Scenario,
		fmt.Sprintf("%d", r.Trial),
		fmt.Sprintf("%d", r.Year),
		r.Application,
		r.Substance,
		formatKg(r.Domestic),
		formatKg(r.Import),
		formatKg(r.Export),
		formatKg(r.Recycle),
		formatFloat(r.Population.Value),
		formatFloat(r.PriorPopulation.Value),
		formatFloat(r.Retired.Value),
		formatTco2e(r.RechargeEmissions),
		formatTco2e(r.EolEmissions),
		formatTco2e(r.ExportEmissions),
		formatTco2e(r.GhgConsumption),
		formatFloat(r.Energy.Value),
	}
}

func formatKg(n number.EngineNumber) string {
	if n.Units == "" {
		return formatFloat(n.Value)
	}
	return formatFloat(number.MassToKg(n))
}

func formatTco2e(n number.EngineNumber) string {
	switch n.Units {
	case "kgCO2e":
		return formatFloat(number.KgCO2eToTCO2e(n.Value))
	default:
		return formatFloat(n.Value)
	}
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}

// WriteCSV writes header followed by every row in rows to w, using
// RFC-4180 escaping via encoding/csv.
func WriteCSV(w io.Writer, rows []EngineResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
