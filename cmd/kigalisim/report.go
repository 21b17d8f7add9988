package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/example/kigalisim/internal/engine/lang"
	"github.com/example/kigalisim/internal/engine/number"
	"github.com/example/kigalisim/internal/engine/runner"
)

// printer renders thousands-grouped numbers in the PDF table, grounded on
// the teacher's transitive golang.org/x/text dependency -- used here for
// the formatting half of locale-aware number rendering (parsing stays
// hand-written in internal/engine/number, see DESIGN.md).
var printer = message.NewPrinter(language.BritishEnglish)

// reportCmd renders a one-page PDF summary of a scenario's yearly totals
// (sales, equipment, GHG consumption), following the teacher's
// compliance.ExportSummaryToPDF use of gofpdf.
func reportCmd(logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	out := fs.String("o", "", "output PDF path")
	simulation := fs.String("simulation", "", "scenario name (default: first declared)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *out == "" || fs.NArg() != 1 {
		fmt.Println("usage: kigalisim report -o <out.pdf> [--simulation=name] <script>")
		return exitUsage
	}

	src, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		logger.Error("read script failed", "error", err)
		return exitIOError
	}

	result := lang.Parse(string(src))
	if !result.OK() {
		for _, e := range result.Errors {
			fmt.Fprintln(os.Stderr, e)
		}
		return exitParseError
	}
	prog := result.Program

	name := *simulation
	if name == "" {
		if len(prog.Simulations) == 0 {
			fmt.Fprintln(os.Stderr, "kigalisim: script declares no simulations")
			return exitRuntimeError
		}
		name = prog.Simulations[0].Name
	}

	rows, err := runScenario(prog, name, 0, 0, 0, &progressPublisher{})
	if err != nil {
		logger.Error("scenario failed", "scenario", name, "error", err)
		return exitRuntimeError
	}

	if err := renderSummaryPDF(*out, name, rows); err != nil {
		logger.Error("render pdf failed", "error", err)
		return exitIOError
	}

	logger.Info("report generated", "scenario", name, "output", *out)
	return exitOK
}

type yearTotal struct {
	year           int
	salesKg        float64
	equipmentUnits float64
	ghgTCO2e       float64
}

func renderSummaryPDF(path, scenario string, rows []runner.EngineResult) error {
	totals := summarizeByYear(rows)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s scenario summary", scenario), false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Kigalisim Scenario Summary", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Scenario: %s", scenario), "", 1, "", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(30, 8, "Year", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 8, "Sales (kg)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 8, "Equipment (units)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 8, "GHG (tCO2e)", "1", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, t := range totals {
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", t.year), "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 7, printer.Sprintf("%.2f", t.salesKg), "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 7, printer.Sprintf("%.2f", t.equipmentUnits), "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 7, printer.Sprintf("%.3f", t.ghgTCO2e), "1", 1, "R", false, 0, "")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := pdf.Output(f); err != nil {
		return fmt.Errorf("pdf output: %w", err)
	}
	return nil
}

func summarizeByYear(rows []runner.EngineResult) []yearTotal {
	byYear := make(map[int]*yearTotal)
	for _, r := range rows {
		t, ok := byYear[r.Year]
		if !ok {
			t = &yearTotal{year: r.Year}
			byYear[r.Year] = t
		}
		t.salesKg += number.MassToKg(r.Sales)
		t.equipmentUnits += r.Population.Value
		t.ghgTCO2e += r.GhgConsumption.Value
	}

	totals := make([]yearTotal, 0, len(byYear))
	for _, t := range byYear {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].year < totals[j].year })
	return totals
}
