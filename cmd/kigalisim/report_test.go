package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/kigalisim/internal/engine/number"
	"github.com/example/kigalisim/internal/engine/runner"
)

func TestSummarizeByYearAggregatesAndSorts(t *testing.T) {
	rows := []runner.EngineResult{
		{Year: 2021, Sales: number.New(100, "kg"), Population: number.New(10, "units"), GhgConsumption: number.New(1, "tCO2e")},
		{Year: 2020, Sales: number.New(50, "kg"), Population: number.New(5, "units"), GhgConsumption: number.New(0.5, "tCO2e")},
		{Year: 2020, Sales: number.New(25, "kg"), Population: number.New(2, "units"), GhgConsumption: number.New(0.25, "tCO2e")},
	}

	totals := summarizeByYear(rows)
	if len(totals) != 2 {
		t.Fatalf("expected 2 distinct years, got %d", len(totals))
	}
	if totals[0].year != 2020 || totals[1].year != 2021 {
		t.Errorf("expected years sorted ascending, got %+v", totals)
	}
	if totals[0].salesKg != 75 {
		t.Errorf("expected 2020 sales aggregated to 75kg, got %v", totals[0].salesKg)
	}
	if totals[0].equipmentUnits != 7 {
		t.Errorf("expected 2020 equipment aggregated to 7 units, got %v", totals[0].equipmentUnits)
	}
}

func TestRenderSummaryPDFWritesFile(t *testing.T) {
	rows := []runner.EngineResult{
		{Year: 2020, Sales: number.New(100, "kg"), Population: number.New(10, "units"), GhgConsumption: number.New(1, "tCO2e")},
	}
	path := filepath.Join(t.TempDir(), "out.pdf")
	if err := renderSummaryPDF(path, "baseline", rows); err != nil {
		t.Fatalf("renderSummaryPDF returned error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected output file to exist: %v", err)
	}
	if info.Size() == 0 {
		t.Error("expected a non-empty PDF file")
	}
}
