package view

import (
	"testing"

	"calibration_console/internal/models"
)

func TestBuildBoardOptions_HeaderOnFirstOnly(t *testing.T) {
	c := models.BoardCatalog{
		"tb_v2": {Name: "Tileboard v2", Number: 64},
		"sipm":  {Name: "SiPM array", Number: 8},
	}
	got := BuildBoardOptions(models.BoardKindStandard, c)

	if !got.RequiresBoardID {
		t.Fatalf("standard list must request a board id field")
	}
	if len(got.Options) != 2 {
		t.Fatalf("want 2 options, got %d", len(got.Options))
	}
	if got.Options[0].Value != "sipm" || got.Options[0].Header != "Board type" {
		t.Fatalf("first option: %+v", got.Options[0])
	}
	if got.Options[1].Header != "" || got.Options[1].Label != "Tileboard v2 (64)" {
		t.Fatalf("second option: %+v", got.Options[1])
	}
	if !got.Contains("tb_v2") || got.Contains("missing") {
		t.Fatalf("Contains misbehaves")
	}

	if BuildBoardOptions(models.BoardKindSystem, c).RequiresBoardID {
		t.Fatalf("system list must not request a board id field")
	}
}

func TestBuildReferenceOptions_KeepsOrder(t *testing.T) {
	l := models.ReferenceList{Valid: []models.Reference{
		{Tag: "tb_20240101-1000", BoardType: "tb", Time: "2024/01/01/ 10:00:00"},
		{Tag: "tb_20240101-0900", BoardType: "tb", Time: "2024/01/01/ 09:00:00"},
	}}
	got := BuildReferenceOptions(l)
	if got.Options[0].Value != "tb_20240101-1000" || got.Options[0].Header != "Reference" {
		t.Fatalf("first: %+v", got.Options[0])
	}
	if got.Options[1].Header != "" || got.Options[1].Label != "tb (2024/01/01/ 09:00:00)" {
		t.Fatalf("second: %+v", got.Options[1])
	}
}

func TestBuildHistogramView(t *testing.T) {
	v := BuildHistogramView("debug_drs", models.DebugHistogram{
		BinContent: []float64{3, 5},
		BinEdge:    []float64{0, 2, 4},
		RMS:        1.234,
	})
	if v.Legend != "RMS:1.23" {
		t.Fatalf("legend: %q", v.Legend)
	}
	if v.Bars.X[0] != 1 || v.Bars.X[1] != 3 {
		t.Fatalf("bin centres: %v", v.Bars.X)
	}
	if v.Bars.Type != "bar" || v.Process != "debug_drs" {
		t.Fatalf("unexpected view: %+v", v)
	}
}
