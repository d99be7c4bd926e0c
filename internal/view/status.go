// Package view turns buffered telemetry and catalog data into render-ready
// view models. Nothing here performs I/O.
package view

import (
	"fmt"
	"math"

	"calibration_console/internal/models"
	"calibration_console/internal/telemetry"
)

// Axis floors and ceilings for the monitoring charts.
const (
	TempFloorC   = 15.0
	TempCeilingC = 24.0
	TempPaddingC = 4.0

	VoltMinMV = 0.0
	VoltMaxMV = 5000.0

	minTimeSpan = 10.0
	timeTail    = 0.1
)

// Range is an inclusive [min, max] axis range.
type Range [2]float64

// Trace is one plotted line or bar series.
type Trace struct {
	Name string    `json:"name"`
	Type string    `json:"type"`
	X    []float64 `json:"x"`
	Y    []float64 `json:"y"`
}

// Chart is a fully rebuilt plot.
type Chart struct {
	Traces []Trace `json:"traces"`
	XTitle string  `json:"x_title"`
	YTitle string  `json:"y_title"`
	XRange Range   `json:"x_range"`
	YRange Range   `json:"y_range"`
}

// Polyline is an SVG marker drawn over the tileboard layout.
type Polyline struct {
	Points      string `json:"points"`
	Stroke      string `json:"stroke"`
	Fill        string `json:"fill"`
	StrokeWidth string `json:"stroke_width"`
}

// Gantry is the coordinate label plus the overlay markers.
type Gantry struct {
	Label   string     `json:"label"`
	Overlay []Polyline `json:"overlay"`
}

// StatusView is everything the monitoring panel draws for one tick.
type StatusView struct {
	Uptime      string `json:"uptime"`
	Since       string `json:"since"`
	State       string `json:"state"`
	Temperature Chart  `json:"temperature"`
	Voltage     Chart  `json:"voltage"`
	Gantry      Gantry `json:"gantry"`
	Samples     int    `json:"samples"`
}

// FormatUptime renders seconds as HH:MM:SS. Hours do not wrap.
func FormatUptime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// GantryLabel renders the coordinates with one decimal each.
func GantryLabel(c [3]float64) string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f)", c[0], c[1], c[2])
}

// GantryOverlay returns the xy marker and the z marker for the layout SVG.
func GantryOverlay(c [3]float64) []Polyline {
	x, y, z := c[0], c[1], c[2]
	marker := func(points string) Polyline {
		return Polyline{Points: points, Stroke: "red", Fill: "red", StrokeWidth: "1px"}
	}
	return []Polyline{
		marker(fmt.Sprintf("%g,%g %g,%g %g,%g", x+20, 510-y, x+25, 525-y, x+30, 510-y)),
		marker(fmt.Sprintf("548,%g 538,%g 548,%g", 520-z, 525-z, 530-z)),
	}
}

// TimeAxis spans from the first sample to the last, and is at least 10 s wide.
func TimeAxis(s telemetry.Series) Range {
	if s.Len() == 0 {
		return Range{0, minTimeSpan}
	}
	first := s.Time[0]
	last := s.Time[len(s.Time)-1]
	return Range{first, math.Max(first+minTimeSpan, last+timeTail)}
}

// TemperatureAxis pads the observed extrema. The lower bound never exceeds
// TempFloorC and the upper bound never drops below TempCeilingC.
func TemperatureAxis(s telemetry.Series) Range {
	lo, hi := TempFloorC, TempCeilingC
	for _, series := range [][]float64{s.Temp1, s.Temp2} {
		for _, v := range series {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v+TempPaddingC)
		}
	}
	return Range{lo, hi}
}

// VoltageAxis is fixed.
func VoltageAxis() Range {
	return Range{VoltMinMV, VoltMaxMV}
}

// BuildStatusView rebuilds every monitoring surface from the full series.
func BuildStatusView(s telemetry.Series, state models.SessionState) StatusView {
	var now float64
	if s.Len() > 0 {
		now = s.Time[s.Len()-1]
	}
	xAxis := TimeAxis(s)
	const xTitle = "Time (since system start) [sec]"

	return StatusView{
		Uptime: "Uptime: " + FormatUptime(now),
		Since:  s.Start,
		State:  state.String(),
		Temperature: Chart{
			Traces: []Trace{
				{Name: "Pulser", Type: "scatter", X: s.Time, Y: s.Temp1},
				{Name: "Tileboard", Type: "scatter", X: s.Time, Y: s.Temp2},
			},
			XTitle: xTitle,
			YTitle: "Temperature [°C]",
			XRange: xAxis,
			YRange: TemperatureAxis(s),
		},
		Voltage: Chart{
			Traces: []Trace{
				{Name: "Pulser board Bias", Type: "scatter", X: s.Time, Y: s.Volt1},
				{Name: "Secondary", Type: "scatter", X: s.Time, Y: s.Volt2},
			},
			XTitle: xTitle,
			YTitle: "Voltage [mV]",
			XRange: xAxis,
			YRange: VoltageAxis(),
		},
		Gantry: Gantry{
			Label:   "Gantry coordinates: " + GantryLabel(s.Coord),
			Overlay: GantryOverlay(s.Coord),
		},
		Samples: s.Len(),
	}
}
