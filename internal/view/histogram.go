package view

import (
	"fmt"

	"calibration_console/internal/models"
)

// HistogramView is the debug readout bar chart.
type HistogramView struct {
	Process string  `json:"process"`
	Legend  string  `json:"legend"`
	Bars    Trace   `json:"bars"`
	XTitle  string  `json:"x_title"`
	YTitle  string  `json:"y_title"`
	RMS     float64 `json:"rms"`
}

// BuildHistogramView plots bin content against bin centres.
func BuildHistogramView(process string, h models.DebugHistogram) HistogramView {
	x := make([]float64, len(h.BinContent))
	for i := range h.BinContent {
		if i+1 < len(h.BinEdge) {
			x[i] = (h.BinEdge[i] + h.BinEdge[i+1]) / 2.0
		}
	}
	y := make([]float64, len(h.BinContent))
	copy(y, h.BinContent)

	legend := fmt.Sprintf("RMS:%.2f", h.RMS)
	return HistogramView{
		Process: process,
		Legend:  legend,
		Bars:    Trace{Name: legend, Type: "bar", X: x, Y: y},
		XTitle:  "Readout value  [mV-ns]",
		YTitle:  "Events",
		RMS:     h.RMS,
	}
}
