package models

import (
	"encoding/json"
	"fmt"
)

// DebugHistogram is the cached readout histogram of a debugging process.
type DebugHistogram struct {
	BinContent []float64 `json:"bincontent"`
	BinEdge    []float64 `json:"binedge"`
	RMS        float64   `json:"rms"`
}

// DecodeDebugHistogram parses a debug_data payload. The rig answers with an
// empty object when nothing is cached, which is reported as malformed.
func DecodeDebugHistogram(b []byte) (DebugHistogram, error) {
	var raw struct {
		BinContent []float64 `json:"bincontent"`
		BinEdge    []float64 `json:"binedge"`
		RMS        *float64  `json:"rms"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return DebugHistogram{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if raw.BinContent == nil || raw.BinEdge == nil || raw.RMS == nil {
		return DebugHistogram{}, fmt.Errorf("%w: bincontent, binedge and rms are required", ErrMalformedPayload)
	}
	if len(raw.BinEdge) != len(raw.BinContent)+1 {
		return DebugHistogram{}, fmt.Errorf("%w: %d edges for %d bins", ErrMalformedPayload, len(raw.BinEdge), len(raw.BinContent))
	}
	return DebugHistogram{BinContent: raw.BinContent, BinEdge: raw.BinEdge, RMS: *raw.RMS}, nil
}
