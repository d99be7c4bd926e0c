package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedPayload marks a rig response that is missing required keys.
var ErrMalformedPayload = errors.New("malformed payload")

// StatusSnapshot is one polled reading of the rig telemetry.
type StatusSnapshot struct {
	Start string     `json:"start"`
	Time  float64    `json:"time"`  // seconds since rig start
	Temp1 float64    `json:"temp1"` // °C, pulser
	Temp2 float64    `json:"temp2"` // °C, tileboard
	Volt1 float64    `json:"volt1"` // mV
	Volt2 float64    `json:"volt2"` // mV
	Coord [3]float64 `json:"coord"` // gantry x, y, z
}

type rawStatus struct {
	Start *string   `json:"start"`
	Time  *float64  `json:"time"`
	Temp1 *float64  `json:"temp1"`
	Temp2 *float64  `json:"temp2"`
	Volt1 *float64  `json:"volt1"`
	Volt2 *float64  `json:"volt2"`
	Coord []float64 `json:"coord"`
}

// DecodeStatusSnapshot parses a status payload and rejects payloads with
// missing fields.
func DecodeStatusSnapshot(b []byte) (StatusSnapshot, error) {
	var raw rawStatus
	if err := json.Unmarshal(b, &raw); err != nil {
		return StatusSnapshot{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	missing := ""
	switch {
	case raw.Time == nil:
		missing = "time"
	case raw.Temp1 == nil:
		missing = "temp1"
	case raw.Temp2 == nil:
		missing = "temp2"
	case raw.Volt1 == nil:
		missing = "volt1"
	case raw.Volt2 == nil:
		missing = "volt2"
	case raw.Coord == nil:
		missing = "coord"
	}
	if missing != "" {
		return StatusSnapshot{}, fmt.Errorf("%w: missing %q", ErrMalformedPayload, missing)
	}
	if len(raw.Coord) != 3 {
		return StatusSnapshot{}, fmt.Errorf("%w: coord has %d values, want 3", ErrMalformedPayload, len(raw.Coord))
	}

	s := StatusSnapshot{
		Time:  *raw.Time,
		Temp1: *raw.Temp1,
		Temp2: *raw.Temp2,
		Volt1: *raw.Volt1,
		Volt2: *raw.Volt2,
	}
	if raw.Start != nil {
		s.Start = *raw.Start
	}
	copy(s.Coord[:], raw.Coord)
	return s, nil
}

// StatusRecord is the persisted copy of the most recent snapshot.
type StatusRecord struct {
	Snapshot  StatusSnapshot `json:"snapshot"`
	State     SessionState   `json:"state"`
	FetchedAt time.Time      `json:"fetched_at"`
}
