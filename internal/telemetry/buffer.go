// Package telemetry keeps the bounded status history rendered by the
// monitoring charts.
package telemetry

import (
	"sync"

	"calibration_console/internal/models"
)

// MaxSamples bounds every series; about ten minutes at the default cadence.
const MaxSamples = 600

// Series is an immutable copy of the buffer taken for rendering.
type Series struct {
	Start string
	Time  []float64
	Temp1 []float64
	Temp2 []float64
	Volt1 []float64
	Volt2 []float64
	Coord [3]float64
}

// Len returns the number of samples in the series.
func (s Series) Len() int { return len(s.Time) }

// Buffer holds five parallel time-ordered series of equal length.
type Buffer struct {
	mu    sync.RWMutex
	max   int
	start string
	time  []float64
	temp1 []float64
	temp2 []float64
	volt1 []float64
	volt2 []float64
	coord [3]float64
}

// NewBuffer returns a buffer capped at MaxSamples.
func NewBuffer() *Buffer {
	return NewBufferWithLimit(MaxSamples)
}

// NewBufferWithLimit returns a buffer with a custom cap; limit < 1 falls back to MaxSamples.
func NewBufferWithLimit(limit int) *Buffer {
	if limit < 1 {
		limit = MaxSamples
	}
	return &Buffer{max: limit}
}

// Append pushes a snapshot onto every series, then drops the oldest sample
// from all of them once the length reaches the cap. Start and Coord are
// replaced, not accumulated.
func (b *Buffer) Append(s models.StatusSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.start = s.Start
	b.coord = s.Coord

	b.time = append(b.time, s.Time)
	b.temp1 = append(b.temp1, s.Temp1)
	b.temp2 = append(b.temp2, s.Temp2)
	b.volt1 = append(b.volt1, s.Volt1)
	b.volt2 = append(b.volt2, s.Volt2)

	if len(b.time) >= b.max {
		b.time = dropOldest(b.time)
		b.temp1 = dropOldest(b.temp1)
		b.temp2 = dropOldest(b.temp2)
		b.volt1 = dropOldest(b.volt1)
		b.volt2 = dropOldest(b.volt2)
	}
}

// Len returns the current series length.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.time)
}

// Snapshot returns a deep copy safe to hand to renderers.
func (b *Buffer) Snapshot() Series {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Series{
		Start: b.start,
		Time:  cloneFloats(b.time),
		Temp1: cloneFloats(b.temp1),
		Temp2: cloneFloats(b.temp2),
		Volt1: cloneFloats(b.volt1),
		Volt2: cloneFloats(b.volt2),
		Coord: b.coord,
	}
}

// Reset clears all cached monitor data, e.g. after a new rig connection.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.start = ""
	b.time = nil
	b.temp1 = nil
	b.temp2 = nil
	b.volt1 = nil
	b.volt2 = nil
	b.coord = [3]float64{}
}

// dropOldest shifts left in place so the backing array does not grow unbounded.
func dropOldest(s []float64) []float64 {
	if len(s) == 0 {
		return s
	}
	copy(s, s[1:])
	return s[:len(s)-1]
}

func cloneFloats(s []float64) []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	return out
}
