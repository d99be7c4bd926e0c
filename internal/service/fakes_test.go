package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"calibration_console/internal/models"
	"calibration_console/internal/view"
)

type emitted struct {
	event   string
	payload any
}

// fakeEmitter records every emitted event.
type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
	err    error
}

func (f *fakeEmitter) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, emitted{event: event, payload: payload})
	return nil
}

func (f *fakeEmitter) sent() []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]emitted, len(f.events))
	copy(out, f.events)
	return out
}

// fakeActionRepo keeps audit records in memory.
type fakeActionRepo struct {
	mu      sync.Mutex
	records []models.ActionRecord
	listFn  func(from, to time.Time, action string) ([]models.ActionRecord, error)
}

func (f *fakeActionRepo) Append(_ context.Context, rec models.ActionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeActionRepo) List(_ context.Context, from, to time.Time, action string) ([]models.ActionRecord, error) {
	if f.listFn != nil {
		return f.listFn(from, to, action)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ActionRecord(nil), f.records...), nil
}

func (f *fakeActionRepo) all() []models.ActionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ActionRecord(nil), f.records...)
}

// fakeStatusRepo keeps the latest status record in memory.
type fakeStatusRepo struct {
	mu    sync.Mutex
	rec   models.StatusRecord
	found bool
	saves int
}

func (f *fakeStatusRepo) Save(_ context.Context, rec models.StatusRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rec, f.found = rec, true
	f.saves++
	return nil
}

func (f *fakeStatusRepo) Load(context.Context) (models.StatusRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rec, f.found, nil
}

// fakeRig answers every rig REST call from function fields.
type fakeRig struct {
	statusFn     func(ctx context.Context) (models.StatusSnapshot, error)
	boardsFn     func(ctx context.Context, kind string) (models.BoardCatalog, error)
	referencesFn func(ctx context.Context) (models.ReferenceList, error)
	debugFn      func(ctx context.Context, process string) (models.DebugHistogram, error)
	settingsFn   func(ctx context.Context) (map[string]any, error)
}

func (f *fakeRig) Status(ctx context.Context) (models.StatusSnapshot, error) {
	return f.statusFn(ctx)
}

func (f *fakeRig) Boards(ctx context.Context, kind string) (models.BoardCatalog, error) {
	return f.boardsFn(ctx, kind)
}

func (f *fakeRig) ValidReference(ctx context.Context) (models.ReferenceList, error) {
	return f.referencesFn(ctx)
}

func (f *fakeRig) DebugData(ctx context.Context, process string) (models.DebugHistogram, error) {
	return f.debugFn(ctx, process)
}

func (f *fakeRig) Settings(ctx context.Context) (map[string]any, error) {
	return f.settingsFn(ctx)
}

// recordingRenderer captures rendered views.
type recordingRenderer struct {
	mu         sync.Mutex
	statuses   []view.StatusView
	histograms []view.HistogramView
	sessions   []SessionSnapshot
}

func (r *recordingRenderer) RenderStatus(v view.StatusView) {
	r.mu.Lock()
	r.statuses = append(r.statuses, v)
	r.mu.Unlock()
}

func (r *recordingRenderer) RenderHistogram(v view.HistogramView) {
	r.mu.Lock()
	r.histograms = append(r.histograms, v)
	r.mu.Unlock()
}

func (r *recordingRenderer) RenderSession(s SessionSnapshot) {
	r.mu.Lock()
	r.sessions = append(r.sessions, s)
	r.mu.Unlock()
}

func (r *recordingRenderer) counts() (statuses, histograms, sessions int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses), len(r.histograms), len(r.sessions)
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %v: %v", v, err)
	}
	return b
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func sampleSnapshot(elapsed float64) models.StatusSnapshot {
	return models.StatusSnapshot{
		Start: "2024-03-01 09:00:00",
		Time:  elapsed,
		Temp1: 20.5,
		Temp2: 21.0,
		Volt1: 1200,
		Volt2: 800,
		Coord: [3]float64{100, 200, 10},
	}
}
