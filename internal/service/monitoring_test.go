package service

import (
	"context"
	"errors"
	"testing"

	"calibration_console/internal/models"
	"calibration_console/internal/telemetry"
)

func TestMonitoringService_BaselineBeforeFirstPoll(t *testing.T) {
	tr := busyTracker(t)
	poller := NewStatusPoller(nil, telemetry.NewBuffer(), tr, nil, nil, nil, fastPoll)
	m := NewMonitoringService(poller, tr, nil, nil)

	v := m.LatestStatus()
	if v.Samples != 0 || v.Uptime != "Uptime: 00:00:00" || v.State != models.StateRunProcess.String() {
		t.Fatalf("baseline = %+v", v)
	}
	if v.Temperature.XRange[1] != 10 {
		t.Fatalf("baseline time axis = %v", v.Temperature.XRange)
	}
}

func TestMonitoringService_Session(t *testing.T) {
	tr := NewSessionTracker(nil)
	_ = tr.Apply(models.EventSyncSessionType, raw(t, "system"))
	m := NewMonitoringService(nil, tr, nil, nil)

	if got := m.Session().SessionType; got != "system" {
		t.Fatalf("SessionType = %q", got)
	}
}

func TestMonitoringService_RigSettings(t *testing.T) {
	boom := errors.New("timeout")
	rig := &fakeRig{settingsFn: func(context.Context) (map[string]any, error) {
		return nil, boom
	}}
	m := NewMonitoringService(nil, NewSessionTracker(nil), nil, rig)
	if _, err := m.RigSettings(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("want wrapped error, got %v", err)
	}

	rig.settingsFn = func(context.Context) (map[string]any, error) {
		return map[string]any{"drs": map[string]any{"drs-samples": 1024.0}}, nil
	}
	got, err := m.RigSettings(context.Background())
	if err != nil || got["drs"] == nil {
		t.Fatalf("RigSettings = %v, %v", got, err)
	}
}

func TestMonitoringService_WatchDebug(t *testing.T) {
	rig := &fakeRig{debugFn: func(context.Context, string) (models.DebugHistogram, error) {
		return histogram(), nil
	}}
	tr := NewSessionTracker(nil)
	debug := NewDebugPlotter(rig, tr, nil, nil, fastPoll)
	m := NewMonitoringService(nil, tr, debug, rig)

	if !m.WatchDebug(context.Background(), "lowlight") {
		t.Fatalf("WatchDebug refused")
	}
	waitFor(t, "histogram", func() bool {
		_, ok := m.LatestHistogram("lowlight")
		return ok
	})
	debug.StopAll()
}
