package service

import (
	"context"
	"fmt"

	"calibration_console/internal/telemetry"
	"calibration_console/internal/view"
)

// SettingsFetcher reads the rig's device settings report.
type SettingsFetcher interface {
	Settings(ctx context.Context) (map[string]any, error)
}

// MonitoringService is the read side of the console: the status view, the
// session mirror, debug plots and the device settings.
type MonitoringService struct {
	poller   *StatusPoller
	tracker  *SessionTracker
	debug    *DebugPlotter
	settings SettingsFetcher
}

func NewMonitoringService(poller *StatusPoller, tracker *SessionTracker, debug *DebugPlotter, settings SettingsFetcher) *MonitoringService {
	return &MonitoringService{poller: poller, tracker: tracker, debug: debug, settings: settings}
}

// LatestStatus returns the last rendered status view. Before the first poll it
// returns an empty baseline view carrying the current session state.
func (s *MonitoringService) LatestStatus() view.StatusView {
	if v, ok := s.poller.Latest(); ok {
		return v
	}
	return view.BuildStatusView(telemetry.Series{}, s.tracker.State())
}

// Session returns the session mirror and display board.
func (s *MonitoringService) Session() SessionSnapshot {
	return s.tracker.Snapshot()
}

// WatchDebug starts a debug histogram watcher for process.
func (s *MonitoringService) WatchDebug(ctx context.Context, process string) bool {
	return s.debug.Watch(ctx, process)
}

// LatestHistogram returns the last rendered histogram of process.
func (s *MonitoringService) LatestHistogram(process string) (view.HistogramView, bool) {
	return s.debug.Latest(process)
}

// RigSettings proxies the rig's current device settings.
func (s *MonitoringService) RigSettings(ctx context.Context) (map[string]any, error) {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("rig settings: %w", err)
	}
	return settings, nil
}
