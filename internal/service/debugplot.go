package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"calibration_console/internal/logger"
	"calibration_console/internal/metrics"
	"calibration_console/internal/models"
	"calibration_console/internal/view"
)

// DebugFetcher reads the cached histogram of a debugging process.
type DebugFetcher interface {
	DebugData(ctx context.Context, process string) (models.DebugHistogram, error)
}

// DebugPlotter polls debug histograms while the rig session is busy. At most
// one watcher runs per process.
type DebugPlotter struct {
	fetcher  DebugFetcher
	tracker  *SessionTracker
	renderer Renderer
	metrics  *metrics.Metrics
	log      *logger.Logger
	cfg      PollerConfig

	mu       sync.Mutex
	watchers map[string]context.CancelFunc
	latest   map[string]view.HistogramView
	wg       sync.WaitGroup
}

func NewDebugPlotter(fetcher DebugFetcher, tracker *SessionTracker, m *metrics.Metrics, log *logger.Logger, cfg PollerConfig) *DebugPlotter {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	return &DebugPlotter{
		fetcher:  fetcher,
		tracker:  tracker,
		metrics:  m,
		log:      log,
		cfg:      cfg,
		watchers: map[string]context.CancelFunc{},
		latest:   map[string]view.HistogramView{},
	}
}

// SetRenderer attaches the view sink. Must be called before Watch.
func (d *DebugPlotter) SetRenderer(r Renderer) { d.renderer = r }

// Watch starts polling process until the session goes idle or ctx is done.
// It returns false when a watcher for process is already running.
func (d *DebugPlotter) Watch(ctx context.Context, process string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, active := d.watchers[process]; active {
		return false
	}
	wctx, cancel := context.WithCancel(ctx)
	d.watchers[process] = cancel

	d.wg.Add(1)
	go d.run(wctx, process)
	d.log.Infow("debug_watch_started", "process", process)
	return true
}

// Active reports whether a watcher for process is running.
func (d *DebugPlotter) Active(process string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.watchers[process]
	return ok
}

// Latest returns the last rendered histogram of process.
func (d *DebugPlotter) Latest(process string) (view.HistogramView, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.latest[process]
	return v, ok
}

// StopAll cancels every watcher and waits for them to exit.
func (d *DebugPlotter) StopAll() {
	d.mu.Lock()
	for _, cancel := range d.watchers {
		cancel()
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *DebugPlotter) run(ctx context.Context, process string) {
	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		if cancel, ok := d.watchers[process]; ok {
			cancel()
			delete(d.watchers, process)
		}
		d.mu.Unlock()
		d.log.Infow("debug_watch_stopped", "process", process)
	}()

	for {
		d.tick(ctx, process)

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.cfg.Interval):
		}
		if d.tracker.State() == models.StateIdle {
			return
		}
	}
}

func (d *DebugPlotter) tick(ctx context.Context, process string) {
	fetchCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	h, err := d.fetcher.DebugData(fetchCtx, process)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, models.ErrMalformedPayload) {
			d.metrics.PollFailed("debug", metrics.ReasonMalformed)
			d.log.Warnw("debug_data_wrong_format", "process", process, "err", err)
			return
		}
		d.metrics.PollFailed("debug", metrics.ReasonTransport)
		d.log.Warnw("debug_poll_failed", "process", process, "err", err)
		return
	}

	v := view.BuildHistogramView(process, h)
	d.mu.Lock()
	d.latest[process] = v
	d.mu.Unlock()

	if d.renderer != nil {
		d.renderer.RenderHistogram(v)
	}
	d.metrics.DebugPolled(process)
}
