package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"calibration_console/internal/logger"
	"calibration_console/internal/metrics"
	"calibration_console/internal/models"
	"calibration_console/internal/repository"
	"calibration_console/internal/telemetry"
	"calibration_console/internal/view"
)

// StatusFetcher reads the rig's status report.
type StatusFetcher interface {
	Status(ctx context.Context) (models.StatusSnapshot, error)
}

// Renderer receives every view model the console produces.
type Renderer interface {
	RenderStatus(v view.StatusView)
	RenderHistogram(v view.HistogramView)
	RenderSession(s SessionSnapshot)
}

// Archiver stores snapshots long term.
type Archiver interface {
	Archive(snap models.StatusSnapshot, at time.Time)
}

// PollerConfig sets the poll cadence.
type PollerConfig struct {
	Interval       time.Duration // delay after each fetch, whatever its outcome
	RequestTimeout time.Duration
}

// StatusPoller fetches the status report on a fixed delay, keeps the rolling
// telemetry window and renders the status view.
type StatusPoller struct {
	fetcher  StatusFetcher
	buffer   *telemetry.Buffer
	tracker  *SessionTracker
	renderer Renderer
	store    repository.StatusRepo
	archive  Archiver
	metrics  *metrics.Metrics
	log      *logger.Logger
	cfg      PollerConfig

	mu      sync.Mutex
	running bool
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}

	latestMu sync.RWMutex
	latest   *view.StatusView
}

func NewStatusPoller(fetcher StatusFetcher, buffer *telemetry.Buffer, tracker *SessionTracker, store repository.StatusRepo, m *metrics.Metrics, log *logger.Logger, cfg PollerConfig) *StatusPoller {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	return &StatusPoller{
		fetcher: fetcher,
		buffer:  buffer,
		tracker: tracker,
		store:   store,
		metrics: m,
		log:     log,
		cfg:     cfg,
	}
}

// SetRenderer attaches the view sink. Must be called before Start.
func (p *StatusPoller) SetRenderer(r Renderer) { p.renderer = r }

// SetArchive attaches an optional long-term sink. Must be called before Start.
func (p *StatusPoller) SetArchive(a Archiver) { p.archive = a }

// Start begins polling until Stop or until ctx is done. It returns false if
// the poller is already running.
func (p *StatusPoller) Start(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return false
	}
	p.gen++
	runCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(runCtx, p.gen, p.done)
	p.log.Infow("status_poller_started", "interval", p.cfg.Interval)
	return true
}

// Stop halts polling and waits for the in-flight fetch to resolve. Its result
// is discarded.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	done := p.done
	p.mu.Unlock()

	<-done
	p.log.Infow("status_poller_stopped")
}

// Running reports whether the poll loop is active.
func (p *StatusPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Latest returns the last rendered view.
func (p *StatusPoller) Latest() (view.StatusView, bool) {
	p.latestMu.RLock()
	defer p.latestMu.RUnlock()
	if p.latest == nil {
		return view.StatusView{}, false
	}
	return *p.latest, true
}

// Restore seeds Latest from the persisted snapshot so the status answers
// before the first poll after a restart.
func (p *StatusPoller) Restore(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	rec, found, err := p.store.Load(ctx)
	if err != nil || !found {
		return err
	}
	b := telemetry.NewBuffer()
	b.Append(rec.Snapshot)
	v := view.BuildStatusView(b.Snapshot(), rec.State)

	p.latestMu.Lock()
	if p.latest == nil {
		p.latest = &v
	}
	p.latestMu.Unlock()
	return nil
}

// ResetTelemetry clears the rolling window, e.g. on a new rig connection.
func (p *StatusPoller) ResetTelemetry() {
	p.buffer.Reset()
	p.metrics.BufferReset()
	p.log.Infow("telemetry_reset")
}

func (p *StatusPoller) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	defer func() {
		p.mu.Lock()
		if p.gen == gen {
			p.running = false
		}
		p.mu.Unlock()
	}()
	for {
		p.tick(ctx, gen)

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.Interval):
		}
	}
}

func (p *StatusPoller) tick(ctx context.Context, gen uint64) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	started := time.Now()
	snap, err := p.fetcher.Status(fetchCtx)
	cancel()

	if err != nil {
		if !p.current(gen) {
			return
		}
		reason := metrics.ReasonTransport
		if errors.Is(err, models.ErrMalformedPayload) {
			reason = metrics.ReasonMalformed
		}
		p.metrics.PollFailed("status", reason)
		p.log.Warnw("status_poll_failed", "reason", reason, "err", err)
		return
	}

	p.mu.Lock()
	if !p.running || p.gen != gen {
		p.mu.Unlock()
		p.log.Debugw("status_poll_discarded", "generation", gen)
		return
	}
	p.buffer.Append(snap)
	series := p.buffer.Snapshot()
	p.mu.Unlock()

	state := p.tracker.State()
	v := view.BuildStatusView(series, state)

	p.latestMu.Lock()
	p.latest = &v
	p.latestMu.Unlock()

	if p.renderer != nil {
		p.renderer.RenderStatus(v)
	}
	p.metrics.StatusPolled(time.Since(started).Seconds(), series.Len())

	now := time.Now().UTC()
	if p.archive != nil {
		p.archive.Archive(snap, now)
	}
	if p.store != nil {
		rec := models.StatusRecord{Snapshot: snap, State: state, FetchedAt: now}
		if err := p.store.Save(ctx, rec); err != nil && ctx.Err() == nil {
			p.log.Warnw("status_persist_failed", "err", err)
		}
	}
}

func (p *StatusPoller) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running && p.gen == gen
}
