package service

import (
	"context"

	"calibration_console/internal/logger"
	"calibration_console/internal/metrics"
	"calibration_console/internal/models"
	"calibration_console/internal/repository"
	"calibration_console/internal/telemetry"
	"calibration_console/internal/view"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Actions turns operator input into rig commands.
type Actions interface {
	RunSystemCalibration(ctx context.Context, operatorID int, f SystemCalibrationForm) (models.CommandEnvelope, error)
	RunStandardCalibration(ctx context.Context, operatorID int, f StandardCalibrationForm) (models.CommandEnvelope, error)
	SignOff(ctx context.Context, operatorID int, sessionType string, f SignoffForm) (models.CommandEnvelope, error)
	RerunSingle(ctx context.Context, operatorID int, f RerunForm) (models.CommandEnvelope, error)
	RawCommand(ctx context.Context, operatorID int, f RawCommandForm) (models.CommandEnvelope, error)
	UpdateSettings(ctx context.Context, operatorID int, kind string, body []byte) (models.CommandEnvelope, error)
	StartDRSCalibration(ctx context.Context, operatorID int) (models.CommandEnvelope, error)
	CompleteUserAction(ctx context.Context, operatorID int) error
}

// Monitoring exposes read-only rig state.
type Monitoring interface {
	LatestStatus() view.StatusView
	Session() SessionSnapshot
	WatchDebug(ctx context.Context, process string) bool
	LatestHistogram(process string) (view.HistogramView, bool)
	RigSettings(ctx context.Context) (map[string]any, error)
}

// Catalog exposes the calibration form option lists.
type Catalog interface {
	Options(kind string) (view.OptionList, bool)
	References() view.OptionList
	RefreshAll(ctx context.Context) error
}

// ActionLog lists the audit log of emitted commands.
type ActionLog interface {
	List(ctx context.Context, f LogFilter) ([]models.ActionRecord, error)
}

// RigClient is everything the services read from the rig server.
type RigClient interface {
	StatusFetcher
	CatalogFetcher
	DebugFetcher
	SettingsFetcher
}

// Deps are the non-repository collaborators of the services.
type Deps struct {
	Rig        RigClient
	Emitter    Emitter
	Metrics    *metrics.Metrics
	Log        *logger.Logger
	Auth       AuthConfig
	StatusPoll PollerConfig
	DebugPoll  PollerConfig
	MaxSamples int
}

// Service aggregates the interfaces the HTTP layer uses, plus the long-running
// components cmd needs to start and stop.
type Service struct {
	Authorization
	Actions
	Monitoring
	Catalog
	ActionLog

	Tracker    *SessionTracker
	Poller     *StatusPoller
	Debug      *DebugPlotter
	Dispatcher *ActionDispatcher
	Catalogs   *CatalogService
}

func NewService(repos *repository.Repository, deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	buffer := telemetry.NewBuffer()
	if deps.MaxSamples > 0 {
		buffer = telemetry.NewBufferWithLimit(deps.MaxSamples)
	}

	tracker := NewSessionTracker(log.Named("session"))
	catalogs := NewCatalogService(deps.Rig, log.Named("catalog"))
	dispatcher := NewActionDispatcher(deps.Emitter, tracker, repos.ActionRepo, deps.Metrics, log.Named("dispatcher"))
	dispatcher.SetCatalog(catalogs)
	poller := NewStatusPoller(deps.Rig, buffer, tracker, repos.StatusRepo, deps.Metrics, log.Named("poller"), deps.StatusPoll)
	debug := NewDebugPlotter(deps.Rig, tracker, deps.Metrics, log.Named("debug"), deps.DebugPoll)

	return &Service{
		Authorization: NewAuthService(repos.Auth, deps.Auth),
		Actions:       dispatcher,
		Monitoring:    NewMonitoringService(poller, tracker, debug, deps.Rig),
		Catalog:       catalogs,
		ActionLog:     NewActionLogService(repos.ActionRepo),

		Tracker:    tracker,
		Poller:     poller,
		Debug:      debug,
		Dispatcher: dispatcher,
		Catalogs:   catalogs,
	}
}

// SetRenderer attaches the view sink to every producer of view models and
// forwards session changes to it until ctx is done.
func (s *Service) SetRenderer(ctx context.Context, r Renderer) {
	s.Poller.SetRenderer(r)
	s.Debug.SetRenderer(r)

	updates, cancel := s.Tracker.Subscribe()
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-updates:
				if !ok {
					return
				}
				r.RenderSession(snap)
			}
		}
	}()
}
