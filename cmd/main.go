package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "calibration_console/docs"
	"calibration_console/internal/archive"
	"calibration_console/internal/config"
	"calibration_console/internal/handlers"
	"calibration_console/internal/logger"
	"calibration_console/internal/metrics"
	"calibration_console/internal/repository"
	"calibration_console/internal/repository/db"
	"calibration_console/internal/rigclient"
	"calibration_console/internal/server"
	"calibration_console/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	shutdownTimeout = 10 * time.Second
	catalogTimeout  = 10 * time.Second
)

// @title                       Calibration Console API
// @version                     1.0
// @description                 Operator console for the tileboard calibration rig.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.Log.Level)

	conn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
	}
	defer closeDB(conn, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// rig transport
	rest := rigclient.NewREST(cfg.Rig.BaseURL, cfg.Rig.RequestTimeout)
	socket := rigclient.NewSocket(rigclient.SocketConfig{
		Endpoint:       cfg.Rig.WSEndpoint,
		ReconnectDelay: cfg.Rig.WSReconnectDelay,
		MaxReconnect:   cfg.Rig.WSMaxReconnect,
		PingInterval:   cfg.Rig.WSPingInterval,
	}, log.Named("rig_socket"))

	// wire dependencies
	repos := repository.NewRepository(conn)
	services := service.NewService(repos, service.Deps{
		Rig:     rest,
		Emitter: socket,
		Metrics: m,
		Log:     log,
		Auth: service.AuthConfig{
			SigningKey: cfg.Auth.SigningKey,
			TokenTTL:   cfg.Auth.TokenTTL,
		},
		StatusPoll: service.PollerConfig{Interval: cfg.Poller.StatusInterval, RequestTimeout: cfg.Rig.RequestTimeout},
		DebugPoll:  service.PollerConfig{Interval: cfg.Poller.DebugInterval, RequestTimeout: cfg.Rig.RequestTimeout},
	})
	services.Tracker.Bind(socket)
	apiHandler := handlers.NewHandler(services, m, log.Named("http"))

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services.SetRenderer(ctx, apiHandler.Hub())
	bindRigConnection(ctx, socket, services, m, log)

	var sink *archive.InfluxSink
	if cfg.Archive.Influx.Enabled {
		sink, err = archive.NewInfluxSink(archive.InfluxConfig{
			Host:     cfg.Archive.Influx.Host,
			Token:    cfg.Archive.Influx.Token,
			Database: cfg.Archive.Influx.Database,
		}, log.Named("archive"))
		if err != nil {
			log.Fatalw("failed to init telemetry archive", "err", err)
		}
		services.Poller.SetArchive(sink)
	}

	if err := services.Poller.Restore(ctx); err != nil {
		log.Warnw("status_restore_failed", "err", err)
	}

	socket.Start()
	services.Poller.Start(ctx)

	srv := server.New(cfg.Port, apiHandler.InitRoutes())
	srv.OnShutdown(apiHandler.Hub().Close)
	go func() {
		log.Infow("http_server_started", "addr", srv.Addr())
		if err := srv.Run(); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()

	waitForShutdown(log)

	// stop producers before the sinks they write to
	cancel()
	services.Poller.Stop()
	services.Debug.StopAll()
	socket.Stop()
	if sink != nil {
		if err := sink.Close(); err != nil {
			log.Warnw("archive_close_failed", "err", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}

// bindRigConnection resets the telemetry window and session mirror on every
// new rig connection and reloads the form catalogs.
func bindRigConnection(ctx context.Context, socket *rigclient.Socket, services *service.Service, m *metrics.Metrics, log *logger.Logger) {
	socket.OnConnect(func() {
		m.RigConnected(true)
		services.Poller.ResetTelemetry()
		services.Tracker.Reset()

		go func() {
			refreshCtx, cancel := context.WithTimeout(ctx, catalogTimeout)
			defer cancel()
			if err := services.Catalogs.RefreshAll(refreshCtx); err != nil {
				log.Warnw("catalog_refresh_on_connect_failed", "err", err)
			}
		}()
	})
	socket.OnDisconnect(func() {
		m.RigConnected(false)
	})
}

func closeDB(conn *sql.DB, log *logger.Logger) {
	if err := conn.Close(); err != nil {
		log.Errorw("failed to close sqlite", "err", err)
	}
}

// waitForShutdown blocks until SIGINT or SIGTERM.
func waitForShutdown(log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Infow("shutting down server...", "signal", sig.String())
}
