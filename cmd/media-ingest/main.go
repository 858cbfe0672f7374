package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"media-ingest/internal/database"
	"media-ingest/internal/filesystem"
	"media-ingest/internal/handlers"
	"media-ingest/internal/ingest"
	"media-ingest/internal/logging"
	"media-ingest/internal/media"
	"media-ingest/internal/memory"
	"media-ingest/internal/metrics"
	"media-ingest/internal/middleware"
	"media-ingest/internal/quota"
	"media-ingest/internal/startup"
	"media-ingest/internal/storage"
	"media-ingest/internal/sweeper"
	"media-ingest/internal/verify"
)

const statsInterval = time.Minute

// app holds the long-lived components stopped during shutdown.
type app struct {
	db        *database.Database
	monitor   *memory.Monitor
	collector *metrics.Collector
	sweeper   *sweeper.Sweeper
	server    *http.Server
	metrics   *http.Server
}

func main() {
	startTime := time.Now()

	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	startup.LogVipsInit(media.InitVips(config.TranscodeWorkers))

	a := &app{
		db:        db,
		monitor:   memory.NewMonitor(monitorConfig(memResult)),
		collector: metrics.NewCollector(db, statsInterval),
	}
	a.monitor.Start()
	a.collector.Start()

	if config.SweepEnabled {
		a.sweeper = sweeper.New(db, config.StorageDir, sweeperConfig(config))
		a.sweeper.Start()
	}

	svc := newService(db, config, a.monitor)
	h := handlers.New(db, svc, storage.NewLayout(config.StorageDir), config.Profiles)

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	a.server = &http.Server{
		Addr:              ":" + config.Port,
		Handler:           wrapHandler(router, config),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	if config.MetricsEnabled {
		a.metrics = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsRouter(h),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(a, config.ShutdownTimeout)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}

	// Block until the shutdown goroutine finishes closing components.
	<-shutdownDone
}

// monitorConfig points backpressure at the heap limit chosen at startup.
func monitorConfig(result memory.ConfigResult) memory.Config {
	cfg := memory.DefaultConfig()
	if result.Configured {
		cfg.LimitBytes = result.GoMemLimit
	}
	return cfg
}

func sweeperConfig(config *startup.Config) sweeper.Config {
	return sweeper.Config{
		Interval:   config.SweepInterval,
		MinAge:     config.SweepMinAge,
		NumWorkers: config.SweepWorkers,
		DryRun:     config.SweepDryRun,
	}
}

// newService assembles the ingestion pipeline from configuration.
func newService(db *database.Database, config *startup.Config, pressure ingest.Backpressure) *ingest.Service {
	transcoder := media.NewTranscoder(media.WebPEncoder{}, config.Letterbox)
	generator := media.NewGenerator(transcoder, media.Qualities{
		Original: config.OriginalQuality,
		Resize:   config.ResizeQuality,
	})

	return ingest.NewService(
		db,
		quota.NewGuard(db, config.AssetCeiling),
		verify.New(config.MaxImagePixels),
		storage.NewLayout(config.StorageDir),
		generator,
		ingest.Config{
			MaxUploadBytes: config.MaxUploadBytes,
			TranscodeSlots: config.TranscodeWorkers,
			Memory:         pressure,
		},
	)
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	h.RegisterRoutes(r)
	return r
}

// wrapHandler applies the outer middleware. Logging sits outside compression
// so the access log records bytes as sent by the handler.
func wrapHandler(router http.Handler, config *startup.Config) http.Handler {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	compressed := middleware.Compression(middleware.DefaultCompressionConfig())(router)
	return middleware.Logger(loggingConfig)(compressed)
}

func metricsRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", h.MetricsHandler()).Methods(http.MethodGet)
	r.HandleFunc("/health", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	return r
}

var shutdownDone = make(chan struct{})

func handleShutdown(a *app, timeout time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())
	a.shutdown(timeout)
	close(shutdownDone)
}

// shutdown stops accepting requests, lets in-flight uploads finish within
// timeout, then releases the remaining components.
func (a *app) shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if a.server != nil {
		startup.LogShutdownStep("Shutting down HTTP server")
		if err := a.server.Shutdown(ctx); err != nil {
			logging.Warn("Server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("HTTP server stopped")
		}
	}

	if a.metrics != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := a.metrics.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	if a.sweeper != nil {
		startup.LogShutdownStep("Stopping storage sweeper")
		a.sweeper.Stop()
		startup.LogShutdownStepComplete("Storage sweeper stopped")
	}

	if a.collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		a.collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	if a.monitor != nil {
		startup.LogShutdownStep("Stopping memory monitor")
		a.monitor.Stop()
		startup.LogShutdownStepComplete("Memory monitor stopped")
	}

	startup.LogShutdownStep("Shutting down libvips")
	media.ShutdownVips()
	startup.LogShutdownStepComplete("libvips stopped")

	if a.db != nil {
		startup.LogShutdownStep("Closing database")
		if err := a.db.Close(); err != nil {
			logging.Warn("Database close error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Database closed")
		}
	}

	startup.LogShutdownComplete()
}
