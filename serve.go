package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"video-rewrite/internal/database"
	"video-rewrite/internal/ffmpeg"
	"video-rewrite/internal/filesystem"
	"video-rewrite/internal/filters"
	"video-rewrite/internal/handlers"
	"video-rewrite/internal/jobs"
	"video-rewrite/internal/logging"
	"video-rewrite/internal/memory"
	"video-rewrite/internal/metrics"
	"video-rewrite/internal/middleware"
	"video-rewrite/internal/startup"
)

const (
	shutdownTimeout        = 30 * time.Second
	metricsCollectInterval = time.Minute
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP job service",
		Long:  "Run the HTTP job API. Configuration comes from the environment; see the package documentation.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	startup.LogMemoryConfig(memory.ConfigureFromEnv())
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()

	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	if n, err := db.FailInterrupted(ctx, "interrupted by restart"); err != nil {
		logging.Warn("Failed to close out interrupted jobs: %v", err)
	} else if n > 0 {
		logging.Warn("Marked %d interrupted job(s) as failed", n)
	}

	collector := metrics.NewCollector(db, config.DatabasePath, metricsCollectInterval)
	collector.Start()
	defer collector.Stop()

	if err := startup.LogTranscoderInit(config); err != nil {
		return err
	}
	rc := filters.NewRenderContext(config.UseVips)
	defer rc.Close()
	catalog := filters.NewCatalog(rc)
	startup.LogFilterInit(catalog.Names(), rc.VipsAvailable())
	if _, ok := catalog.Lookup(config.DefaultFilter); !ok {
		return fmt.Errorf("DEFAULT_FILTER %q: %w", config.DefaultFilter, filters.ErrUnknownFilter)
	}

	backend := ffmpeg.New(config.FFmpegConfig())
	manager := jobs.NewManager(db, backend, catalog, jobs.Config{
		SourceDir:     config.SourceDir,
		OutputDir:     config.OutputDir,
		Workers:       config.Workers,
		Timeout:       config.JobTimeout,
		DefaultFilter: config.DefaultFilter,
		Observer:      metrics.NewPipelineObserver(),
		Monitor:       monitor,
	})

	h := handlers.New(manager, catalog, monitor, config)
	router := setupRouter(h)
	startup.LogHTTPRoutes(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	// Request contexts end when shutdown starts so watch streams let go.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           middleware.Logger(loggingConfig)(h.AuthMiddleware(router)),
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Downloads and watch streams are long-lived; streams set per-write deadlines.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	srv.RegisterOnShutdown(cancelRequests)

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		metricsMux.HandleFunc("/health", h.LivenessCheck)
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	h.SetReady(true)
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		startup.LogShutdownInitiated(sig.String())
	case err := <-serverErr:
		logging.Error("Server error: %v", err)
		startup.LogShutdownInitiated("server error")
		shutdown(h, srv, metricsSrv, manager, backend)
		return err
	}

	shutdown(h, srv, metricsSrv, manager, backend)
	return nil
}

func shutdown(h *handlers.Handlers, srv, metricsSrv *http.Server, manager *jobs.Manager, backend *ffmpeg.Backend) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	h.SetReady(false)

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Cancelling active jobs")
	if err := manager.Shutdown(ctx); err != nil {
		logging.Warn("Job shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Jobs stopped")
	}

	startup.LogShutdownStep("Stopping ffmpeg processes")
	if n := backend.Active(); n > 0 {
		logging.Warn("%d ffmpeg process(es) still running, killing", n)
	}
	backend.Cleanup()
	startup.LogShutdownStepComplete("ffmpeg processes stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownComplete()
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/jobs", h.CreateJob).Methods("POST")
	api.HandleFunc("/jobs", h.ListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", h.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}", h.CancelJob).Methods("DELETE")
	api.HandleFunc("/jobs/{id}/output", h.GetJobOutput).Methods("GET", "HEAD")
	api.HandleFunc("/jobs/{id}/watch", h.WatchJob).Methods("GET")
	api.HandleFunc("/filters", h.ListFilters).Methods("GET")
	api.HandleFunc("/inspect", h.Inspect).Methods("GET")

	return r
}
