package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_rewrite_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_rewrite_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_rewrite_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Pipeline metrics
var (
	PipelineRunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_rewrite_pipeline_runs_started_total",
			Help: "Total number of pipeline runs started",
		},
	)

	PipelineRunsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_rewrite_pipeline_runs_finished_total",
			Help: "Total number of pipeline runs finished by outcome",
		},
		[]string{"outcome"}, // "succeeded", "read_error", "write_error", "cancelled", "finalize_error"
	)

	PipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_rewrite_pipeline_run_duration_seconds",
			Help:    "Pipeline run duration in seconds by outcome",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"outcome"},
	)

	PipelineRunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_rewrite_pipeline_runs_active",
			Help: "Number of pipeline runs currently in progress",
		},
	)

	PipelineSamplesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_rewrite_pipeline_samples_appended_total",
			Help: "Total number of samples appended to muxers by track",
		},
		[]string{"track"}, // "video", "audio"
	)

	PipelineFilterDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_rewrite_pipeline_filter_duration_seconds",
			Help:    "Frame filter duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"result"}, // "filtered", "pass_through"
	)

	PipelineBackpressureWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_rewrite_pipeline_backpressure_wait_seconds",
			Help:    "Time spent waiting for a muxer input to accept more data",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"track"},
	)

	PipelinePoolCheckouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_rewrite_pipeline_pool_checkouts_total",
			Help: "Total number of frame buffers handed out by muxer pools",
		},
	)

	PipelinePoolExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_rewrite_pipeline_pool_exhausted_total",
			Help: "Total number of frame buffer requests refused because the pool was empty",
		},
	)
)

// Job metrics
var (
	JobsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_rewrite_jobs_submitted_total",
			Help: "Total number of transcode jobs submitted",
		},
	)

	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_rewrite_jobs_finished_total",
			Help: "Total number of transcode jobs finished by status",
		},
		[]string{"status"}, // "succeeded", "failed", "cancelled"
	)

	JobsQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_rewrite_jobs_queued",
			Help: "Number of jobs waiting for a worker slot",
		},
	)

	JobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_rewrite_jobs_running",
			Help: "Number of jobs currently transcoding",
		},
	)

	JobHistoryTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_rewrite_job_history",
			Help: "Number of jobs in the history database by status",
		},
		[]string{"status"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_rewrite_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_rewrite_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_rewrite_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_rewrite_filesystem_retry_attempts_total",
			Help: "Total number of retried filesystem operations",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_rewrite_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_rewrite_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_rewrite_filesystem_retry_duration_seconds",
			Help:    "Total duration of retried filesystem operations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_rewrite_filesystem_stale_errors_total",
			Help: "Total number of stale NFS file handle errors",
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	GoMemLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_rewrite_go_memlimit_bytes",
			Help: "Configured GOMEMLIMIT in bytes (0 if unset)",
		},
	)

	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_rewrite_go_memalloc_bytes",
			Help: "Current heap allocation in bytes",
		},
	)

	GoMemSysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_rewrite_go_memsys_bytes",
			Help: "Total memory obtained from the OS in bytes",
		},
	)

	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_rewrite_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_rewrite_memory_paused",
			Help: "Whether job admission is paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_rewrite_memory_gc_pauses_total",
			Help: "Total number of times memory pressure paused job admission",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_rewrite_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
