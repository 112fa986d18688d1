// Package metrics provides Prometheus instrumentation for video-rewrite.
//
// All metrics are registered with promauto at package initialization and are
// prefixed with "video_rewrite_". They are served on /metrics by the HTTP
// server when METRICS_ENABLED is true.
//
// # Metric Categories
//
// ## Pipeline Metrics
//
// Recorded through the transcode.Observer returned by NewPipelineObserver:
//   - PipelineRunsStarted / PipelineRunsFinished: runs by outcome
//   - PipelineRunDuration: wall time per run by outcome
//   - PipelineRunsActive: runs currently in progress
//   - PipelineSamplesAppended: samples handed to the muxer by track
//   - PipelineFilterDuration: frame filter time, filtered or pass-through
//   - PipelineBackpressureWait: time spent waiting on a muxer input
//   - PipelinePoolCheckouts / PipelinePoolExhausted: frame pool usage
//
// ## Job Metrics
//
// Updated by the job manager and the Collector:
//   - JobsSubmitted, JobsFinished (by status), JobsQueued, JobsRunning
//   - JobHistoryTotal: jobs in the history database by status
//
// ## HTTP, Database and Filesystem Metrics
//
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//   - DBQueryTotal, DBQueryDuration, DBSizeBytes (main, WAL, SHM)
//   - FilesystemRetry*: retried stat/open/remove/rename calls per volume,
//     recorded through the filesystem.Observer from NewFilesystemObserver
//
// ## Memory Metrics
//
//   - GoMemLimit, GoMemAllocBytes, GoMemSysBytes
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses (from the memory monitor)
//
// # Usage
//
//	filesystem.SetObserver(metrics.NewFilesystemObserver())
//	metrics.InitializeMetrics()
//	p := transcode.New(backend, backend, transcode.WithObserver(metrics.NewPipelineObserver()))
package metrics
