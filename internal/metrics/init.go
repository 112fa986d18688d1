package metrics

// Outcome labels used by PipelineRunsFinished and PipelineRunDuration.
var runOutcomes = []string{"succeeded", "read_error", "write_error", "cancelled", "finalize_error"}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, outcome := range runOutcomes {
		PipelineRunsFinished.WithLabelValues(outcome)
		PipelineRunDuration.WithLabelValues(outcome)
	}

	for _, track := range []string{"video", "audio"} {
		PipelineSamplesAppended.WithLabelValues(track)
		PipelineBackpressureWait.WithLabelValues(track)
	}
	PipelineFilterDuration.WithLabelValues("filtered")
	PipelineFilterDuration.WithLabelValues("pass_through")

	for _, status := range []string{"succeeded", "failed", "cancelled"} {
		JobsFinished.WithLabelValues(status)
	}
	for _, status := range []string{"queued", "running", "succeeded", "failed", "cancelled"} {
		JobHistoryTotal.WithLabelValues(status)
	}

	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}
	for _, op := range []string{"create_job", "mark_started", "update_progress", "finish_job",
		"get_job", "list_jobs", "count_by_status"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	// Per retry-operation × volume
	volumes := []string{"output", "database", "unknown"}
	for _, op := range []string{"stat", "open", "remove", "rename"} {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
