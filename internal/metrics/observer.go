package metrics

import (
	"time"

	"video-rewrite/internal/filesystem"
	"video-rewrite/internal/transcode"
)

// filesystemObserver implements filesystem.Observer using the Prometheus
// metrics declared in this package.
type filesystemObserver struct{}

// NewFilesystemObserver creates an observer that records retry metrics
// into the counters and histograms declared in metrics.go.
func NewFilesystemObserver() filesystem.Observer {
	return &filesystemObserver{}
}

func (o *filesystemObserver) ObserveRetryAttempt(op, volume string) {
	FilesystemRetryAttempts.WithLabelValues(op, volume).Inc()
}

func (o *filesystemObserver) ObserveRetrySuccess(op, volume string) {
	FilesystemRetrySuccess.WithLabelValues(op, volume).Inc()
}

func (o *filesystemObserver) ObserveRetryFailure(op, volume string) {
	FilesystemRetryFailures.WithLabelValues(op, volume).Inc()
}

func (o *filesystemObserver) ObserveRetryDuration(op, volume string, durationSeconds float64) {
	FilesystemRetryDuration.WithLabelValues(op, volume).Observe(durationSeconds)
}

func (o *filesystemObserver) ObserveStaleError(op, volume string) {
	FilesystemStaleErrors.WithLabelValues(op, volume).Inc()
}

// pipelineObserver implements transcode.Observer.
type pipelineObserver struct{}

// NewPipelineObserver creates an observer that records pipeline run metrics.
func NewPipelineObserver() transcode.Observer {
	return &pipelineObserver{}
}

func (o *pipelineObserver) RunStarted() {
	PipelineRunsStarted.Inc()
	PipelineRunsActive.Inc()
}

func (o *pipelineObserver) RunFinished(outcome string, elapsed time.Duration) {
	PipelineRunsActive.Dec()
	PipelineRunsFinished.WithLabelValues(outcome).Inc()
	PipelineRunDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (o *pipelineObserver) SampleAppended(kind transcode.TrackKind) {
	PipelineSamplesAppended.WithLabelValues(kind.String()).Inc()
}

func (o *pipelineObserver) FilterApplied(elapsed time.Duration, passThrough bool) {
	result := "filtered"
	if passThrough {
		result = "pass_through"
	}
	PipelineFilterDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (o *pipelineObserver) BackpressureWait(kind transcode.TrackKind, elapsed time.Duration) {
	PipelineBackpressureWait.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
}

func (o *pipelineObserver) PoolUsage(checkouts, exhausted uint64) {
	PipelinePoolCheckouts.Add(float64(checkouts))
	PipelinePoolExhausted.Add(float64(exhausted))
}
