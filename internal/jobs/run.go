package jobs

import (
	"context"
	"errors"
	"time"

	"video-rewrite/internal/database"
	"video-rewrite/internal/filters"
	"video-rewrite/internal/logging"
	"video-rewrite/internal/metrics"
	"video-rewrite/internal/transcode"
)

// execute runs one job from queued to a terminal status.
func (m *Manager) execute(ctx context.Context, job database.Job) {
	defer m.wg.Done()
	defer m.release(job.ID)

	// Store writes outlive cancellation of the run.
	storeCtx := context.WithoutCancel(ctx)

	select {
	case m.slots <- struct{}{}:
	case <-ctx.Done():
		metrics.JobsQueued.Dec()
		status, msg := outcome(ctx, context.Cause(ctx))
		m.finish(storeCtx, job, status, msg)
		return
	}
	defer func() { <-m.slots }()

	if err := m.config.Monitor.Wait(ctx); err != nil {
		metrics.JobsQueued.Dec()
		status, msg := outcome(ctx, err)
		m.finish(storeCtx, job, status, msg)
		return
	}

	metrics.JobsQueued.Dec()
	metrics.JobsRunning.Inc()
	defer metrics.JobsRunning.Dec()

	if err := m.store.MarkStarted(storeCtx, job.ID); err != nil {
		logging.Error("Job %s: failed to mark started: %v", job.ID, err)
		m.finish(storeCtx, job, database.StatusFailed, err.Error())
		return
	}
	logging.Info("Job %s started", job.ID)

	status, msg := m.transcode(ctx, storeCtx, job)
	m.finish(storeCtx, job, status, msg)
}

// transcode runs the pipeline and maps its outcome to a job status.
func (m *Manager) transcode(ctx, storeCtx context.Context, job database.Job) (database.JobStatus, string) {
	filter, err := m.catalog.New(job.Filter)
	if err != nil {
		return database.StatusFailed, err.Error()
	}
	opts := []transcode.Option{
		transcode.WithFilter(filter),
		transcode.WithObserver(m.config.Observer),
	}
	if job.Volume != 1 {
		opts = append(opts, transcode.WithAudioTransform(filters.Volume(job.Volume)))
	}
	pipeline := transcode.New(m.backend, m.backend, opts...)

	runCtx := ctx
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeoutCause(ctx, m.config.Timeout, ErrTimeout)
		defer cancel()
	}

	if err := pipeline.Prepare(runCtx, job.Source, job.Destination); err != nil {
		return outcome(runCtx, err)
	}
	events, err := pipeline.Start(runCtx)
	if err != nil {
		pipeline.Cancel()
		return outcome(runCtx, err)
	}

	progress := newProgressWriter(storeCtx, m.store, job.ID, m.config.ProgressInterval)
	path, err := transcode.Wait(events, progress.update)
	if err != nil {
		return outcome(runCtx, err)
	}
	logging.Debug("Job %s wrote %s", job.ID, path)
	return database.StatusSucceeded, ""
}

func (m *Manager) finish(ctx context.Context, job database.Job, status database.JobStatus, msg string) {
	metrics.JobsFinished.WithLabelValues(string(status)).Inc()
	if err := m.store.FinishJob(ctx, job.ID, status, msg); err != nil {
		logging.Error("Job %s: failed to record %s: %v", job.ID, status, err)
		return
	}
	switch status {
	case database.StatusSucceeded:
		logging.Info("Job %s succeeded: %s", job.ID, job.Destination)
	case database.StatusCancelled:
		logging.Info("Job %s cancelled: %s", job.ID, msg)
	default:
		logging.Error("Job %s failed: %s", job.ID, msg)
	}
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.active[id]; ok {
		cancel(nil)
		delete(m.active, id)
	}
}

// outcome classifies a failed run. A run stopped by the user or by shutdown
// is cancelled; a timeout and everything else is a failure.
func outcome(ctx context.Context, err error) (database.JobStatus, string) {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(err, ErrTimeout) || errors.Is(cause, ErrTimeout):
		return database.StatusFailed, ErrTimeout.Error()
	case errors.Is(err, errCancelledByUser) || errors.Is(cause, errCancelledByUser):
		return database.StatusCancelled, errCancelledByUser.Error()
	case errors.Is(err, ErrShuttingDown) || errors.Is(cause, ErrShuttingDown):
		return database.StatusCancelled, ErrShuttingDown.Error()
	}
	return database.StatusFailed, err.Error()
}

// progressWriter persists progress no more often than interval. The final
// value is left to FinishJob.
type progressWriter struct {
	store    Store
	ctx      context.Context
	id       string
	interval time.Duration

	last    time.Time
	written float64
}

func newProgressWriter(ctx context.Context, store Store, id string, interval time.Duration) *progressWriter {
	return &progressWriter{store: store, ctx: ctx, id: id, interval: interval}
}

func (w *progressWriter) update(v float64) {
	now := time.Now()
	if v <= w.written || now.Sub(w.last) < w.interval {
		return
	}
	if err := w.store.UpdateProgress(w.ctx, w.id, v); err != nil {
		logging.Debug("Job %s: progress %.3f not stored: %v", w.id, v, err)
		return
	}
	w.last = now
	w.written = v
}
