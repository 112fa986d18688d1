package transcode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"video-rewrite/internal/logging"
)

// run is one Prepare/Start cycle.
type run struct {
	pipeline *Pipeline
	source   string
	dest     string
	demux    Demuxer
	mux      Muxer
	info     SourceInfo
	filter   FrameFilter
	audio    AudioTransform
	observer Observer

	progress *progressTracker
	barrier  *barrier
	notify   *notifier
	started  time.Time

	halt     chan struct{}
	haltOnce sync.Once
	done     chan struct{}

	mu        sync.Mutex
	writeErr  error
	cancelErr error
}

func (r *run) start(ctx context.Context, buffer int) <-chan Event {
	kinds := r.info.Tracks()
	r.progress = &progressTracker{total: r.info.Duration}
	r.barrier = newBarrier(kinds)
	r.notify = newNotifier(buffer)
	r.halt = make(chan struct{})
	r.done = make(chan struct{})
	r.started = time.Now()

	go r.notify.run()
	go r.watch(ctx)

	r.observer.RunStarted()
	logging.Info("Transcoding %s -> %s", r.source, r.dest)

	for _, kind := range kinds {
		switch kind {
		case TrackVideo:
			go r.pumpVideo()
		case TrackAudio:
			go r.pumpAudio()
		}
	}
	return r.notify.out
}

func (r *run) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		cause := context.Cause(ctx)
		if cause == nil {
			cause = ctx.Err()
		}
		r.cancel(cause)
	case <-r.done:
	}
}

// cancel records why the run stopped and halts both track loops.
func (r *run) cancel(cause error) {
	r.mu.Lock()
	if r.cancelErr == nil {
		r.cancelErr = cause
	}
	r.mu.Unlock()
	r.stop()
}

func (r *run) stop() {
	r.haltOnce.Do(func() { close(r.halt) })
}

func (r *run) halted() bool {
	select {
	case <-r.halt:
		return true
	default:
		return false
	}
}

func (r *run) failWrite(kind TrackKind, err error) {
	r.mu.Lock()
	if r.writeErr == nil {
		r.writeErr = fmt.Errorf("append %s: %w", kind, err)
	}
	r.mu.Unlock()
	r.stop()
}

// drivesProgress reports whether kind's timestamps feed progress: video when
// present, otherwise audio.
func (r *run) drivesProgress(kind TrackKind) bool {
	if r.info.Has(TrackVideo) {
		return kind == TrackVideo
	}
	return kind == TrackAudio
}

func (r *run) reportProgress(end time.Duration) {
	if v, ok := r.progress.observe(end); ok {
		r.notify.report(v)
	}
}

// awaitReady blocks until in can take one more sample. It returns false if
// the run was halted meanwhile.
func (r *run) awaitReady(kind TrackKind, in TrackInput) bool {
	var since time.Time
	for {
		if r.halted() {
			return false
		}
		if in.IsReadyForMoreData() {
			if !since.IsZero() {
				r.observer.BackpressureWait(kind, time.Since(since))
			}
			return true
		}
		if since.IsZero() {
			since = time.Now()
		}
		select {
		case <-in.WhenReady():
		case <-r.halt:
			return false
		}
	}
}

// endOfTrack handles a reader that returned false.
func (r *run) endOfTrack(kind TrackKind, count int) {
	if err := r.demux.Err(); err != nil {
		logging.Debug("%s track of %s stopped after %d samples: %v", kind, r.source, count, err)
		r.stop()
		return
	}
	if r.drivesProgress(kind) {
		if v, ok := r.progress.complete(); ok {
			r.notify.report(v)
		}
	}
	logging.Debug("%s track of %s finished after %d samples", kind, r.source, count)
}

func (r *run) trackDone(kind TrackKind, in TrackInput) {
	in.MarkFinished()
	if r.barrier.done(kind) {
		r.complete()
	}
}

func (r *run) pumpVideo() {
	in, _ := r.mux.VideoInput()
	defer r.trackDone(TrackVideo, in)

	reader, ok := r.demux.Reader(TrackVideo)
	if !ok {
		r.failWrite(TrackVideo, errors.New("source has no video reader"))
		return
	}
	pool := in.Pool()

	count := 0
	for r.awaitReady(TrackVideo, in) {
		sample, ok := reader.NextSample()
		if !ok {
			r.endOfTrack(TrackVideo, count)
			return
		}
		if r.drivesProgress(TrackVideo) {
			r.reportProgress(sample.End())
		}
		err := r.writeFrame(in, pool, sample)
		sample.Release()
		if err != nil {
			r.failWrite(TrackVideo, err)
			return
		}
		count++
		r.observer.SampleAppended(TrackVideo)
	}
}

// writeFrame filters one frame and appends it with the source PTS.
func (r *run) writeFrame(in VideoInput, pool *FramePool, sample *Sample) error {
	began := time.Now()
	out := r.filter.Apply(sample.Frame, pool)
	r.observer.FilterApplied(time.Since(began), out == nil)

	frame := sample.Frame
	if out != nil {
		frame = out
		if !pool.Fits(out) {
			conformed, err := pool.Conform(out)
			pool.Put(out)
			if err != nil {
				logging.Warn("Dropping filter output at %v, writing source frame: %v", sample.PTS, err)
				frame = sample.Frame
			} else {
				frame = conformed
			}
		}
	}

	err := in.AppendVideo(frame, sample.PTS)
	if frame != sample.Frame {
		pool.Put(frame)
	}
	return err
}

func (r *run) pumpAudio() {
	in, _ := r.mux.AudioInput()
	defer r.trackDone(TrackAudio, in)

	reader, ok := r.demux.Reader(TrackAudio)
	if !ok {
		r.failWrite(TrackAudio, errors.New("source has no audio reader"))
		return
	}

	count := 0
	for r.awaitReady(TrackAudio, in) {
		sample, ok := reader.NextSample()
		if !ok {
			r.endOfTrack(TrackAudio, count)
			return
		}
		if r.drivesProgress(TrackAudio) {
			r.reportProgress(sample.End())
		}
		out := r.audio.Transform(sample)
		if out == nil {
			out = sample
		}
		err := in.AppendAudio(out)
		out.Release()
		sample.Release()
		if err != nil {
			r.failWrite(TrackAudio, err)
			return
		}
		count++
		r.observer.SampleAppended(TrackAudio)
	}
}

// complete runs once, on the goroutine that finished the last track.
func (r *run) complete() {
	defer close(r.done)

	r.mu.Lock()
	writeErr, cancelErr := r.writeErr, r.cancelErr
	r.mu.Unlock()
	if muxErr := r.mux.Err(); muxErr != nil {
		writeErr = muxErr
	}

	var failure error
	switch readErr := r.demux.Err(); {
	case readErr != nil:
		failure = NewError(ErrRead, "read", r.source, readErr)
	case writeErr != nil:
		failure = NewError(ErrWrite, "write", r.dest, writeErr)
	case cancelErr != nil:
		failure = NewError(ErrCancelled, "transcode", r.dest, cancelErr)
	default:
		if err := r.mux.Finalize(context.Background()); err != nil {
			failure = NewError(ErrFinalize, "finalize", r.dest, err)
		}
	}

	closeDemuxer(r.demux, r.source)
	if pool := r.videoPool(); pool != nil {
		r.observer.PoolUsage(pool.Stats())
	}

	elapsed := time.Since(r.started)
	if failure != nil {
		if err := r.mux.Abort(); err != nil {
			logging.Warn("Failed to discard output %s: %v", r.dest, err)
		}
		logging.Error("Transcode %s -> %s failed after %v: %v", r.source, r.dest, elapsed.Round(time.Millisecond), failure)
		r.observer.RunFinished(outcome(failure), elapsed)
		r.pipeline.settle(r, StateFailed)
		r.notify.finish(Event{Kind: EventFailed, Err: failure})
		return
	}

	logging.Info("Transcoded %s -> %s in %v", r.source, r.dest, elapsed.Round(time.Millisecond))
	r.observer.RunFinished("succeeded", elapsed)
	r.pipeline.settle(r, StateSucceeded)
	r.notify.finish(Event{Kind: EventSucceeded, Progress: 1, Path: r.dest})
}

func (r *run) videoPool() *FramePool {
	if in, ok := r.mux.VideoInput(); ok {
		return in.Pool()
	}
	return nil
}

// discard releases a prepared run that never started.
func (r *run) discard() {
	closeDemuxer(r.demux, r.source)
	if err := r.mux.Abort(); err != nil {
		logging.Warn("Failed to discard output %s: %v", r.dest, err)
	}
}

// outcome is the metric label for a failure.
func outcome(err error) string {
	switch {
	case errors.Is(err, ErrRead):
		return "read_error"
	case errors.Is(err, ErrWrite):
		return "write_error"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrFinalize):
		return "finalize_error"
	default:
		return "failed"
	}
}
