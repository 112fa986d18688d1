package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"video-rewrite/internal/container"
	"video-rewrite/internal/filesystem"
	"video-rewrite/internal/logging"
	"video-rewrite/internal/transcode"
)

var (
	errNotReady      = errors.New("input is not ready for more data")
	errInputFinished = errors.New("input already finished")
)

// Create removes any existing file at dest and starts an encoder writing to
// a temporary sibling of it.
func (b *Backend) Create(ctx context.Context, dest string, info transcode.SourceInfo) (transcode.Muxer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := filesystem.ClearDestination(dest); err != nil {
		return nil, transcode.NewError(transcode.ErrDestinationUnwritable, "create", dest, err)
	}
	temp, err := filesystem.CreateTempSibling(dest)
	if err != nil {
		return nil, transcode.NewError(transcode.ErrDestinationUnwritable, "create", dest, err)
	}

	m, err := b.startMuxer(dest, temp, info)
	if err != nil {
		_ = os.Remove(temp)
		return nil, transcode.NewError(transcode.ErrDestinationUnwritable, "create", dest, err)
	}
	return m, nil
}

type muxState int

const (
	muxOpen muxState = iota
	muxCommitted
	muxAborted
)

type muxer struct {
	backend *Backend
	dest    string
	temp    string
	proc    *process
	video   *videoInput
	audio   *audioInput
	inputs  []*pipeInput

	mu    sync.Mutex
	state muxState
}

func (b *Backend) startMuxer(dest, temp string, info transcode.SourceInfo) (*muxer, error) {
	m := &muxer{backend: b, dest: dest, temp: temp}

	var stdin *os.File
	var extra, childEnds []*os.File
	closeAll := func(files []*os.File) {
		for _, f := range files {
			f.Close()
		}
	}

	var writers []*os.File
	if g := info.Video; g != nil {
		pr, pw, err := os.Pipe()
		if err != nil {
			return nil, err
		}
		stdin = pr
		childEnds = append(childEnds, pr)
		writers = append(writers, pw)
		m.video = newVideoInput(pw, g.Geometry, b.config)
		m.inputs = append(m.inputs, m.video.pipeInput)
	}
	if info.Audio != nil {
		pr, pw, err := os.Pipe()
		if err != nil {
			closeAll(childEnds)
			closeAll(writers)
			return nil, err
		}
		if stdin == nil {
			stdin = pr
		} else {
			extra = append(extra, pr)
		}
		childEnds = append(childEnds, pr)
		writers = append(writers, pw)
		m.audio = &audioInput{pipeInput: newPipeInput(transcode.TrackAudio, pw, b.config.QueueDepth)}
		m.inputs = append(m.inputs, m.audio.pipeInput)
	}

	proc, err := b.start(processSpec{
		name:  "encoder",
		args:  encoderArgs(b.config, info, temp),
		stdin: stdin,
		extra: extra,
	})
	closeAll(childEnds)
	if err != nil {
		closeAll(writers)
		return nil, err
	}
	m.proc = proc

	for _, in := range m.inputs {
		go in.drain()
	}
	logging.Debug("Encoder started for %s (temp %s)", dest, temp)
	return m, nil
}

func (m *muxer) VideoInput() (transcode.VideoInput, bool) {
	if m.video == nil {
		return nil, false
	}
	return m.video, true
}

func (m *muxer) AudioInput() (transcode.AudioInput, bool) {
	if m.audio == nil {
		return nil, false
	}
	return m.audio, true
}

// Err reports the first pipe write failure, with the encoder's stderr when it
// has already exited.
func (m *muxer) Err() error {
	for _, in := range m.inputs {
		if err := in.failure(); err != nil {
			msg := ""
			if m.proc.exited() {
				msg = m.proc.stderr.suffix()
			}
			return fmt.Errorf("%s input: %w%s", in.kind, err, msg)
		}
	}
	return nil
}

func (m *muxer) Finalize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != muxOpen {
		return errors.New("muxer already finalized or aborted")
	}

	for _, in := range m.inputs {
		if !in.isFinished() {
			return fmt.Errorf("%s input not finished", in.kind)
		}
	}
	for _, in := range m.inputs {
		select {
		case <-in.drained:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := m.Err(); err != nil {
		return err
	}

	began := time.Now()
	if err := m.proc.wait(ctx); err != nil {
		return err
	}
	logging.Debug("Encoder for %s exited cleanly after %v", m.dest, time.Since(began).Round(time.Millisecond))

	if m.backend.config.Verify {
		var frames int64
		if m.video != nil {
			frames = m.video.appended.Load()
		}
		summary, err := container.VerifyVideo(m.temp, frames)
		if err != nil {
			return fmt.Errorf("verify output: %w", err)
		}
		if v, ok := summary.Video(); ok {
			logging.Debug("Verified %s: %d frames %dx%d %s", m.dest, v.Samples, v.Width, v.Height, v.Profile)
		}
	}

	if err := filesystem.Commit(m.temp, m.dest); err != nil {
		return fmt.Errorf("commit output: %w", err)
	}
	m.state = muxCommitted
	return nil
}

func (m *muxer) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != muxOpen {
		return nil
	}
	m.state = muxAborted

	for _, in := range m.inputs {
		in.MarkFinished()
	}
	m.proc.kill()
	for _, in := range m.inputs {
		<-in.drained
	}
	if err := filesystem.RemoveWithRetry(m.temp, filesystem.DefaultRetryConfig()); err != nil {
		return fmt.Errorf("remove partial output: %w", err)
	}
	logging.Debug("Discarded partial output for %s", m.dest)
	return nil
}

// pipeInput is a bounded queue of encoded-ready payloads drained into one
// encoder pipe by its own goroutine.
type pipeInput struct {
	kind    transcode.TrackKind
	w       *os.File
	queue   chan []byte
	ready   chan struct{}
	drained chan struct{}
	recycle func([]byte)

	mu       sync.Mutex
	finished bool
	err      error

	lastPTS  time.Duration
	hasPTS   bool
	appended atomic.Int64
}

func newPipeInput(kind transcode.TrackKind, w *os.File, depth int) *pipeInput {
	return &pipeInput{
		kind:    kind,
		w:       w,
		queue:   make(chan []byte, depth),
		ready:   make(chan struct{}, 1),
		drained: make(chan struct{}),
	}
}

func (in *pipeInput) signal() {
	select {
	case in.ready <- struct{}{}:
	default:
	}
}

func (in *pipeInput) failure() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.err
}

func (in *pipeInput) fail(err error) {
	in.mu.Lock()
	if in.err == nil {
		in.err = err
	}
	in.mu.Unlock()
	in.signal()
}

func (in *pipeInput) isFinished() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.finished
}

// IsReadyForMoreData is also true once the input failed, so that a waiting
// producer wakes up and sees the error on its next append.
func (in *pipeInput) IsReadyForMoreData() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.err != nil {
		return true
	}
	return !in.finished && len(in.queue) < cap(in.queue)
}

func (in *pipeInput) WhenReady() <-chan struct{} {
	return in.ready
}

func (in *pipeInput) MarkFinished() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.finished {
		in.finished = true
		close(in.queue)
	}
}

// enqueue hands payload to the drain goroutine without blocking.
func (in *pipeInput) enqueue(pts time.Duration, payload []byte) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	switch {
	case in.err != nil:
		return in.err
	case in.finished:
		return errInputFinished
	case in.hasPTS && pts < in.lastPTS:
		return fmt.Errorf("%s timestamp %v precedes %v", in.kind, pts, in.lastPTS)
	}
	select {
	case in.queue <- payload:
	default:
		return errNotReady
	}
	in.lastPTS, in.hasPTS = pts, true
	in.appended.Add(1)
	return nil
}

func (in *pipeInput) drain() {
	defer close(in.drained)
	for payload := range in.queue {
		if in.failure() == nil {
			if _, err := in.w.Write(payload); err != nil {
				in.fail(err)
			}
		}
		if in.recycle != nil {
			in.recycle(payload)
		}
		in.signal()
	}
	if err := in.w.Close(); err != nil && in.failure() == nil {
		in.fail(err)
	}
}

type videoInput struct {
	*pipeInput
	pool   *transcode.FramePool
	width  int
	height int
	free   chan []byte
}

func newVideoInput(w *os.File, g transcode.Geometry, cfg Config) *videoInput {
	v := &videoInput{
		pipeInput: newPipeInput(transcode.TrackVideo, w, cfg.QueueDepth),
		pool:      transcode.NewFramePool(g.Width, g.Height, cfg.PoolSize),
		width:     g.Width,
		height:    g.Height,
		free:      make(chan []byte, cfg.QueueDepth+1),
	}
	v.recycle = func(b []byte) {
		select {
		case v.free <- b:
		default:
		}
	}
	return v
}

func (v *videoInput) Pool() *transcode.FramePool {
	return v.pool
}

// AppendVideo copies frame into a packed buffer and queues it.
func (v *videoInput) AppendVideo(frame *image.RGBA, pts time.Duration) error {
	b := frame.Bounds()
	if b.Dx() != v.width || b.Dy() != v.height {
		return fmt.Errorf("frame is %dx%d, encoder expects %dx%d", b.Dx(), b.Dy(), v.width, v.height)
	}

	var buf []byte
	select {
	case buf = <-v.free:
	default:
		buf = make([]byte, v.width*v.height*4)
	}

	row := v.width * 4
	if frame.Stride == row && b.Min == (image.Point{}) {
		copy(buf, frame.Pix[:row*v.height])
	} else {
		for y := 0; y < v.height; y++ {
			start := frame.PixOffset(b.Min.X, b.Min.Y+y)
			copy(buf[y*row:(y+1)*row], frame.Pix[start:start+row])
		}
	}

	if err := v.enqueue(pts, buf); err != nil {
		v.recycle(buf)
		return err
	}
	return nil
}

type audioInput struct {
	*pipeInput
}

// AppendAudio copies the PCM payload and queues it.
func (a *audioInput) AppendAudio(s *transcode.Sample) error {
	return a.enqueue(s.PTS, append([]byte(nil), s.Data...))
}
