package transcode

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testWidth  = 4
	testHeight = 4
)

var errDecode = errors.New("decode: corrupt packet")

// sourceSpec describes a synthetic source.
type sourceSpec struct {
	videoFrames int
	frameRate   float64
	audioChunks int
	chunkDur    time.Duration
	duration    time.Duration

	// failVideoAfter makes the video reader fail once that many frames were
	// read. slowVideo delays every video read.
	failVideoAfter int
	slowVideo      time.Duration
}

func tenSecondSource() sourceSpec {
	return sourceSpec{
		videoFrames: 300,
		frameRate:   30,
		audioChunks: 100,
		chunkDur:    100 * time.Millisecond,
		duration:    10 * time.Second,
	}
}

type fakeDemuxer struct {
	info    SourceInfo
	readers map[TrackKind]*fakeReader

	mu          sync.Mutex
	err         error
	readerCalls map[TrackKind]int
	closed      atomic.Int32
}

func newFakeDemuxer(spec sourceSpec) *fakeDemuxer {
	d := &fakeDemuxer{
		info:        SourceInfo{Duration: spec.duration},
		readers:     make(map[TrackKind]*fakeReader),
		readerCalls: make(map[TrackKind]int),
	}
	if spec.videoFrames > 0 {
		d.info.Video = &VideoInfo{
			Geometry:  Geometry{Width: testWidth, Height: testHeight, Transform: RotationTransform(90)},
			FrameRate: spec.frameRate,
		}
		d.readers[TrackVideo] = &fakeReader{
			d:         d,
			kind:      TrackVideo,
			total:     spec.videoFrames,
			dur:       d.info.Video.FrameDuration(),
			failAfter: spec.failVideoAfter,
			delay:     spec.slowVideo,
		}
	}
	if spec.audioChunks > 0 {
		d.info.Audio = &AudioInfo{SampleRate: 48000, Channels: 2}
		d.readers[TrackAudio] = &fakeReader{d: d, kind: TrackAudio, total: spec.audioChunks, dur: spec.chunkDur}
	}
	return d
}

func (d *fakeDemuxer) Info() SourceInfo { return d.info }

func (d *fakeDemuxer) Reader(kind TrackKind) (TrackReader, bool) {
	d.mu.Lock()
	d.readerCalls[kind]++
	d.mu.Unlock()
	r, ok := d.readers[kind]
	return r, ok
}

func (d *fakeDemuxer) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *fakeDemuxer) Close() error {
	d.closed.Add(1)
	return nil
}

func (d *fakeDemuxer) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err == nil {
		d.err = err
	}
}

func (d *fakeDemuxer) readerRequested(kind TrackKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readerCalls[kind]
}

type fakeReader struct {
	d         *fakeDemuxer
	kind      TrackKind
	total     int
	dur       time.Duration
	failAfter int
	delay     time.Duration

	produced int
	ends     atomic.Int32
}

func (r *fakeReader) NextSample() (*Sample, bool) {
	if r.failAfter > 0 && r.produced == r.failAfter {
		r.d.setErr(errDecode)
		r.ends.Add(1)
		return nil, false
	}
	if r.produced >= r.total {
		r.ends.Add(1)
		return nil, false
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	pts := time.Duration(r.produced) * r.dur
	i := r.produced
	r.produced++
	if r.kind == TrackAudio {
		data := make([]byte, 8)
		data[0] = byte(i)
		return NewAudioSample(data, pts, r.dur, nil), true
	}
	frame := image.NewRGBA(image.Rect(0, 0, testWidth, testHeight))
	for p := range frame.Pix {
		frame.Pix[p] = byte(i + p)
	}
	return NewVideoSample(frame, pts, r.dur, nil), true
}

type fakeOpener struct {
	demux *fakeDemuxer
	err   error
}

func (o *fakeOpener) Open(context.Context, string) (Demuxer, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.demux, nil
}

type fakeCreator struct {
	mux  *fakeMuxer
	err  error
	info SourceInfo
}

func (c *fakeCreator) Create(_ context.Context, _ string, info SourceInfo) (Muxer, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.info = info
	c.mux.attach(info)
	return c.mux, nil
}

// fakeInput mirrors a real muxer input: a bounded queue drained by its own
// goroutine, readiness meaning the queue has room.
type fakeInput struct {
	kind    TrackKind
	pool    *FramePool
	pending chan struct{}
	ready   chan struct{}
	drain   time.Duration
	failAt  int

	mu       sync.Mutex
	pts      []time.Duration
	frames   [][]byte
	audio    [][]byte
	finished atomic.Int32
	closed   bool
}

func newFakeInput(kind TrackKind, depth int, drain time.Duration, failAt int) *fakeInput {
	in := &fakeInput{
		kind:    kind,
		pending: make(chan struct{}, depth),
		ready:   make(chan struct{}, 1),
		drain:   drain,
		failAt:  failAt,
	}
	if kind == TrackVideo {
		in.pool = NewFramePool(testWidth, testHeight, 3)
	}
	go in.run()
	return in
}

func (in *fakeInput) run() {
	for range in.pending {
		if in.drain > 0 {
			time.Sleep(in.drain)
		}
		in.signal()
	}
}

func (in *fakeInput) signal() {
	select {
	case in.ready <- struct{}{}:
	default:
	}
}

func (in *fakeInput) IsReadyForMoreData() bool { return len(in.pending) < cap(in.pending) }
func (in *fakeInput) WhenReady() <-chan struct{} { return in.ready }
func (in *fakeInput) Pool() *FramePool { return in.pool }

func (in *fakeInput) MarkFinished() {
	in.finished.Add(1)
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.closed {
		in.closed = true
		close(in.pending)
	}
}

func (in *fakeInput) accept(pts time.Duration) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return errors.New("append after finish")
	}
	if in.failAt >= 0 && len(in.pts) == in.failAt {
		return errors.New("encoder pipe closed")
	}
	if n := len(in.pts); n > 0 && pts < in.pts[n-1] {
		return errors.New("non-monotonic pts")
	}
	select {
	case in.pending <- struct{}{}:
	default:
		return errors.New("append while not ready")
	}
	in.pts = append(in.pts, pts)
	return nil
}

func (in *fakeInput) AppendVideo(frame *image.RGBA, pts time.Duration) error {
	if err := in.accept(pts); err != nil {
		return err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.frames = append(in.frames, append([]byte(nil), frame.Pix...))
	return nil
}

func (in *fakeInput) AppendAudio(s *Sample) error {
	if err := in.accept(s.PTS); err != nil {
		return err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.audio = append(in.audio, append([]byte(nil), s.Data...))
	return nil
}

func (in *fakeInput) appended() []time.Duration {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]time.Duration(nil), in.pts...)
}

func (in *fakeInput) writtenFrames() [][]byte {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.frames
}

type muxerSpec struct {
	depth       int
	drain       time.Duration
	failVideoAt int
	finalizeErr error

	// err is reported by Muxer.Err for the whole run.
	err error
}

type fakeMuxer struct {
	spec  muxerSpec
	video *fakeInput
	audio *fakeInput

	finalizeCalls atomic.Int32
	abortCalls    atomic.Int32
	committed     atomic.Bool
}

func newFakeMuxer(spec muxerSpec) *fakeMuxer {
	if spec.depth == 0 {
		spec.depth = 2
	}
	if spec.failVideoAt == 0 {
		spec.failVideoAt = -1
	}
	return &fakeMuxer{spec: spec}
}

func (m *fakeMuxer) attach(info SourceInfo) {
	if info.Has(TrackVideo) {
		m.video = newFakeInput(TrackVideo, m.spec.depth, m.spec.drain, m.spec.failVideoAt)
	}
	if info.Has(TrackAudio) {
		m.audio = newFakeInput(TrackAudio, m.spec.depth, 0, -1)
	}
}

func (m *fakeMuxer) VideoInput() (VideoInput, bool) {
	if m.video == nil {
		return nil, false
	}
	return m.video, true
}

func (m *fakeMuxer) AudioInput() (AudioInput, bool) {
	if m.audio == nil {
		return nil, false
	}
	return m.audio, true
}

func (m *fakeMuxer) Err() error { return m.spec.err }

func (m *fakeMuxer) Finalize(context.Context) error {
	m.finalizeCalls.Add(1)
	if m.spec.finalizeErr != nil {
		return m.spec.finalizeErr
	}
	m.committed.Store(true)
	return nil
}

func (m *fakeMuxer) Abort() error {
	m.abortCalls.Add(1)
	if m.video != nil {
		m.video.MarkFinished()
	}
	if m.audio != nil {
		m.audio.MarkFinished()
	}
	return nil
}

type harness struct {
	demux    *fakeDemuxer
	mux      *fakeMuxer
	creator  *fakeCreator
	pipeline *Pipeline
}

func newHarness(src sourceSpec, dst muxerSpec, opts ...Option) *harness {
	h := &harness{demux: newFakeDemuxer(src), mux: newFakeMuxer(dst)}
	h.creator = &fakeCreator{mux: h.mux}
	h.pipeline = New(&fakeOpener{demux: h.demux}, h.creator, opts...)
	return h
}

// collect drains events and fails the test if anything follows the terminal
// event or the channel is not closed.
func collect(t *testing.T, events <-chan Event) ([]float64, Event) {
	t.Helper()
	var progress []float64
	var terminal *Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				require.NotNil(t, terminal, "channel closed without a terminal event")
				return progress, *terminal
			}
			require.Nil(t, terminal, "event %v delivered after terminal event", ev.Kind)
			if ev.Terminal() {
				terminal = &ev
				continue
			}
			progress = append(progress, ev.Progress)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func (h *harness) run(t *testing.T, ctx context.Context) ([]float64, Event) {
	t.Helper()
	require.NoError(t, h.pipeline.Prepare(ctx, "in.mov", "out.mov"))
	events, err := h.pipeline.Start(ctx)
	require.NoError(t, err)
	return collect(t, events)
}
