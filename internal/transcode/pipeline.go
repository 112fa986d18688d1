package transcode

import (
	"context"
	"errors"
	"sync"

	"video-rewrite/internal/logging"
)

// State is the lifecycle position of a Pipeline.
type State int

const (
	StateIdle State = iota
	StatePrepared
	StateRunning
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePrepared:
		return "prepared"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFilter sets the frame filter. The default is PassThrough.
func WithFilter(f FrameFilter) Option {
	return func(p *Pipeline) {
		if f != nil {
			p.filter = f
		}
	}
}

// WithAudioTransform sets the audio hook. The default is IdentityAudio.
func WithAudioTransform(t AudioTransform) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.audio = t
		}
	}
}

// WithObserver attaches a measurement sink.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithEventBuffer sets the capacity of the event channel.
func WithEventBuffer(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.eventBuffer = n
		}
	}
}

// Pipeline transcodes one source into one destination per run.
type Pipeline struct {
	opener      Opener
	creator     Creator
	filter      FrameFilter
	audio       AudioTransform
	observer    Observer
	eventBuffer int

	mu    sync.Mutex
	state State
	run   *run
}

// New returns an idle pipeline reading through opener and writing through creator.
func New(opener Opener, creator Creator, opts ...Option) *Pipeline {
	p := &Pipeline{
		opener:      opener,
		creator:     creator,
		filter:      PassThrough,
		audio:       IdentityAudio,
		observer:    nopObserver{},
		eventBuffer: 8,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Prepare opens source for reading and dest for writing. On failure the
// pipeline stays Idle, no event is produced and the returned error is a
// *Error of kind ErrUnreadableSource or ErrDestinationUnwritable.
func (p *Pipeline) Prepare(ctx context.Context, source, dest string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StatePrepared || p.state == StateRunning {
		return ErrRunActive
	}
	p.state = StateIdle

	demux, err := p.opener.Open(ctx, source)
	if err != nil {
		return classify(ErrUnreadableSource, "open", source, err)
	}
	info := demux.Info()
	if len(info.Tracks()) == 0 {
		closeDemuxer(demux, source)
		return NewError(ErrUnreadableSource, "open", source, errors.New("no audio or video track"))
	}

	mux, err := p.creator.Create(ctx, dest, info)
	if err != nil {
		closeDemuxer(demux, source)
		return classify(ErrDestinationUnwritable, "create", dest, err)
	}
	if err := checkInputs(info, mux); err != nil {
		closeDemuxer(demux, source)
		if abortErr := mux.Abort(); abortErr != nil {
			logging.Warn("Failed to discard output %s: %v", dest, abortErr)
		}
		return NewError(ErrDestinationUnwritable, "create", dest, err)
	}

	p.run = &run{
		pipeline: p,
		source:   source,
		dest:     dest,
		demux:    demux,
		mux:      mux,
		info:     info,
		filter:   p.filter,
		audio:    p.audio,
		observer: p.observer,
	}
	p.state = StatePrepared
	logging.Debug("Prepared %s -> %s (tracks=%v, duration=%v)", source, dest, info.Tracks(), info.Duration)
	return nil
}

func checkInputs(info SourceInfo, mux Muxer) error {
	if info.Has(TrackVideo) {
		if _, ok := mux.VideoInput(); !ok {
			return errors.New("muxer has no video input")
		}
	}
	if info.Has(TrackAudio) {
		if _, ok := mux.AudioInput(); !ok {
			return errors.New("muxer has no audio input")
		}
	}
	return nil
}

// Start begins moving samples. The returned channel carries progress events
// followed by exactly one terminal event, then it is closed. The caller must
// drain it. Cancelling ctx cancels the run.
func (p *Pipeline) Start(ctx context.Context) (<-chan Event, error) {
	p.mu.Lock()
	if p.state != StatePrepared {
		p.mu.Unlock()
		return nil, ErrNotPrepared
	}
	r := p.run
	p.state = StateRunning
	p.mu.Unlock()

	return r.start(ctx, p.eventBuffer), nil
}

// Cancel stops the current run. A running pipeline stops pulling samples,
// discards the destination and reports ErrCancelled. A prepared pipeline
// releases its resources and returns to Idle without any event.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	r, state := p.run, p.state
	if state == StatePrepared {
		p.run = nil
		p.state = StateIdle
	}
	p.mu.Unlock()

	switch {
	case r == nil:
	case state == StatePrepared:
		r.discard()
	case state == StateRunning:
		r.cancel(ErrCancelled)
	}
}

// settle is called by a run right before it emits its terminal event.
func (p *Pipeline) settle(r *run, state State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.run == r {
		p.run = nil
		p.state = state
	}
}

func closeDemuxer(d Demuxer, source string) {
	if err := d.Close(); err != nil {
		logging.Warn("Failed to close source %s: %v", source, err)
	}
}
