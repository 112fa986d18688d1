package transcode

import (
	"sync"
	"time"
)

// EventKind classifies an Event.
type EventKind int

const (
	EventProgress EventKind = iota
	EventSucceeded
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is delivered on the channel returned by Pipeline.Start.
type Event struct {
	Kind     EventKind
	Progress float64 // EventProgress: fraction in [0, 1]
	Path     string  // EventSucceeded: the finalized destination
	Err      error   // EventFailed: a *Error
}

// Terminal reports whether e ends the run.
func (e Event) Terminal() bool {
	return e.Kind == EventSucceeded || e.Kind == EventFailed
}

// notifier serializes progress and the terminal outcome onto one channel from
// a single dispatcher goroutine. Progress that arrives faster than the
// consumer reads it is coalesced to the latest value.
type notifier struct {
	out  chan Event
	wake chan struct{}

	mu       sync.Mutex
	progress float64
	pending  bool
	terminal *Event
}

func newNotifier(buffer int) *notifier {
	return &notifier{
		out:  make(chan Event, buffer),
		wake: make(chan struct{}, 1),
	}
}

func (n *notifier) signal() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// report queues a progress value. It is dropped once the outcome is set.
func (n *notifier) report(v float64) bool {
	n.mu.Lock()
	if n.terminal != nil {
		n.mu.Unlock()
		return false
	}
	n.progress = v
	n.pending = true
	n.mu.Unlock()
	n.signal()
	return true
}

// finish sets the outcome. Only the first call has an effect.
func (n *notifier) finish(ev Event) bool {
	n.mu.Lock()
	if n.terminal != nil {
		n.mu.Unlock()
		return false
	}
	n.terminal = &ev
	n.mu.Unlock()
	n.signal()
	return true
}

func (n *notifier) run() {
	defer close(n.out)
	for range n.wake {
		n.mu.Lock()
		progress, pending := n.progress, n.pending
		n.pending = false
		terminal := n.terminal
		n.mu.Unlock()

		if pending {
			n.out <- Event{Kind: EventProgress, Progress: progress}
		}
		if terminal != nil {
			n.out <- *terminal
			return
		}
	}
}

// progressTracker turns sample end times into a clamped, strictly increasing
// fraction of the source duration.
type progressTracker struct {
	total time.Duration

	mu   sync.Mutex
	last float64
}

func (t *progressTracker) observe(end time.Duration) (float64, bool) {
	if t.total <= 0 {
		return 0, false
	}
	return t.advance(float64(end) / float64(t.total))
}

func (t *progressTracker) complete() (float64, bool) {
	return t.advance(1)
}

func (t *progressTracker) advance(v float64) (float64, bool) {
	v = min(max(v, 0), 1)
	t.mu.Lock()
	defer t.mu.Unlock()
	if v <= t.last {
		return t.last, false
	}
	t.last = v
	return v, true
}

// barrier completes when every registered track kind has finished. done
// returns true for exactly one caller: the one that flips the last flag.
type barrier struct {
	mu    sync.Mutex
	flags map[TrackKind]bool
	fired bool
}

func newBarrier(kinds []TrackKind) *barrier {
	flags := make(map[TrackKind]bool, len(kinds))
	for _, k := range kinds {
		flags[k] = false
	}
	return &barrier{flags: flags}
}

func (b *barrier) done(kind TrackKind) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	finished, ok := b.flags[kind]
	if !ok || finished || b.fired {
		return false
	}
	b.flags[kind] = true
	for _, f := range b.flags {
		if !f {
			return false
		}
	}
	b.fired = true
	return true
}

// Wait consumes events until the terminal one and returns the finalized
// destination or the failure. onProgress may be nil.
func Wait(events <-chan Event, onProgress func(float64)) (string, error) {
	for ev := range events {
		switch ev.Kind {
		case EventProgress:
			if onProgress != nil {
				onProgress(ev.Progress)
			}
		case EventSucceeded:
			return ev.Path, nil
		case EventFailed:
			return "", ev.Err
		}
	}
	return "", ErrCancelled
}
