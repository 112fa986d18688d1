package jobs

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"video-rewrite/internal/transcode"
)

const chunkDuration = 10 * time.Millisecond

// fakeBackend serves audio-only sources of a fixed length. Sources whose
// path contains "missing" cannot be opened.
type fakeBackend struct {
	chunks int
	delay  time.Duration

	mu         sync.Mutex
	open       int
	maxOpen    int
	finalized  []string
	abortCount int
}

func (b *fakeBackend) Open(_ context.Context, source string) (transcode.Demuxer, error) {
	if strings.Contains(source, "missing") {
		return nil, errors.New("no such file")
	}
	b.mu.Lock()
	b.open++
	if b.open > b.maxOpen {
		b.maxOpen = b.open
	}
	b.mu.Unlock()
	return &fakeSource{backend: b, reader: &fakeReader{total: b.chunks, delay: b.delay}}, nil
}

func (b *fakeBackend) Create(_ context.Context, dest string, _ transcode.SourceInfo) (transcode.Muxer, error) {
	return &fakeMuxer{backend: b, dest: dest, input: &fakeInput{ready: make(chan struct{})}}, nil
}

func (b *fakeBackend) maxConcurrent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxOpen
}

type fakeSource struct {
	backend *fakeBackend
	reader  *fakeReader
	once    sync.Once
}

func (s *fakeSource) Info() transcode.SourceInfo {
	return transcode.SourceInfo{
		Duration: time.Duration(s.reader.total) * chunkDuration,
		Audio:    &transcode.AudioInfo{SampleRate: 48000, Channels: 2},
	}
}

func (s *fakeSource) Reader(kind transcode.TrackKind) (transcode.TrackReader, bool) {
	if kind != transcode.TrackAudio {
		return nil, false
	}
	return s.reader, true
}

func (s *fakeSource) Err() error { return nil }

func (s *fakeSource) Close() error {
	s.once.Do(func() {
		s.backend.mu.Lock()
		s.backend.open--
		s.backend.mu.Unlock()
	})
	return nil
}

type fakeReader struct {
	total    int
	delay    time.Duration
	produced int
}

func (r *fakeReader) NextSample() (*transcode.Sample, bool) {
	if r.produced >= r.total {
		return nil, false
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	pts := time.Duration(r.produced) * chunkDuration
	r.produced++
	return transcode.NewAudioSample(make([]byte, 4), pts, chunkDuration, nil), true
}

// fakeInput accepts every append immediately.
type fakeInput struct {
	ready    chan struct{}
	mu       sync.Mutex
	appended int
}

func (in *fakeInput) IsReadyForMoreData() bool   { return true }
func (in *fakeInput) WhenReady() <-chan struct{} { return in.ready }
func (in *fakeInput) MarkFinished()              {}

func (in *fakeInput) AppendAudio(*transcode.Sample) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.appended++
	return nil
}

type fakeMuxer struct {
	backend *fakeBackend
	dest    string
	input   *fakeInput
}

func (m *fakeMuxer) VideoInput() (transcode.VideoInput, bool) { return nil, false }
func (m *fakeMuxer) AudioInput() (transcode.AudioInput, bool) { return m.input, true }
func (m *fakeMuxer) Err() error                               { return nil }

func (m *fakeMuxer) Finalize(context.Context) error {
	if err := os.WriteFile(m.dest, []byte("moov"), 0o644); err != nil {
		return err
	}
	m.backend.mu.Lock()
	m.backend.finalized = append(m.backend.finalized, m.dest)
	m.backend.mu.Unlock()
	return nil
}

func (m *fakeMuxer) Abort() error {
	m.backend.mu.Lock()
	m.backend.abortCount++
	m.backend.mu.Unlock()
	return nil
}
