package transcode

import (
	"context"
	"image"
	"time"
)

// TrackReader yields the samples of one track in non-decreasing PTS order.
// It returns false exactly once, at end of track or on failure; the owning
// Demuxer's Err tells the two apart.
type TrackReader interface {
	NextSample() (*Sample, bool)
}

// Demuxer reads the tracks of one opened source.
type Demuxer interface {
	Info() SourceInfo
	// Reader returns the reader for kind, or false if the source has no such track.
	Reader(kind TrackKind) (TrackReader, bool)
	// Err is the first fatal read error, if any. It is sticky.
	Err() error
	// Close releases decoder resources. It is idempotent.
	Close() error
}

// Opener opens sources for reading.
type Opener interface {
	Open(ctx context.Context, source string) (Demuxer, error)
}

// TrackInput is the write side of one track in a Muxer.
type TrackInput interface {
	// IsReadyForMoreData reports whether one more append can be accepted
	// without blocking.
	IsReadyForMoreData() bool
	// WhenReady is signalled whenever readiness may have changed. Receivers
	// must re-check IsReadyForMoreData.
	WhenReady() <-chan struct{}
	// MarkFinished ends the track. It is idempotent.
	MarkFinished()
}

// VideoInput accepts video frames.
type VideoInput interface {
	TrackInput
	// Pool holds frames sized to the output geometry.
	Pool() *FramePool
	// AppendVideo copies frame; the caller keeps ownership.
	AppendVideo(frame *image.RGBA, pts time.Duration) error
}

// AudioInput accepts PCM samples.
type AudioInput interface {
	TrackInput
	// AppendAudio copies the sample data; the caller keeps ownership.
	AppendAudio(sample *Sample) error
}

// Muxer writes one destination container.
type Muxer interface {
	VideoInput() (VideoInput, bool)
	AudioInput() (AudioInput, bool)
	// Err is the first write error observed on any input.
	Err() error
	// Finalize commits the destination. It must only be called once every
	// input is finished.
	Finalize(ctx context.Context) error
	// Abort discards any partial output. It never touches a committed file.
	Abort() error
}

// Creator creates muxers for destinations.
type Creator interface {
	Create(ctx context.Context, dest string, info SourceInfo) (Muxer, error)
}
