package transcode

import (
	"image"
	"math"
	"sync"
	"time"
)

// TrackKind identifies a media stream within a container.
type TrackKind int

const (
	TrackVideo TrackKind = iota
	TrackAudio
)

func (k TrackKind) String() string {
	switch k {
	case TrackVideo:
		return "video"
	case TrackAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Transform is a 2D affine transform in the row-vector convention
// x' = A*x + C*y + Tx, y' = B*x + D*y + Ty. It describes how decoded pixels
// are oriented for display. The zero value is treated as the identity.
type Transform struct {
	A, B, C, D float64
	Tx, Ty     float64
}

// IdentityTransform leaves pixels untouched.
var IdentityTransform = Transform{A: 1, D: 1}

// RotationTransform returns a transform rotating counter-clockwise by degrees.
func RotationTransform(degrees int) Transform {
	rad := float64(degrees) * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return Transform{A: round6(cos), B: round6(sin), C: -round6(sin), D: round6(cos)}
}

// Rotation reports the counter-clockwise rotation in degrees, normalized to
// (-180, 180] and rounded to the nearest integer.
func (t Transform) Rotation() int {
	if t.IsIdentity() {
		return 0
	}
	deg := int(math.Round(math.Atan2(t.B, t.A) * 180 / math.Pi))
	if deg == -180 {
		deg = 180
	}
	return deg
}

// IsIdentity reports whether t leaves pixels untouched.
func (t Transform) IsIdentity() bool {
	return t == Transform{} || t == IdentityTransform
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Geometry is the native pixel size of a video track plus its display
// orientation.
type Geometry struct {
	Width     int
	Height    int
	Transform Transform
}

// Valid reports whether the geometry describes a non-empty frame.
func (g Geometry) Valid() bool {
	return g.Width > 0 && g.Height > 0
}

// FrameBytes is the size of one packed RGBA frame.
func (g Geometry) FrameBytes() int {
	return g.Width * g.Height * 4
}

// VideoInfo describes the source video track.
type VideoInfo struct {
	Geometry  Geometry
	FrameRate float64
	Codec     string
}

// FrameDuration is the constant duration of one frame.
func (v VideoInfo) FrameDuration() time.Duration {
	if v.FrameRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / v.FrameRate)
}

// AudioInfo describes the source audio track. Samples are always delivered
// as interleaved signed 16-bit little-endian PCM.
type AudioInfo struct {
	SampleRate int
	Channels   int
	Codec      string
}

// FrameSize is the size in bytes of one interleaved PCM frame.
func (a AudioInfo) FrameSize() int {
	return a.Channels * 2
}

// SourceInfo is what a Demuxer knows about its container after opening it.
type SourceInfo struct {
	Duration time.Duration
	Video    *VideoInfo
	Audio    *AudioInfo
}

// Has reports whether the source carries a track of the given kind.
func (s SourceInfo) Has(kind TrackKind) bool {
	switch kind {
	case TrackVideo:
		return s.Video != nil
	case TrackAudio:
		return s.Audio != nil
	}
	return false
}

// Tracks lists the track kinds present, video first.
func (s SourceInfo) Tracks() []TrackKind {
	var kinds []TrackKind
	if s.Video != nil {
		kinds = append(kinds, TrackVideo)
	}
	if s.Audio != nil {
		kinds = append(kinds, TrackAudio)
	}
	return kinds
}

// Sample is one decoded unit of media. Video samples carry Frame, audio
// samples carry Data. Whoever holds a sample owns it until Release is called.
type Sample struct {
	Kind     TrackKind
	PTS      time.Duration
	Duration time.Duration
	Frame    *image.RGBA
	Data     []byte

	releaseOnce sync.Once
	release     func()
}

// NewVideoSample wraps a decoded frame. release may be nil.
func NewVideoSample(frame *image.RGBA, pts, duration time.Duration, release func()) *Sample {
	return &Sample{Kind: TrackVideo, PTS: pts, Duration: duration, Frame: frame, release: release}
}

// NewAudioSample wraps a chunk of PCM. release may be nil.
func NewAudioSample(data []byte, pts, duration time.Duration, release func()) *Sample {
	return &Sample{Kind: TrackAudio, PTS: pts, Duration: duration, Data: data, release: release}
}

// End is the presentation time right after the sample.
func (s *Sample) End() time.Duration {
	return s.PTS + s.Duration
}

// Release hands the sample's buffers back to its producer. It is safe to call
// more than once.
func (s *Sample) Release() {
	if s == nil {
		return
	}
	s.releaseOnce.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}
