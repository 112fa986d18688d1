package transcode

import "image"

// FrameFilter transforms one decoded video frame.
//
// Apply must not retain frame after it returns. It returns a new frame,
// normally checked out of pool, or nil to pass frame through unchanged.
// A frame whose size differs from the pool geometry is scaled to fit before
// it is written.
type FrameFilter interface {
	Apply(frame *image.RGBA, pool *FramePool) *image.RGBA
}

// FilterFunc adapts a function to FrameFilter.
type FilterFunc func(frame *image.RGBA, pool *FramePool) *image.RGBA

func (f FilterFunc) Apply(frame *image.RGBA, pool *FramePool) *image.RGBA {
	return f(frame, pool)
}

type passThrough struct{}

func (passThrough) Apply(*image.RGBA, *FramePool) *image.RGBA { return nil }

// PassThrough writes every frame unchanged.
var PassThrough FrameFilter = passThrough{}

// AudioTransform edits one audio sample. Returning nil or the input sample
// writes the input unchanged. A returned sample must keep the input PTS.
type AudioTransform interface {
	Transform(sample *Sample) *Sample
}

// AudioFunc adapts a function to AudioTransform.
type AudioFunc func(sample *Sample) *Sample

func (f AudioFunc) Transform(sample *Sample) *Sample {
	return f(sample)
}

type identityAudio struct{}

func (identityAudio) Transform(*Sample) *Sample { return nil }

// IdentityAudio writes every audio sample unchanged.
var IdentityAudio AudioTransform = identityAudio{}
