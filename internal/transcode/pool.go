package transcode

import (
	"errors"
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// ErrPoolExhausted is returned by FramePool.Get when every buffer is checked out.
var ErrPoolExhausted = errors.New("frame pool exhausted")

// DefaultPoolCapacity is the number of frames a muxer input keeps in flight.
const DefaultPoolCapacity = 4

// FramePool is a bounded set of reusable RGBA frames sized to the output
// geometry. It never blocks: Get fails when the pool is empty and at capacity.
type FramePool struct {
	width    int
	height   int
	capacity int

	mu         sync.Mutex
	free       []*image.RGBA
	checkedOut map[*image.RGBA]struct{}
	checkouts  uint64
	exhausted  uint64
}

// NewFramePool returns a pool of at most capacity width×height frames.
func NewFramePool(width, height, capacity int) *FramePool {
	if capacity <= 0 {
		capacity = DefaultPoolCapacity
	}
	return &FramePool{
		width:      width,
		height:     height,
		capacity:   capacity,
		checkedOut: make(map[*image.RGBA]struct{}, capacity),
	}
}

func (p *FramePool) Width() int { return p.width }
func (p *FramePool) Height() int { return p.height }
func (p *FramePool) Capacity() int { return p.capacity }

// Get checks out a frame. Its contents are undefined.
func (p *FramePool) Get() (*image.RGBA, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var img *image.RGBA
	switch {
	case len(p.free) > 0:
		img = p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
	case len(p.free)+len(p.checkedOut) < p.capacity:
		img = image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	default:
		p.exhausted++
		return nil, ErrPoolExhausted
	}
	p.checkedOut[img] = struct{}{}
	p.checkouts++
	return img, nil
}

// Put returns a frame obtained from Get. Frames the pool did not hand out are
// ignored and false is returned.
func (p *FramePool) Put(img *image.RGBA) bool {
	if img == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.checkedOut[img]; !ok {
		return false
	}
	delete(p.checkedOut, img)
	p.free = append(p.free, img)
	return true
}

// Owns reports whether img is currently checked out from this pool.
func (p *FramePool) Owns(img *image.RGBA) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.checkedOut[img]
	return ok
}

// Outstanding is the number of frames currently checked out.
func (p *FramePool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.checkedOut)
}

// Stats returns the total number of successful checkouts and of Get calls
// that failed with ErrPoolExhausted.
func (p *FramePool) Stats() (checkouts, exhausted uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkouts, p.exhausted
}

// Fits reports whether img already has the pool's dimensions.
func (p *FramePool) Fits(img image.Image) bool {
	b := img.Bounds()
	return b.Dx() == p.width && b.Dy() == p.height
}

// Conform scales img into a pool frame.
func (p *FramePool) Conform(img image.Image) (*image.RGBA, error) {
	dst, err := p.Get()
	if err != nil {
		return nil, err
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst, nil
}
