package filters

import (
	"errors"
	"fmt"
	"sync"

	"video-rewrite/internal/transcode"
)

// Normal is the pass-through variant. It is always registered first.
const Normal = "normal"

// ErrUnknownFilter is returned for names the catalog does not hold.
var ErrUnknownFilter = errors.New("unknown filter")

// Variant is one named filter.
type Variant struct {
	Name        string
	Description string
	// Engine is the rendering backend, "none", "imaging" or "vips".
	Engine string
	New    func() transcode.FrameFilter
}

// Catalog holds the filter variants in registration order.
type Catalog struct {
	mu       sync.RWMutex
	variants []Variant
	index    map[string]int
}

// NewCatalog returns a catalog holding the built-in variants. rc may be nil,
// in which case only the engine-independent variants are registered.
func NewCatalog(rc *RenderContext) *Catalog {
	c := &Catalog{index: make(map[string]int)}
	c.mustRegister(Variant{
		Name:        Normal,
		Description: "Original frames, unchanged",
		Engine:      "none",
		New:         func() transcode.FrameFilter { return transcode.PassThrough },
	})
	for _, v := range imagingVariants() {
		c.mustRegister(v)
	}
	if rc.VipsAvailable() {
		for _, v := range vipsVariants() {
			c.mustRegister(v)
		}
	}
	return c
}

func (c *Catalog) mustRegister(v Variant) {
	if err := c.Register(v); err != nil {
		panic(err)
	}
}

// Register appends a variant. Names must be unique and non-empty.
func (c *Catalog) Register(v Variant) error {
	if v.Name == "" || v.New == nil {
		return fmt.Errorf("filter variant needs a name and a constructor")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.index[v.Name]; exists {
		return fmt.Errorf("filter %q already registered", v.Name)
	}
	c.index[v.Name] = len(c.variants)
	c.variants = append(c.variants, v)
	return nil
}

// Names lists variant names in registration order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.variants))
	for i, v := range c.variants {
		names[i] = v.Name
	}
	return names
}

// Variants returns a copy of all variants in registration order.
func (c *Catalog) Variants() []Variant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Variant(nil), c.variants...)
}

// Lookup finds a variant by name.
func (c *Catalog) Lookup(name string) (Variant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[name]
	if !ok {
		return Variant{}, false
	}
	return c.variants[i], true
}

// New builds a fresh filter for name. An empty name selects Normal.
func (c *Catalog) New(name string) (transcode.FrameFilter, error) {
	if name == "" {
		name = Normal
	}
	v, ok := c.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, name)
	}
	return v.New(), nil
}
