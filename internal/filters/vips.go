package filters

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"video-rewrite/internal/logging"
	"video-rewrite/internal/transcode"
)

// ErrVipsShutdown is returned once libvips has been shut down; govips cannot
// start it a second time in one process.
var ErrVipsShutdown = errors.New("libvips was shut down and cannot be restarted")

// libvips is process-wide. Contexts hold references; the last Close shuts it
// down for good.
var (
	vipsMu       sync.Mutex
	vipsRefs     int
	vipsStarted  bool
	vipsStopped  bool
	vipsStartup  = startVips
	vipsShutdown = vips.Shutdown
)

// RenderContext carries the rendering engines available to filters.
type RenderContext struct {
	vips bool
}

// NewRenderContext starts libvips when useVips is set. Contexts share the one
// libvips instance a process can hold.
func NewRenderContext(useVips bool) *RenderContext {
	rc := &RenderContext{}
	if useVips {
		if err := InitVips(); err != nil {
			logging.Warn("libvips unavailable, vips filters disabled: %v", err)
		} else {
			rc.vips = true
		}
	}
	return rc
}

// VipsAvailable reports whether vips-backed variants can be used.
func (rc *RenderContext) VipsAvailable() bool {
	return rc != nil && rc.vips
}

// Close drops this context's libvips reference. Safe to call twice.
func (rc *RenderContext) Close() {
	if rc.VipsAvailable() {
		ShutdownVips()
		rc.vips = false
	}
}

// vipsLogThreshold maps our level to the least severe libvips level worth forwarding.
func vipsLogThreshold(level logging.LogLevel) vips.LogLevel {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelWarn:
		return vips.LogLevelError
	case logging.LevelError:
		return vips.LogLevelCritical
	default:
		return vips.LogLevelWarning
	}
}

func forwardVipsLog(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}

// InitVips takes a reference on libvips, starting it on first use and routing
// its log output through the logging package.
func InitVips() error {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsStopped {
		return ErrVipsShutdown
	}
	if !vipsStarted {
		if err := vipsStartup(); err != nil {
			return err
		}
		vipsStarted = true
	}
	vipsRefs++
	return nil
}

// ShutdownVips releases one reference. Releasing the last one shuts libvips
// down; later InitVips calls fail with ErrVipsShutdown.
func ShutdownVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsRefs == 0 {
		return
	}
	vipsRefs--
	if vipsRefs == 0 && vipsStarted {
		vipsShutdown()
		vipsStarted = false
		vipsStopped = true
		logging.Info("libvips shutdown complete")
	}
}

// startVips panics inside govips when vips_init fails; that becomes an error.
func startVips() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("libvips startup failed: %v", r)
		}
	}()

	vips.LoggingSettings(forwardVipsLog, vipsLogThreshold(logging.GetLevel()))

	// Frames are processed one at a time per run; keep the operation cache small.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      32 * 1024 * 1024,
		MaxCacheSize:     16,
	})

	logging.Info("libvips initialized (version: %s)", vips.Version)
	return nil
}

// modulate adjusts brightness and saturation in LCh space with libvips.
type modulate struct {
	brightness float64
	saturation float64
}

func (m modulate) Apply(frame *image.RGBA, pool *transcode.FramePool) *image.RGBA {
	dst, err := pool.Get()
	if err != nil {
		logging.Debug("Filter skipped a frame: %v", err)
		return nil
	}
	out, err := m.render(frame)
	if err != nil {
		pool.Put(dst)
		logging.Warn("vips filter failed, writing the original frame: %v", err)
		return nil
	}
	draw.Draw(dst, dst.Bounds(), out, out.Bounds().Min, draw.Src)
	return dst
}

func (m modulate) render(frame *image.RGBA) (image.Image, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.PNG, imaging.PNGCompressionLevel(png.NoCompression)); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load frame: %w", err)
	}
	defer ref.Close()

	if err := ref.Modulate(m.brightness, m.saturation, 0); err != nil {
		return nil, fmt.Errorf("vips modulate failed: %w", err)
	}

	params := vips.NewPngExportParams()
	params.Compression = 0
	data, _, err := ref.ExportPng(params)
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}
	return imaging.Decode(bytes.NewReader(data))
}

func vipsVariants() []Variant {
	variant := func(name, description string, m modulate) Variant {
		return Variant{
			Name:        name,
			Description: description,
			Engine:      "vips",
			New:         func() transcode.FrameFilter { return m },
		}
	}
	return []Variant{
		variant("vips-vibrant", "libvips saturation boost", modulate{brightness: 1.05, saturation: 1.4}),
		variant("vips-muted", "libvips desaturated, slightly dark", modulate{brightness: 0.95, saturation: 0.6}),
	}
}
