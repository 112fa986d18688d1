package filters

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"video-rewrite/internal/logging"
	"video-rewrite/internal/transcode"
)

// adjustment renders a whole frame with imaging and copies the result into a
// pool frame.
type adjustment func(img image.Image) *image.NRGBA

func (f adjustment) Apply(frame *image.RGBA, pool *transcode.FramePool) *image.RGBA {
	dst, err := pool.Get()
	if err != nil {
		logging.Debug("Filter skipped a frame: %v", err)
		return nil
	}
	out := f(frame)
	draw.Draw(dst, dst.Bounds(), out, out.Bounds().Min, draw.Src)
	return dst
}

func imagingVariant(name, description string, f adjustment) Variant {
	return Variant{
		Name:        name,
		Description: description,
		Engine:      "imaging",
		New:         func() transcode.FrameFilter { return f },
	}
}

func imagingVariants() []Variant {
	return []Variant{
		imagingVariant("mono", "Grayscale", func(img image.Image) *image.NRGBA {
			return imaging.Grayscale(img)
		}),
		imagingVariant("noir", "High contrast black and white", func(img image.Image) *image.NRGBA {
			return imaging.AdjustContrast(imaging.Grayscale(img), 35)
		}),
		imagingVariant("vivid", "Boosted saturation and contrast", func(img image.Image) *image.NRGBA {
			return imaging.AdjustContrast(imaging.AdjustSaturation(img, 40), 10)
		}),
		imagingVariant("fade", "Lifted blacks, low contrast", func(img image.Image) *image.NRGBA {
			return imaging.AdjustBrightness(imaging.AdjustContrast(img, -25), 8)
		}),
		imagingVariant("warm", "Shifted toward orange", func(img image.Image) *image.NRGBA {
			return imaging.AdjustFunc(img, shift(18, 4, -14))
		}),
		imagingVariant("cool", "Shifted toward blue", func(img image.Image) *image.NRGBA {
			return imaging.AdjustFunc(img, shift(-14, 2, 18))
		}),
		imagingVariant("sepia", "Old photograph", func(img image.Image) *image.NRGBA {
			return imaging.AdjustFunc(img, sepia)
		}),
		imagingVariant("soft", "Gaussian blur", func(img image.Image) *image.NRGBA {
			return imaging.Blur(img, 1.5)
		}),
		imagingVariant("crisp", "Unsharp mask", func(img image.Image) *image.NRGBA {
			return imaging.Sharpen(img, 1.2)
		}),
		imagingVariant("bright", "Gamma lift", func(img image.Image) *image.NRGBA {
			return imaging.AdjustGamma(img, 1.4)
		}),
		imagingVariant("invert", "Negative", func(img image.Image) *image.NRGBA {
			return imaging.Invert(img)
		}),
	}
}

func shift(dr, dg, db int) func(color.NRGBA) color.NRGBA {
	return func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clamp8(int(c.R) + dr),
			G: clamp8(int(c.G) + dg),
			B: clamp8(int(c.B) + db),
			A: c.A,
		}
	}
}

func sepia(c color.NRGBA) color.NRGBA {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	return color.NRGBA{
		R: clamp8(int(0.393*r + 0.769*g + 0.189*b)),
		G: clamp8(int(0.349*r + 0.686*g + 0.168*b)),
		B: clamp8(int(0.272*r + 0.534*g + 0.131*b)),
		A: c.A,
	}
}

func clamp8(v int) uint8 {
	return uint8(min(max(v, 0), 255))
}
