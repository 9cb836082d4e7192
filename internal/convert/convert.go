// Package convert turns decoded pictures into packed RGBA images, optionally
// downscaled to fit a bounding size.
package convert

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/asticode/go-astiav"
	"github.com/nfnt/resize"

	"github.com/filegate/framegrab/internal/media"
)

// Resampler selects how a picture is downscaled
type Resampler string

const (
	// Bilinear converts and scales in a single swscale pass
	Bilinear Resampler = "bilinear"
	// Lanczos converts with swscale at source size, then resamples with Lanczos3
	Lanczos Resampler = "lanczos"
)

// ParseResampler validates a resampler name. The empty string selects Bilinear.
func ParseResampler(name string) (Resampler, error) {
	switch Resampler(name) {
	case "", Bilinear:
		return Bilinear, nil
	case Lanczos:
		return Lanczos, nil
	default:
		return "", fmt.Errorf("unknown resampler %q", name)
	}
}

var (
	// ErrInvalidSize is wrapped in a ConversionError for negative bounds or empty targets
	ErrInvalidSize = errors.New("invalid target size")
	// ErrPixelFormat is wrapped in a ConversionError when the picture has no pixel format
	ErrPixelFormat = errors.New("picture has no pixel format")
)

// ConversionError reports a failed pixel format conversion or scale
type ConversionError struct {
	Op  string
	Err error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert: %s: %v", e.Op, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Options controls Convert
type Options struct {
	// MaxSize bounds the longer output dimension, 0 disables downscaling
	MaxSize int
	// Resampler defaults to Bilinear
	Resampler Resampler
	// SquarePixels stretches anamorphic pictures by their sample aspect ratio
	SquarePixels bool
}

// ValidateMaxSize rejects negative bounds
func ValidateMaxSize(maxSize int) error {
	if maxSize < 0 {
		return &ConversionError{Op: "fit", Err: fmt.Errorf("%w: max size %d", ErrInvalidSize, maxSize)}
	}
	return nil
}

// Fit returns the dimensions of a w x h picture scaled so its longer side is
// at most maxSize. Pictures already within bounds, or a maxSize of 0, are left
// unchanged. Each side is rounded independently and never drops below 1.
func Fit(w, h, maxSize int) (int, int) {
	longer := max(w, h)
	if maxSize <= 0 || longer <= maxSize {
		return w, h
	}

	scale := float64(maxSize) / float64(longer)
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	return max(nw, 1), max(nh, 1)
}

// DisplaySize applies a sample aspect ratio to storage dimensions, widening
// when SAR > 1 and heightening when SAR < 1
func DisplaySize(w, h int, sar media.Rational) (int, int) {
	if sar.Num <= 0 || sar.Den <= 0 || sar.Num == sar.Den {
		return w, h
	}
	if sar.Num > sar.Den {
		return int(math.Round(float64(w) * float64(sar.Num) / float64(sar.Den))), h
	}
	return w, int(math.Round(float64(h) * float64(sar.Den) / float64(sar.Num)))
}

// Convert converts pic to RGBA at its final size. The conversion always runs
// through swscale, even for pictures that are already RGB, so the output has
// a single packed plane.
func Convert(pic *media.Picture, opts Options) (*image.RGBA, error) {
	if err := ValidateMaxSize(opts.MaxSize); err != nil {
		return nil, err
	}
	if pic.PixelFormat() == astiav.PixelFormatNone {
		return nil, &ConversionError{Op: "init", Err: ErrPixelFormat}
	}

	srcW, srcH := pic.Width(), pic.Height()
	if srcW <= 0 || srcH <= 0 {
		return nil, &ConversionError{Op: "init", Err: fmt.Errorf("%w: source %dx%d", ErrInvalidSize, srcW, srcH)}
	}

	w, h := srcW, srcH
	if opts.SquarePixels {
		w, h = DisplaySize(w, h, pic.SampleAspectRatio())
	}
	w, h = Fit(w, h, opts.MaxSize)

	switch opts.Resampler {
	case "", Bilinear:
		return scale(pic.Frame(), w, h)
	case Lanczos:
		img, err := scale(pic.Frame(), srcW, srcH)
		if err != nil {
			return nil, err
		}
		return Resample(img, w, h), nil
	default:
		return nil, &ConversionError{Op: "init", Err: fmt.Errorf("unknown resampler %q", opts.Resampler)}
	}
}

// Resample scales img to w x h with Lanczos3. Same size images are returned as is.
func Resample(img *image.RGBA, w, h int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}

	out := resize.Resize(uint(w), uint(h), img, resize.Lanczos3)
	if rgba, ok := out.(*image.RGBA); ok {
		return rgba
	}

	// resize keeps RGBA inputs as RGBA; this covers any other concrete type
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rgba.Set(x, y, out.At(out.Bounds().Min.X+x, out.Bounds().Min.Y+y))
		}
	}
	return rgba
}

func scale(src *astiav.Frame, w, h int) (*image.RGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, &ConversionError{Op: "init", Err: fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)}
	}

	ssc, err := astiav.CreateSoftwareScaleContext(
		src.Width(), src.Height(), src.PixelFormat(),
		w, h, astiav.PixelFormatRgba,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return nil, &ConversionError{Op: "init", Err: fmt.Errorf("scaler failed to initialize: %w", err)}
	}
	defer ssc.Free()

	dst := astiav.AllocFrame()
	defer dst.Free()
	dst.SetWidth(w)
	dst.SetHeight(h)
	dst.SetPixelFormat(astiav.PixelFormatRgba)
	if err := dst.AllocBuffer(1); err != nil {
		return nil, &ConversionError{Op: "alloc", Err: err}
	}

	if err := ssc.ScaleFrame(src, dst); err != nil {
		return nil, &ConversionError{Op: "scale", Err: err}
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := dst.Data().ToImage(img); err != nil {
		return nil, &ConversionError{Op: "copy", Err: err}
	}
	return img, nil
}
