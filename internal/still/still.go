// Package still encodes RGBA pictures to JPEG, PNG or WebP files.
package still

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
)

// Format is a still image output format
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	WebP Format = "webp"
)

// DefaultJPEGQuality applies when no quality is requested
const DefaultJPEGQuality = 90

var (
	// ErrUnsupportedFormat is wrapped in an EncodeError for unknown or disabled formats
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrQualityRange is wrapped in an EncodeError for quality outside 0-100
	ErrQualityRange = errors.New("quality must be between 0 and 100")
)

// EncodeError reports a failed still image write
type EncodeError struct {
	Path   string
	Format Format
	Err    error
}

func (e *EncodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("encode %s to %s: %v", e.Format, e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// ParseFormat maps a format name to a Format. It accepts jpg, jpeg, png and
// webp in any case, with or without a leading dot.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "jpg", "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	default:
		return "", &EncodeError{Format: Format(name), Err: ErrUnsupportedFormat}
	}
}

// FormatFromPath infers the format from the file extension
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", &EncodeError{Path: path, Err: fmt.Errorf("%w: no file extension", ErrUnsupportedFormat)}
	}
	f, err := ParseFormat(ext)
	if err != nil {
		return "", &EncodeError{Path: path, Format: Format(ext), Err: ErrUnsupportedFormat}
	}
	return f, nil
}

// ValidateQuality rejects a quality outside 0-100. A nil quality is valid.
func ValidateQuality(quality *int) error {
	if quality != nil && (*quality < 0 || *quality > 100) {
		return fmt.Errorf("%w: got %d", ErrQualityRange, *quality)
	}
	return nil
}

// Encoder writes still images in the formats it was built with
type Encoder struct {
	formats map[Format]bool
}

// NewEncoder returns an encoder limited to formats, or to every known format
// when none are given
func NewEncoder(formats ...Format) *Encoder {
	if len(formats) == 0 {
		formats = []Format{JPEG, PNG, WebP}
	}
	e := &Encoder{formats: make(map[Format]bool, len(formats))}
	for _, f := range formats {
		e.formats[f] = true
	}
	return e
}

// Supports reports whether f can be encoded
func (e *Encoder) Supports(f Format) bool {
	return e.formats[f]
}

// Check validates format and quality without encoding anything
func (e *Encoder) Check(f Format, quality *int) error {
	if !e.Supports(f) {
		return &EncodeError{Format: f, Err: ErrUnsupportedFormat}
	}
	if err := ValidateQuality(quality); err != nil {
		return &EncodeError{Format: f, Err: err}
	}
	return nil
}

// Write encodes img to w
func (e *Encoder) Write(w io.Writer, img image.Image, f Format, quality *int) error {
	if err := e.Check(f, quality); err != nil {
		return err
	}
	if err := encode(w, img, f, quality); err != nil {
		return &EncodeError{Format: f, Err: err}
	}
	return nil
}

// Save encodes img to path, replacing any existing file. The image is written
// to a temporary file next to path and renamed into place, so a failed save
// leaves nothing behind. It returns the dimensions written.
func (e *Encoder) Save(img image.Image, path string, f Format, quality *int) (int, int, error) {
	if err := e.Check(f, quality); err != nil {
		var ee *EncodeError
		if errors.As(err, &ee) {
			ee.Path = path
		}
		return 0, 0, err
	}

	dir, base := filepath.Split(path)
	tmp := filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")

	if err := writeFile(tmp, img, f, quality); err != nil {
		os.Remove(tmp)
		return 0, 0, &EncodeError{Path: path, Format: f, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, 0, &EncodeError{Path: path, Format: f, Err: err}
	}

	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

func writeFile(path string, img image.Image, f Format, quality *int) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(file)
	if err := encode(bw, img, f, quality); err != nil {
		file.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func encode(w io.Writer, img image.Image, f Format, quality *int) error {
	switch f {
	case JPEG:
		q := DefaultJPEGQuality
		if quality != nil {
			q = max(*quality, 1)
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	case PNG:
		enc := png.Encoder{CompressionLevel: pngCompression(quality)}
		return enc.Encode(w, img)
	case WebP:
		// 100 selects lossless, anything lower is lossy at that quality
		opts := &webp.Options{Quality: DefaultJPEGQuality}
		if quality != nil {
			opts.Quality = float32(*quality)
			opts.Lossless = *quality == 100
		}
		return webp.Encode(w, img, opts)
	default:
		return ErrUnsupportedFormat
	}
}

// pngCompression maps a 0-100 quality onto zlib effort
func pngCompression(quality *int) png.CompressionLevel {
	switch {
	case quality == nil:
		return png.DefaultCompression
	case *quality <= 33:
		return png.BestSpeed
	case *quality <= 66:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}
