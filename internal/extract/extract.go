// Package extract runs the frame extraction pipeline: select the video
// stream, seek, decode one picture, convert it and encode a still image.
package extract

import (
	"errors"
	"image"
	"io"

	alog "github.com/anacrolix/log"

	"github.com/filegate/framegrab/internal/convert"
	"github.com/filegate/framegrab/internal/media"
	"github.com/filegate/framegrab/internal/still"
)

// Request holds the parameters of one extraction
type Request struct {
	// Format overrides the format inferred from the destination extension
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	// Offset is a percentage of the duration, nil for the stream start
	Offset *int `json:"offset,omitempty" yaml:"offset,omitempty"`
	// MaxSize bounds the longer output side, 0 for no downscaling
	MaxSize int `json:"max_size,omitempty" yaml:"max_size,omitempty"`
	// Quality is 0-100, nil for the encoder default
	Quality *int `json:"quality,omitempty" yaml:"quality,omitempty"`

	Resampler    convert.Resampler `json:"resampler,omitempty" yaml:"resampler,omitempty"`
	SquarePixels bool              `json:"square_pixels,omitempty" yaml:"square_pixels,omitempty"`
	// StrictSeek fails the extraction when the demuxer rejects a seek instead
	// of decoding from the current position
	StrictSeek bool `json:"strict_seek,omitempty" yaml:"strict_seek,omitempty"`
}

// Result describes the image that was written
type Result struct {
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Format still.Format `json:"format"`
	// PTS is the decoded picture's timestamp in the stream time base
	PTS int64 `json:"pts"`
	// Time is PTS in seconds, 0 when the picture carried no timestamp
	Time float64 `json:"time"`
}

// Config configures an Extractor
type Config struct {
	// Encoder defaults to one that supports every format
	Encoder *still.Encoder
	// Logger defaults to a logger named "extract"
	Logger *alog.Logger
}

// Extractor turns sessions into still images. It holds no per-session state
// and may be shared between goroutines working on separate sessions.
type Extractor struct {
	encoder *still.Encoder
	logger  alog.Logger
}

// New creates an Extractor
func New(cfg Config) *Extractor {
	e := &Extractor{encoder: cfg.Encoder, logger: alog.NewLogger("extract")}
	if e.encoder == nil {
		e.encoder = still.NewEncoder()
	}
	if cfg.Logger != nil {
		e.logger = *cfg.Logger
	}
	return e
}

// Encoder returns the still encoder used for output
func (e *Extractor) Encoder() *still.Encoder {
	return e.encoder
}

// SaveFrame extracts one picture from s and writes it to dst. The format comes
// from req.Format when set, otherwise from the dst extension.
func (e *Extractor) SaveFrame(s *media.Session, dst string, req Request) (Result, error) {
	if s.Closed() {
		return Result{}, media.ErrClosed
	}

	format, err := ResolveFormat(dst, req.Format)
	if err != nil {
		return Result{}, err
	}
	if err := e.validate(format, req); err != nil {
		var ee *still.EncodeError
		if errors.As(err, &ee) {
			ee.Path = dst
		}
		return Result{}, err
	}

	img, res, err := e.render(s, req)
	if err != nil {
		return Result{}, err
	}
	res.Format = format

	res.Width, res.Height, err = e.encoder.Save(img, dst, format, req.Quality)
	if err != nil {
		return Result{}, err
	}

	e.logger.Levelf(alog.Debug, "saved %dx%d %s frame of %s to %s", res.Width, res.Height, format, s.Path(), dst)
	return res, nil
}

// WriteFrame extracts one picture from s and encodes it to w. req.Format is
// ignored in favor of format.
func (e *Extractor) WriteFrame(s *media.Session, w io.Writer, format still.Format, req Request) (Result, error) {
	if s.Closed() {
		return Result{}, media.ErrClosed
	}
	if err := e.validate(format, req); err != nil {
		return Result{}, err
	}

	img, res, err := e.render(s, req)
	if err != nil {
		return Result{}, err
	}
	res.Format = format

	if err := e.encoder.Write(w, img, format, req.Quality); err != nil {
		return Result{}, err
	}

	b := img.Bounds()
	res.Width, res.Height = b.Dx(), b.Dy()
	return res, nil
}

// ExtractFile opens src, saves one frame to dst and closes src again
func (e *Extractor) ExtractFile(src, dst string, req Request) (res Result, err error) {
	err = media.WithSession(src, func(s *media.Session) error {
		res, err = e.SaveFrame(s, dst, req)
		return err
	}, media.WithLogger(e.logger.WithNames("media")))
	return res, err
}

// ResolveFormat returns the output format for dst, honoring an explicit override
func ResolveFormat(dst, override string) (still.Format, error) {
	if override != "" {
		f, err := still.ParseFormat(override)
		if err != nil {
			var ee *still.EncodeError
			if errors.As(err, &ee) {
				ee.Path = dst
			}
			return "", err
		}
		return f, nil
	}
	return still.FormatFromPath(dst)
}

// validate rejects a request before any decoding work is done
func (e *Extractor) validate(format still.Format, req Request) error {
	if err := e.encoder.Check(format, req.Quality); err != nil {
		return err
	}
	if req.Offset != nil {
		if err := media.ValidateOffset(*req.Offset); err != nil {
			return err
		}
	}
	if err := convert.ValidateMaxSize(req.MaxSize); err != nil {
		return err
	}
	if _, err := convert.ParseResampler(string(req.Resampler)); err != nil {
		return &convert.ConversionError{Op: "init", Err: err}
	}
	return nil
}

func (e *Extractor) render(s *media.Session, req Request) (*image.RGBA, Result, error) {
	si, err := media.SelectVideoStream(s)
	if err != nil {
		return nil, Result{}, err
	}

	if _, err := s.Seek(si, req.Offset); err != nil {
		var se *media.SeekError
		if req.StrictSeek || !errors.As(err, &se) || errors.Is(err, media.ErrOffsetRange) {
			return nil, Result{}, err
		}
		e.logger.Levelf(alog.Warning, "%v, decoding from current position", err)
	}

	pic, err := s.DecodePicture(si)
	if err != nil {
		return nil, Result{}, err
	}
	defer pic.Free()

	img, err := convert.Convert(pic, convert.Options{
		MaxSize:      req.MaxSize,
		Resampler:    req.Resampler,
		SquarePixels: req.SquarePixels,
	})
	if err != nil {
		return nil, Result{}, err
	}

	res := Result{PTS: pic.PTS()}
	if t, ok := pic.Time(); ok {
		res.Time = t
	}
	return img, res, nil
}
