// Package media wraps an FFmpeg demuxer session: container metadata, video
// stream selection, keyframe seeking and single-picture decoding.
package media

import (
	"fmt"
	"math"
	"os"

	alog "github.com/anacrolix/log"
	"github.com/asticode/go-astiav"

	"github.com/filegate/framegrab/internal/probe"
)

const (
	// avTimeBase is AV_TIME_BASE, the unit of container level durations
	avTimeBase = 1000000
	// noPts is AV_NOPTS_VALUE
	noPts = math.MinInt64
)

func init() {
	if os.Getenv("FRAMEGRAB_AV_LOG") == "1" {
		astiav.SetLogLevel(astiav.LogLevelInfo)
		return
	}
	astiav.SetLogLevel(astiav.LogLevelQuiet)
}

// Session is one open media container.
//
// A Session is not safe for concurrent use. Callers must serialize every
// operation on a given Session; separate Sessions share no state and may be
// used from different goroutines.
type Session struct {
	path     string
	fc       *astiav.FormatContext
	format   string
	duration float64
	streams  []StreamInfo
	closed   bool
	logger   alog.Logger
}

// Option configures Open
type Option func(*Session)

// WithLogger sets the logger used for seek and decode diagnostics
func WithLogger(l alog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// Open opens and probes the container at path
func Open(path string, opts ...Option) (*Session, error) {
	s := &Session{path: path, logger: alog.NewLogger("media")}
	for _, opt := range opts {
		opt(s)
	}

	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, &OpenError{Path: path, Err: fmt.Errorf("failed to allocate format context")}
	}

	// avformat_open_input frees the context itself on failure
	if err := fc.OpenInput(path, nil, nil); err != nil {
		fc.Free()
		return nil, &OpenError{Path: path, Err: err}
	}

	if err := fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, &OpenError{Path: path, Err: fmt.Errorf("couldn't get stream info: %w", err)}
	}

	if fc.InputFormat() == nil {
		fc.CloseInput()
		fc.Free()
		return nil, &OpenError{Path: path, Err: fmt.Errorf("unrecognized container format")}
	}

	s.fc = fc
	s.format = fc.InputFormat().Name()
	for _, st := range fc.Streams() {
		s.streams = append(s.streams, newStreamInfo(st))
	}
	s.duration = s.bestEffortDuration()

	return s, nil
}

// WithSession opens path, passes the session to fn and closes it on every
// exit path, including a panic inside fn. The error from fn takes precedence
// over a close error.
func WithSession(path string, fn func(*Session) error, opts ...Option) (err error) {
	s, err := Open(path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		// fn may have closed the session itself
		if s.closed {
			return
		}
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

// Path returns the path the session was opened with
func (s *Session) Path() string {
	return s.path
}

// Format returns the demuxer name, which may list several comma separated
// names for ambiguous containers (e.g. "matroska,webm")
func (s *Session) Format() (string, error) {
	if s.closed {
		return "", ErrClosed
	}
	return s.format, nil
}

// Duration returns the container duration in seconds, 0 if it can't be determined
func (s *Session) Duration() (float64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	return s.duration, nil
}

// NbStreams returns the number of streams in the container
func (s *Session) NbStreams() (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	return len(s.streams), nil
}

// Streams returns the streams in container order. The slice is a copy.
func (s *Session) Streams() ([]StreamInfo, error) {
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]StreamInfo, len(s.streams))
	copy(out, s.streams)
	return out, nil
}

// Closed reports whether Close has been called
func (s *Session) Closed() bool {
	return s.closed
}

// Close releases the demuxer. Closing twice returns ErrClosed.
func (s *Session) Close() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.fc.CloseInput()
	s.fc.Free()
	s.fc = nil
	return nil
}

func (s *Session) bestEffortDuration() float64 {
	if d := s.fc.Duration(); d != noPts && d > 0 {
		return float64(d) / avTimeBase
	}

	var longest float64
	for _, si := range s.streams {
		if d := si.Duration(); d > longest {
			longest = d
		}
	}
	if longest > 0 {
		return longest
	}

	if d, err := probe.MP4Duration(s.path); err == nil {
		return d
	}

	s.logger.Levelf(alog.Debug, "no duration available for %s", s.path)
	return 0
}
