package media

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by every operation on a closed Session, including a second Close
	ErrClosed = errors.New("media: session is closed")
	// ErrNoVideoStream is returned when the container has no video stream
	ErrNoVideoStream = errors.New("media: no video stream")
	// ErrNoDecoder is wrapped in a DecodeError when no decoder exists for the stream codec
	ErrNoDecoder = errors.New("no suitable decoder")
	// ErrNoFrame is wrapped in a DecodeError when the stream ends before a picture is decoded
	ErrNoFrame = errors.New("no decodable frame before end of stream")
	// ErrOffsetRange is wrapped in a SeekError for offsets outside 0-100
	ErrOffsetRange = errors.New("offset must be between 0 and 100")

	errInvalidTimeBase = errors.New("stream has no usable time base")
)

// OpenError reports a container that could not be read or probed
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("media: can't open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// SeekError reports an invalid offset or a seek rejected by the demuxer
type SeekError struct {
	Offset    int
	Timestamp int64
	Err       error
}

func (e *SeekError) Error() string {
	return fmt.Sprintf("media: seek to %d%% (ts %d) failed: %v", e.Offset, e.Timestamp, e.Err)
}

func (e *SeekError) Unwrap() error { return e.Err }

// DecodeError reports that no picture could be decoded from a stream
type DecodeError struct {
	Stream int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("media: decoding stream %d failed: %v", e.Stream, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
