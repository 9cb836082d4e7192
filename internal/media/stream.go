package media

import (
	"fmt"

	"github.com/asticode/go-astiav"
)

// MediaType is the kind of an elementary stream
type MediaType string

const (
	TypeVideo      MediaType = "video"
	TypeAudio      MediaType = "audio"
	TypeData       MediaType = "data"
	TypeSubtitle   MediaType = "subtitle"
	TypeAttachment MediaType = "attachment"
	TypeUnknown    MediaType = "unknown"
)

// Rational is an exact fraction as stored by the container
type Rational struct {
	Num int `json:"num"`
	Den int `json:"den"`
}

// Float64 returns the value of r, or 0 when the denominator is zero
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d:%d", r.Num, r.Den)
}

// StreamInfo describes one elementary stream. Width, Height, SampleAspectRatio
// and PixelFormat are only populated for video streams.
type StreamInfo struct {
	Index             int
	Type              MediaType
	Codec             string
	Width             int
	Height            int
	SampleAspectRatio Rational
	PixelFormat       string

	// TimeBase is the unit of StartTime and DurationTS
	TimeBase   Rational
	StartTime  int64
	DurationTS int64
}

// Duration returns the stream duration in seconds, or 0 if unknown
func (si StreamInfo) Duration() float64 {
	if si.DurationTS <= 0 || si.DurationTS == noPts {
		return 0
	}
	return float64(si.DurationTS) * si.TimeBase.Float64()
}

// SelectVideoStream returns the first video stream in container order
func SelectVideoStream(s *Session) (StreamInfo, error) {
	streams, err := s.Streams()
	if err != nil {
		return StreamInfo{}, err
	}
	for _, si := range streams {
		if si.Type == TypeVideo {
			return si, nil
		}
	}
	return StreamInfo{}, ErrNoVideoStream
}

func mediaTypeOf(mt astiav.MediaType) MediaType {
	switch mt {
	case astiav.MediaTypeVideo:
		return TypeVideo
	case astiav.MediaTypeAudio:
		return TypeAudio
	case astiav.MediaTypeData:
		return TypeData
	case astiav.MediaTypeSubtitle:
		return TypeSubtitle
	case astiav.MediaTypeAttachment:
		return TypeAttachment
	default:
		return TypeUnknown
	}
}

func rationalOf(r astiav.Rational) Rational {
	return Rational{Num: r.Num(), Den: r.Den()}
}

func newStreamInfo(st *astiav.Stream) StreamInfo {
	cp := st.CodecParameters()

	si := StreamInfo{
		Index:      st.Index(),
		Type:       mediaTypeOf(cp.MediaType()),
		TimeBase:   rationalOf(st.TimeBase()),
		StartTime:  st.StartTime(),
		DurationTS: st.Duration(),
	}

	// avcodec_get_name reports "none" for AV_CODEC_ID_NONE
	if name := cp.CodecID().Name(); name != "none" {
		si.Codec = name
	}

	if si.Type == TypeVideo {
		si.Width = cp.Width()
		si.Height = cp.Height()
		si.PixelFormat = cp.PixelFormat().String()

		// The stream value wins; codec parameters only fill in when the container has none
		sar := rationalOf(st.SampleAspectRatio())
		if sar.Num == 0 {
			sar = rationalOf(cp.SampleAspectRatio())
		}
		if sar.Den == 0 {
			sar = Rational{Num: 0, Den: 1}
		}
		si.SampleAspectRatio = sar
	}

	return si
}
