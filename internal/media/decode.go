package media

import (
	"errors"
	"fmt"

	alog "github.com/anacrolix/log"
	"github.com/asticode/go-astiav"
)

// maxDrainErrors caps the failed pulls while flushing the decoder at end of stream
const maxDrainErrors = 64

// Picture is one decoded video frame. It owns native memory and must be
// released with Free once converted.
type Picture struct {
	frame  *astiav.Frame
	stream StreamInfo
}

// Frame returns the underlying decoded frame
func (p *Picture) Frame() *astiav.Frame { return p.frame }

// Width returns the decoded width in pixels
func (p *Picture) Width() int { return p.frame.Width() }

// Height returns the decoded height in pixels
func (p *Picture) Height() int { return p.frame.Height() }

// PixelFormat returns the decoder's native pixel format
func (p *Picture) PixelFormat() astiav.PixelFormat { return p.frame.PixelFormat() }

// SampleAspectRatio returns the SAR of the stream the picture was decoded from
func (p *Picture) SampleAspectRatio() Rational { return p.stream.SampleAspectRatio }

// PTS returns the presentation timestamp in the stream time base
func (p *Picture) PTS() int64 { return p.frame.Pts() }

// Time returns the presentation time in seconds, false when the frame has no timestamp
func (p *Picture) Time() (float64, bool) {
	pts := p.frame.Pts()
	if pts == noPts {
		return 0, false
	}
	return float64(pts) * p.stream.TimeBase.Float64(), true
}

// Free releases the frame
func (p *Picture) Free() {
	if p.frame != nil {
		p.frame.Free()
		p.frame = nil
	}
}

// DecodePicture reads packets from the current position and returns the first
// picture the stream's decoder produces. Packets of other streams are dropped
// and a packet the decoder rejects is skipped. The decoder lives only for the
// duration of this call.
func (s *Session) DecodePicture(si StreamInfo) (*Picture, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if si.Index < 0 || si.Index >= len(s.streams) {
		return nil, &DecodeError{Stream: si.Index, Err: fmt.Errorf("no stream with index %d", si.Index)}
	}

	st := s.fc.Streams()[si.Index]
	codec := astiav.FindDecoder(st.CodecParameters().CodecID())
	if codec == nil {
		return nil, &DecodeError{Stream: si.Index, Err: ErrNoDecoder}
	}

	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, &DecodeError{Stream: si.Index, Err: fmt.Errorf("failed to allocate codec context")}
	}
	defer cc.Free()

	if err := st.CodecParameters().ToCodecContext(cc); err != nil {
		return nil, &DecodeError{Stream: si.Index, Err: fmt.Errorf("failed to copy codec parameters: %w", err)}
	}
	if err := cc.Open(codec, nil); err != nil {
		return nil, &DecodeError{Stream: si.Index, Err: fmt.Errorf("failed to initialize the decoder: %w", err)}
	}

	pkt := astiav.AllocPacket()
	defer pkt.Free()

	frame := astiav.AllocFrame()
	got := false
	defer func() {
		if !got {
			frame.Free()
		}
	}()

	skipped := 0
	for {
		if err := s.fc.ReadFrame(pkt); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				break
			}
			return nil, &DecodeError{Stream: si.Index, Err: fmt.Errorf("failed to read packet: %w", err)}
		}

		if pkt.StreamIndex() != si.Index {
			pkt.Unref()
			continue
		}

		err := cc.SendPacket(pkt)
		pkt.Unref()
		if err != nil && !errors.Is(err, astiav.ErrEagain) {
			skipped++
			s.logger.Levelf(alog.Debug, "skipping undecodable packet in stream %d: %v", si.Index, err)
			continue
		}

		// some decoders only report a broken packet when its frame is pulled
		ok, err := receive(cc, frame)
		if err != nil {
			skipped++
			s.logger.Levelf(alog.Debug, "skipping undecodable packet in stream %d: %v", si.Index, err)
			continue
		}
		if ok {
			got = true
			return &Picture{frame: frame, stream: si}, nil
		}
	}

	// Drain pictures the decoder is still holding back
	if err := cc.SendPacket(nil); err == nil {
		// bounded in case the decoder keeps failing without ever reaching EOF
		for range maxDrainErrors + 1 {
			ok, err := receive(cc, frame)
			if err != nil {
				skipped++
				continue
			}
			if ok {
				got = true
				return &Picture{frame: frame, stream: si}, nil
			}
			break
		}
	}

	if skipped > 0 {
		return nil, &DecodeError{Stream: si.Index, Err: fmt.Errorf("%w (%d packets rejected)", ErrNoFrame, skipped)}
	}
	return nil, &DecodeError{Stream: si.Index, Err: ErrNoFrame}
}

// receive pulls one frame from cc. It reports false when the decoder needs
// more input or is fully drained.
func receive(cc *astiav.CodecContext, frame *astiav.Frame) (bool, error) {
	err := cc.ReceiveFrame(frame)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, astiav.ErrEagain), errors.Is(err, astiav.ErrEof):
		return false, nil
	default:
		return false, fmt.Errorf("decoder failed: %w", err)
	}
}
