package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filegate/framegrab/internal/mediatest"
)

func decodeAt(t *testing.T, s *Session, offset *int) *Picture {
	t.Helper()

	si, err := SelectVideoStream(s)
	require.NoError(t, err)
	_, err = s.Seek(si, offset)
	require.NoError(t, err)

	pic, err := s.DecodePicture(si)
	require.NoError(t, err)
	t.Cleanup(pic.Free)
	return pic
}

func TestDecodeFirstPicture(t *testing.T) {
	s := openDefault(t)

	pic := decodeAt(t, s, nil)
	assert.Equal(t, 128, pic.Width())
	assert.Equal(t, 128, pic.Height())

	ts, ok := pic.Time()
	require.True(t, ok)
	assert.InDelta(t, 0, ts, 0.05)
}

func TestDecodeZeroOffsetEqualsNoOffset(t *testing.T) {
	s := openDefault(t)

	a := decodeAt(t, s, nil)
	b := decodeAt(t, s, intp(0))
	assert.Equal(t, a.PTS(), b.PTS())
}

func TestDecodeHalfway(t *testing.T) {
	s := openDefault(t)

	pic := decodeAt(t, s, intp(50))
	ts, ok := pic.Time()
	require.True(t, ok)

	// keyframe snapped, never past the target
	assert.LessOrEqual(t, ts, 1.0+1e-6)
	assert.GreaterOrEqual(t, ts, 0.0)
}

func TestDecodeReusesSession(t *testing.T) {
	s := openDefault(t)

	decodeAt(t, s, intp(100))
	decodeAt(t, s, intp(50))
	pic := decodeAt(t, s, nil)

	ts, ok := pic.Time()
	require.True(t, ok)
	assert.InDelta(t, 0, ts, 0.05)

	streams, err := s.Streams()
	require.NoError(t, err)
	assert.Len(t, streams, 1)
}

func TestDecodeUnknownStream(t *testing.T) {
	s := openDefault(t)

	_, err := s.DecodePicture(StreamInfo{Index: 7})
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 7, de.Stream)
}

func TestFreeTwice(t *testing.T) {
	s := openDefault(t)

	si, err := SelectVideoStream(s)
	require.NoError(t, err)
	pic, err := s.DecodePicture(si)
	require.NoError(t, err)

	pic.Free()
	assert.NotPanics(t, pic.Free)
}

func TestDecodeSkipsOtherStreams(t *testing.T) {
	clip := mediatest.Default
	clip.Audio = true
	s, err := Open(mediatest.Generate(t, clip))
	require.NoError(t, err)
	defer s.Close()

	for _, offset := range []*int{nil, intp(50)} {
		pic := decodeAt(t, s, offset)
		assert.Equal(t, 128, pic.Width())
		assert.Equal(t, 128, pic.Height())
	}
}

func TestDecodeVideoAfterAudio(t *testing.T) {
	clip := mediatest.Default
	clip.Audio = true
	clip.VideoLast = true
	s, err := Open(mediatest.Generate(t, clip))
	require.NoError(t, err)
	defer s.Close()

	pic := decodeAt(t, s, nil)
	assert.Equal(t, 128, pic.Width())
}

func TestDecodeRecoversFromBrokenPacket(t *testing.T) {
	src := mediatest.Generate(t, mediatest.Default)
	s, err := Open(mediatest.Corrupt(t, src, mediatest.MPEG4VOP, 8, 1))
	require.NoError(t, err)
	defer s.Close()

	pic := decodeAt(t, s, nil)
	assert.Equal(t, 128, pic.Width())

	// the first picture lost its header, so the one returned comes later
	ts, ok := pic.Time()
	require.True(t, ok)
	assert.Greater(t, ts, 0.0)
}

func TestDecodeNoFrameAtEndOfStream(t *testing.T) {
	clip := mediatest.Default
	clip.Audio = true
	src := mediatest.Generate(t, clip)
	s, err := Open(mediatest.Corrupt(t, src, mediatest.MPEG4VOP, 8, 0))
	require.NoError(t, err)
	defer s.Close()

	si, err := SelectVideoStream(s)
	require.NoError(t, err)
	_, err = s.Seek(si, nil)
	require.NoError(t, err)

	_, err = s.DecodePicture(si)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, ErrNoFrame)
	assert.Equal(t, si.Index, de.Stream)

	// a failed decode leaves the session usable
	streams, err := s.Streams()
	require.NoError(t, err)
	assert.Len(t, streams, 2)
}
