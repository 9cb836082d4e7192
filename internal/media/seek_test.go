package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var msStream = StreamInfo{Index: 0, Type: TypeVideo, TimeBase: Rational{Num: 1, Den: 1000}}

func TestPlanSeek(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		offset   *int
		stream   StreamInfo
		want     int64
	}{
		{"absent offset", 2.0, nil, msStream, 0},
		{"zero offset", 2.0, intp(0), msStream, 0},
		{"half", 2.0, intp(50), msStream, 1000},
		{"end", 2.0, intp(100), msStream, 2000},
		{"rounds to time base", 1.0, intp(33), msStream, 330},
		{"90kHz", 10.0, intp(25), StreamInfo{TimeBase: Rational{Num: 1, Den: 90000}}, 225000},
		{"start offset", 2.0, intp(50), StreamInfo{TimeBase: Rational{Num: 1, Den: 1000}, StartTime: 500}, 1500},
		{"unset start", 2.0, intp(50), StreamInfo{TimeBase: Rational{Num: 1, Den: 1000}, StartTime: noPts}, 1000},
		{"clamped to stream end", 10.0, intp(90), StreamInfo{TimeBase: Rational{Num: 1, Den: 1000}, DurationTS: 4000}, 4000},
		{"unknown duration", 0, intp(50), msStream, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlanSeek(tt.duration, tt.offset, tt.stream)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanSeekRejectsOffset(t *testing.T) {
	for _, offset := range []int{-1, 101} {
		_, err := PlanSeek(2.0, intp(offset), msStream)

		var se *SeekError
		require.ErrorAs(t, err, &se)
		assert.ErrorIs(t, err, ErrOffsetRange)
		assert.Equal(t, offset, se.Offset)
	}
}

func TestPlanSeekNeedsTimeBase(t *testing.T) {
	_, err := PlanSeek(2.0, intp(50), StreamInfo{})
	var se *SeekError
	assert.ErrorAs(t, err, &se)
}

func TestValidateOffset(t *testing.T) {
	assert.NoError(t, ValidateOffset(0))
	assert.NoError(t, ValidateOffset(100))
	assert.Error(t, ValidateOffset(101))
}

func TestRational(t *testing.T) {
	assert.Equal(t, 0.5, Rational{Num: 1, Den: 2}.Float64())
	assert.Zero(t, Rational{Num: 1}.Float64())
	assert.Equal(t, "16:9", Rational{Num: 16, Den: 9}.String())
}

func TestStreamDuration(t *testing.T) {
	si := StreamInfo{TimeBase: Rational{Num: 1, Den: 1000}, DurationTS: 2500}
	assert.InDelta(t, 2.5, si.Duration(), 1e-9)
	assert.Zero(t, StreamInfo{DurationTS: noPts}.Duration())
}
