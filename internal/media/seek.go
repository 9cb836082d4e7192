package media

import (
	"math"

	alog "github.com/anacrolix/log"
	"github.com/asticode/go-astiav"
)

// ValidateOffset checks a percentage offset
func ValidateOffset(offset int) error {
	if offset < 0 || offset > 100 {
		return &SeekError{Offset: offset, Err: ErrOffsetRange}
	}
	return nil
}

// PlanSeek maps a percentage of duration to a timestamp in the stream time
// base, clamped to the stream's [start, end] range. A nil offset plans the
// stream start.
func PlanSeek(duration float64, offset *int, si StreamInfo) (int64, error) {
	start := si.StartTime
	if start == noPts || start < 0 {
		start = 0
	}
	if offset == nil || *offset == 0 {
		return start, nil
	}
	if err := ValidateOffset(*offset); err != nil {
		return 0, err
	}

	tb := si.TimeBase.Float64()
	if tb <= 0 {
		return 0, &SeekError{Offset: *offset, Err: errInvalidTimeBase}
	}

	target := start + int64(math.Round(duration*float64(*offset)/100/tb))

	end := start + int64(math.Round(duration/tb))
	if si.DurationTS > 0 && si.DurationTS != noPts {
		end = start + si.DurationTS
	}

	if target > end {
		target = end
	}
	if target < start {
		target = start
	}
	return target, nil
}

// Seek positions the read cursor on the keyframe at or before offset percent
// of the duration. A nil offset rewinds to the stream start, so a reused
// session always decodes from a known position. The returned timestamp is the
// planned target in the stream time base.
func (s *Session) Seek(si StreamInfo, offset *int) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}

	ts, err := PlanSeek(s.duration, offset, si)
	if err != nil {
		return 0, err
	}

	pct := 0
	if offset != nil {
		pct = *offset
	}
	s.logger.Levelf(alog.Debug, "seeking stream %d of %s to %d%% (ts %d)", si.Index, s.path, pct, ts)

	if err := s.fc.SeekFrame(si.Index, ts, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return ts, &SeekError{Offset: pct, Timestamp: ts, Err: err}
	}
	return ts, nil
}
