// Package probe reads container level facts without a native demuxer: the
// MP4 movie header duration and embedded tags.
package probe

import (
	"errors"
	"fmt"
	"os"

	"github.com/abema/go-mp4"
	"github.com/dhowden/tag"
)

// ErrNoDuration is returned when an MP4 file has no usable movie header
var ErrNoDuration = errors.New("probe: no movie header duration")

// Tags contains the descriptive metadata embedded in a media file
type Tags struct {
	Format  string `json:"format,omitempty"`
	Title   string `json:"title,omitempty"`
	Artist  string `json:"artist,omitempty"`
	Album   string `json:"album,omitempty"`
	Genre   string `json:"genre,omitempty"`
	Comment string `json:"comment,omitempty"`
	Year    int    `json:"year,omitempty"`
}

// Empty reports whether no tag carried a value
func (t *Tags) Empty() bool {
	return t.Title == "" && t.Artist == "" && t.Album == "" && t.Genre == "" && t.Comment == "" && t.Year == 0
}

// MP4Duration returns the duration in seconds stored in the moov/mvhd box
func MP4Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	boxes, err := mp4.ExtractBoxWithPayload(f, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()})
	if err != nil {
		return 0, fmt.Errorf("failed to read mp4 boxes: %w", err)
	}

	for _, box := range boxes {
		mvhd, ok := box.Payload.(*mp4.Mvhd)
		if !ok || mvhd.Timescale == 0 {
			continue
		}
		// Duration is in timescale units
		d := float64(mvhd.DurationV0) / float64(mvhd.Timescale)
		if mvhd.Version == 1 {
			d = float64(mvhd.DurationV1) / float64(mvhd.Timescale)
		}
		if d > 0 {
			return d, nil
		}
	}

	return 0, ErrNoDuration
}

// ReadTags reads ID3, MP4, FLAC or Vorbis tags from path. It returns
// tag.ErrNoTagsFound when the file carries none.
func ReadTags(path string) (*Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, err
	}

	return &Tags{
		Format:  string(m.Format()),
		Title:   m.Title(),
		Artist:  m.Artist(),
		Album:   m.Album(),
		Genre:   m.Genre(),
		Comment: m.Comment(),
		Year:    m.Year(),
	}, nil
}
