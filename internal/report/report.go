// Package report renders session metadata in ffprobe's JSON layout.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/filegate/framegrab/internal/media"
	"github.com/filegate/framegrab/internal/probe"
)

// Report mirrors the output of `ffprobe -show_format -show_streams -of json`
type Report struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream is one entry of the "streams" array
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name,omitempty"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	// SampleAspectRatio uses ffprobe's "N:D" notation
	SampleAspectRatio string `json:"sample_aspect_ratio,omitempty"`
	PixFmt            string `json:"pix_fmt,omitempty"`
	TimeBase          string `json:"time_base,omitempty"`
	StartPTS          *int64 `json:"start_pts,omitempty"`
	DurationTS        int64  `json:"duration_ts,omitempty"`
	Duration          string `json:"duration,omitempty"`
}

// Format is the "format" object
type Format struct {
	Filename   string            `json:"filename"`
	NbStreams  int               `json:"nb_streams"`
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// Build collects the metadata of an open session
func Build(s *media.Session) (*Report, error) {
	streams, err := s.Streams()
	if err != nil {
		return nil, err
	}
	name, err := s.Format()
	if err != nil {
		return nil, err
	}
	duration, err := s.Duration()
	if err != nil {
		return nil, err
	}

	r := &Report{
		Streams: make([]Stream, 0, len(streams)),
		Format: Format{
			Filename:   s.Path(),
			NbStreams:  len(streams),
			FormatName: name,
			Duration:   seconds(duration),
		},
	}

	if stat, err := os.Stat(s.Path()); err == nil {
		r.Format.Size = strconv.FormatInt(stat.Size(), 10)
	}

	for _, si := range streams {
		r.Streams = append(r.Streams, newStream(si))
	}
	return r, nil
}

func newStream(si media.StreamInfo) Stream {
	st := Stream{
		Index:     si.Index,
		CodecName: si.Codec,
		CodecType: string(si.Type),
		Width:     si.Width,
		Height:    si.Height,
		PixFmt:    si.PixelFormat,
	}
	if si.Type == media.TypeVideo {
		st.SampleAspectRatio = si.SampleAspectRatio.String()
	}
	if si.TimeBase.Den != 0 {
		st.TimeBase = fmt.Sprintf("%d/%d", si.TimeBase.Num, si.TimeBase.Den)
	}
	if si.StartTime != math.MinInt64 {
		start := si.StartTime
		st.StartPTS = &start
	}
	if d := si.Duration(); d > 0 {
		st.DurationTS = si.DurationTS
		st.Duration = seconds(d)
	}
	return st
}

// AddTags copies non-empty tags into the format section
func (r *Report) AddTags(t *probe.Tags) {
	if t == nil || t.Empty() {
		return
	}
	tags := map[string]string{
		"title":   t.Title,
		"artist":  t.Artist,
		"album":   t.Album,
		"genre":   t.Genre,
		"comment": t.Comment,
	}
	if t.Year != 0 {
		tags["date"] = strconv.Itoa(t.Year)
	}
	for k, v := range tags {
		if v == "" {
			delete(tags, k)
		}
	}
	r.Format.Tags = tags
}

// WriteJSON writes the report as indented JSON
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(r)
}

// WriteText writes a short human readable summary
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "File:\t%s\n", r.Format.Filename)
	fmt.Fprintf(tw, "Format:\t%s\n", r.Format.FormatName)
	fmt.Fprintf(tw, "Duration:\t%ss\n", r.Format.Duration)
	fmt.Fprintf(tw, "Streams:\t%d\n", r.Format.NbStreams)
	for _, st := range r.Streams {
		codec := st.CodecName
		if codec == "" {
			codec = "-"
		}
		if st.CodecType == string(media.TypeVideo) {
			fmt.Fprintf(tw, "  #%d\t%s\t%s\t%dx%d SAR %s\n", st.Index, st.CodecType, codec, st.Width, st.Height, st.SampleAspectRatio)
			continue
		}
		fmt.Fprintf(tw, "  #%d\t%s\t%s\t\n", st.Index, st.CodecType, codec)
	}
	for _, k := range []string{"title", "artist", "album", "genre", "date", "comment"} {
		if v, ok := r.Format.Tags[k]; ok {
			fmt.Fprintf(tw, "%s:\t%s\n", k, v)
		}
	}
	return tw.Flush()
}

// Parse decodes a report written by WriteJSON or by ffprobe itself
func Parse(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func seconds(d float64) string {
	return strconv.FormatFloat(d, 'f', 6, 64)
}
