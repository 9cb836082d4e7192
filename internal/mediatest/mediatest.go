// Package mediatest synthesizes small media files for tests with the ffmpeg CLI.
package mediatest

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// MPEG4VOP is the start code opening every MPEG-4 part 2 picture
var MPEG4VOP = []byte{0x00, 0x00, 0x01, 0xb6}

// Clip describes a synthetic test pattern clip
type Clip struct {
	Width    int
	Height   int
	Duration float64
	Rate     int
	// GOP is the keyframe interval in frames
	GOP int
	// Codec is an ffmpeg encoder name, "mpeg4" when empty
	Codec string
	// Ext selects the container, "mkv" when empty
	Ext string
	// Audio adds a sine audio stream after the video stream
	Audio bool
	// AudioOnly drops the video stream
	AudioOnly bool
	// VideoLast muxes the audio stream ahead of the video stream
	VideoLast bool
	// SAR overrides the sample aspect ratio, e.g. "2:1"
	SAR string
}

// Default is a 128x128, 2 second clip with a keyframe every half second
var Default = Clip{Width: 128, Height: 128, Duration: 2, Rate: 25, GOP: 12}

// Generate writes c into a temporary directory and returns its path. The test
// is skipped when ffmpeg isn't installed.
func Generate(t testing.TB, c Clip) string {
	t.Helper()

	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not found in PATH")
	}

	if c.Codec == "" {
		c.Codec = "mpeg4"
	}
	if c.Ext == "" {
		c.Ext = "mkv"
	}
	if c.Rate == 0 {
		c.Rate = 25
	}

	out := filepath.Join(t.TempDir(), fmt.Sprintf("clip_%dx%d.%s", c.Width, c.Height, c.Ext))

	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	if !c.AudioOnly {
		args = append(args, "-f", "lavfi", "-i",
			fmt.Sprintf("testsrc=size=%dx%d:rate=%d:duration=%g", c.Width, c.Height, c.Rate, c.Duration))
	}
	if c.Audio || c.AudioOnly {
		args = append(args, "-f", "lavfi", "-i", fmt.Sprintf("sine=frequency=440:duration=%g", c.Duration))
	}
	if !c.AudioOnly {
		args = append(args, "-c:v", c.Codec, "-pix_fmt", "yuv420p")
		if c.GOP > 0 {
			args = append(args, "-g", fmt.Sprint(c.GOP))
		}
		if c.SAR != "" {
			args = append(args, "-vf", "setsar="+c.SAR)
		}
	}
	if c.VideoLast && c.Audio && !c.AudioOnly {
		args = append(args, "-map", "1:a", "-map", "0:v")
	}
	if c.Audio || c.AudioOnly {
		args = append(args, "-c:a", "pcm_s16le")
		if c.Ext == "mp4" {
			args[len(args)-1] = "aac"
		}
	}
	args = append(args, out)

	cmd := exec.Command(bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("ffmpeg failed: %v: %s", err, stderr.String())
	}

	return out
}

// Corrupt copies src and zeroes n bytes at each of the first count
// occurrences of marker, or at every occurrence when count is 0. It returns
// the path of the copy.
func Corrupt(t testing.TB, src string, marker []byte, n, count int) string {
	t.Helper()

	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("read %s: %v", src, err)
	}

	hits := 0
	for off := 0; count == 0 || hits < count; {
		i := bytes.Index(data[off:], marker)
		if i < 0 {
			break
		}
		start := off + i
		end := min(start+n, len(data))
		clear(data[start:end])
		hits++
		off = end
	}
	if hits == 0 {
		t.Fatalf("marker % x not found in %s", marker, src)
	}

	dst := filepath.Join(t.TempDir(), "corrupt_"+filepath.Base(src))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", dst, err)
	}
	return dst
}
