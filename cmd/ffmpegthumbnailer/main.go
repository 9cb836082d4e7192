// ffmpegthumbnailer replacement backed by the native extraction pipeline.
// Accepts the ffmpegthumbnailer flags that media servers pass.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	alog "github.com/anacrolix/log"

	"github.com/filegate/framegrab/internal/extract"
	"github.com/filegate/framegrab/internal/media"
	"github.com/filegate/framegrab/internal/still"
)

type options struct {
	input       string
	output      string
	size        int
	timePercent int
	quality     int
	format      string
}

// parseArgs handles both "-c png" and "-cpng" forms
func parseArgs(args []string) options {
	opts := options{size: 128, timePercent: 10, quality: 8, format: "png"}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-i" && i+1 < len(args):
			i++
			opts.input = args[i]
		case arg == "-o" && i+1 < len(args):
			i++
			opts.output = args[i]
		case arg == "-s" && i+1 < len(args):
			i++
			opts.size, _ = strconv.Atoi(args[i])
		case arg == "-t" && i+1 < len(args):
			i++
			opts.timePercent, _ = strconv.Atoi(strings.TrimSuffix(args[i], "%"))
		case arg == "-q" && i+1 < len(args):
			i++
			opts.quality, _ = strconv.Atoi(args[i])
		case arg == "-c" && i+1 < len(args):
			i++
			opts.format = args[i]
		case strings.HasPrefix(arg, "-c"):
			opts.format = strings.TrimPrefix(arg, "-c")
		}
	}
	return opts
}

// request maps ffmpegthumbnailer's 0-10 quality scale onto 0-100
func (o options) request() extract.Request {
	q := min(max(o.quality, 0), 10) * 10
	off := min(max(o.timePercent, 0), 100)
	return extract.Request{
		Format:  o.format,
		Offset:  &off,
		MaxSize: max(o.size, 0),
		Quality: &q,
	}
}

func toStdout(output string) bool {
	return output == "/dev/stdout" || output == "-"
}

func main() {
	opts := parseArgs(os.Args[1:])
	if opts.input == "" {
		fmt.Fprintln(os.Stderr, "Error: No input file specified")
		os.Exit(1)
	}
	if opts.output == "" {
		fmt.Fprintln(os.Stderr, "Error: No output file specified")
		os.Exit(1)
	}

	logger := alog.NewLogger("ffmpegthumbnailer")
	logger.SetHandlers(alog.DiscardHandler)
	ex := extract.New(extract.Config{Logger: &logger})

	if err := thumbnail(ex, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// thumbnail extracts at the requested offset and falls back to the first
// frame when that fails
func thumbnail(ex *extract.Extractor, opts options) error {
	req := opts.request()

	return media.WithSession(opts.input, func(s *media.Session) error {
		err := write(ex, s, opts.output, req)
		if err == nil || req.Offset == nil || *req.Offset == 0 {
			return err
		}
		req.Offset = nil
		return write(ex, s, opts.output, req)
	})
}

func write(ex *extract.Extractor, s *media.Session, output string, req extract.Request) error {
	if !toStdout(output) {
		_, err := ex.SaveFrame(s, output, req)
		return err
	}

	format, err := still.ParseFormat(req.Format)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(os.Stdout)
	if _, err := ex.WriteFrame(s, w, format, req); err != nil {
		return err
	}
	return w.Flush()
}
