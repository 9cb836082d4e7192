// ffprobe-shim is a replacement for ffprobe that outputs compatible JSON
package main

import (
	"fmt"
	"os"

	"github.com/filegate/framegrab/internal/media"
	"github.com/filegate/framegrab/internal/probe"
	"github.com/filegate/framegrab/internal/report"
)

// flags that consume the following argument
var valueFlags = map[string]bool{
	"-v": true, "-loglevel": true, "-print_format": true, "-of": true,
	"-show_entries": true, "-select_streams": true, "-i": true,
}

// inputFile returns the last argument that is neither a flag nor a flag value
func inputFile(args []string) string {
	var filename string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "" {
			continue
		}
		if arg == "-i" && i+1 < len(args) {
			return args[i+1]
		}
		if arg[0] == '-' {
			if valueFlags[arg] {
				i++
			}
			continue
		}
		filename = arg
	}
	return filename
}

func main() {
	filename := inputFile(os.Args[1:])
	if filename == "" {
		fmt.Fprintln(os.Stderr, "No input file specified")
		os.Exit(1)
	}

	var r *report.Report
	err := media.WithSession(filename, func(s *media.Session) error {
		var err error
		r, err = report.Build(s)
		return err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error probing file: %v\n", err)
		os.Exit(1)
	}

	if tags, err := probe.ReadTags(filename); err == nil {
		r.AddTags(tags)
	}

	if err := r.WriteJSON(os.Stdout); err != nil {
		os.Exit(1)
	}
}
