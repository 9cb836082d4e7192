package main

import (
	"fmt"
	"log"
	"os"

	"github.com/alecthomas/kong"
	alog "github.com/anacrolix/log"

	"github.com/filegate/framegrab/internal/config"
	"github.com/filegate/framegrab/internal/convert"
	"github.com/filegate/framegrab/internal/extract"
	"github.com/filegate/framegrab/internal/media"
	"github.com/filegate/framegrab/internal/probe"
	"github.com/filegate/framegrab/internal/report"
)

// App carries what every command needs once flags and config are resolved
type App struct {
	Config    config.Config
	Logger    alog.Logger
	Extractor *extract.Extractor
}

// InfoCmd handles the info subcommand
type InfoCmd struct {
	Path string `arg:"" help:"Media file to inspect" type:"existingfile"`
	JSON bool   `help:"Print ffprobe compatible JSON" short:"j"`
}

func (cmd *InfoCmd) Run(app *App) error {
	var r *report.Report
	err := media.WithSession(cmd.Path, func(s *media.Session) error {
		var err error
		r, err = report.Build(s)
		return err
	}, media.WithLogger(app.Logger.WithNames("media")))
	if err != nil {
		return err
	}

	// Most containers carry no tags the reader understands
	if tags, err := probe.ReadTags(cmd.Path); err == nil {
		r.AddTags(tags)
	} else {
		app.Logger.Levelf(alog.Debug, "no tags in %s: %v", cmd.Path, err)
	}

	if cmd.JSON {
		return r.WriteJSON(os.Stdout)
	}
	return r.WriteText(os.Stdout)
}

// FrameCmd handles the frame subcommand
type FrameCmd struct {
	Input  string `arg:"" help:"Video file" type:"existingfile"`
	Output string `arg:"" help:"Image file to write"`

	Format       string `help:"Output format (jpg, jpeg, png, webp), inferred from OUTPUT when empty" short:"f"`
	Offset       *int   `help:"Position as a percentage of the duration (0-100)" short:"t"`
	MaxSize      *int   `help:"Bound for the longer output side in pixels" short:"s"`
	Quality      *int   `help:"Encoder quality (0-100)" short:"q"`
	Resampler    string `help:"Downscale filter (bilinear, lanczos)"`
	SquarePixels bool   `help:"Correct anamorphic sources to square pixels"`
	StrictSeek   bool   `help:"Fail instead of decoding from the current position when a seek is rejected"`
}

// request overlays the flags on the configured defaults
func (cmd *FrameCmd) request(cfg config.Config) extract.Request {
	req := cfg.Request()
	req.Format = cmd.Format
	if cmd.Offset != nil {
		req.Offset = cmd.Offset
	}
	if cmd.MaxSize != nil {
		req.MaxSize = *cmd.MaxSize
	}
	if cmd.Quality != nil {
		req.Quality = cmd.Quality
	}
	if cmd.Resampler != "" {
		req.Resampler = convert.Resampler(cmd.Resampler)
	}
	req.SquarePixels = req.SquarePixels || cmd.SquarePixels
	req.StrictSeek = req.StrictSeek || cmd.StrictSeek
	return req
}

func (cmd *FrameCmd) Run(app *App) error {
	res, err := app.Extractor.ExtractFile(cmd.Input, cmd.Output, cmd.request(app.Config))
	if err != nil {
		return err
	}
	fmt.Printf("%dx%d\n", res.Width, res.Height)
	return nil
}

// Globals are flags shared by every command
type Globals struct {
	Config   string `help:"YAML config file" type:"path" env:"FRAMEGRAB_CONFIG" short:"c"`
	LogLevel string `help:"Log level (debug, info, warn, error)" name:"log-level"`
}

var CLI struct {
	Globals

	Info    InfoCmd          `cmd:"" help:"Show container and stream metadata"`
	Frame   FrameCmd         `cmd:"" help:"Extract one frame to an image file"`
	Batch   BatchCmd         `cmd:"" help:"Extract a frame from many files concurrently"`
	Watch   WatchCmd         `cmd:"" help:"Thumbnail videos as they appear in a directory"`
	Serve   ServeCmd         `cmd:"" help:"Share the current directory over WebDAV with frame previews"`
	Version kong.VersionFlag `help:"Show version" short:"v"`
}

var version = "dev"

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("framegrab"),
		kong.Description("Extract metadata and still frames from video files"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	app, err := newApp(CLI.Globals)
	if err != nil {
		log.Fatal(err)
	}

	if err := ctx.Run(app); err != nil {
		app.Logger.Levelf(alog.Error, "%v", err)
		os.Exit(1)
	}
}

func newApp(g Globals) (*App, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := cfg.Logger("framegrab")
	if err != nil {
		return nil, err
	}
	enc, err := cfg.Encoder()
	if err != nil {
		return nil, err
	}

	extractLogger := logger.WithNames("extract")
	return &App{
		Config:    cfg,
		Logger:    logger,
		Extractor: extract.New(extract.Config{Encoder: enc, Logger: &extractLogger}),
	}, nil
}
