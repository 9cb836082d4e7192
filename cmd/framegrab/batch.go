package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	alog "github.com/anacrolix/log"
	"golang.org/x/sync/errgroup"

	"github.com/filegate/framegrab/internal/extract"
	"github.com/filegate/framegrab/internal/still"
)

// BatchCmd handles the batch subcommand
type BatchCmd struct {
	Inputs  []string `arg:"" help:"Video files"`
	OutDir  string   `help:"Directory for the images" type:"existingdir" required:"" short:"o"`
	Ext     string   `help:"Image extension, from config when empty" short:"e"`
	Workers int      `help:"Files processed at once, from config when zero" short:"w"`
}

func (cmd *BatchCmd) Run(app *App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ext := cmd.Ext
	if ext == "" {
		ext = app.Config.Extract.Ext
	}
	if _, err := still.ParseFormat(ext); err != nil {
		return err
	}
	workers := cmd.Workers
	if workers <= 0 {
		workers = app.Config.Batch.Workers
	}

	failed := runBatch(ctx, app.Extractor, app.Logger, cmd.Inputs, cmd.OutDir, ext, workers, app.Config.Request())
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d files failed", len(failed), len(cmd.Inputs))
	}
	return ctx.Err()
}

// runBatch extracts one frame per input with at most workers sessions open at
// once. It returns the inputs that failed or were skipped after cancellation.
func runBatch(ctx context.Context, ex *extract.Extractor, logger alog.Logger, inputs []string, outDir, ext string, workers int, req extract.Request) []string {
	var (
		mu     sync.Mutex
		failed []string
	)
	fail := func(in string) {
		mu.Lock()
		failed = append(failed, in)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, in := range inputs {
		g.Go(func() error {
			// cancellation only takes effect between files
			if ctx.Err() != nil {
				fail(in)
				return nil
			}

			dst := outputPath(outDir, in, ext)
			res, err := ex.ExtractFile(in, dst, req)
			if err != nil {
				logger.Levelf(alog.Warning, "%s: %v", in, err)
				fail(in)
				return nil
			}
			logger.Levelf(alog.Info, "%s -> %s (%dx%d)", in, dst, res.Width, res.Height)
			return nil
		})
	}
	g.Wait()

	return failed
}

// outputPath names the image for input inside outDir
func outputPath(outDir, input, ext string) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outDir, base+"."+strings.TrimPrefix(ext, "."))
}
