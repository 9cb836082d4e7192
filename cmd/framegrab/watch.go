package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	alog "github.com/anacrolix/log"
	"github.com/fsnotify/fsnotify"

	"github.com/filegate/framegrab/internal/still"
)

// Files still being written fire a burst of events; wait for them to settle
const settleDelay = 2 * time.Second

var videoExts = map[string]bool{
	".avi": true, ".flv": true, ".m4v": true, ".mkv": true, ".mov": true,
	".mp4": true, ".mpg": true, ".mpeg": true, ".ts": true, ".webm": true, ".wmv": true,
}

func isVideo(name string) bool {
	if strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	return videoExts[strings.ToLower(filepath.Ext(name))]
}

// WatchCmd handles the watch subcommand
type WatchCmd struct {
	Dir    string `arg:"" help:"Directory to watch" type:"existingdir"`
	OutDir string `help:"Directory for the images" type:"existingdir" required:"" short:"o"`
	Ext    string `help:"Image extension, from config when empty" short:"e"`
}

func (cmd *WatchCmd) Run(app *App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ext := cmd.Ext
	if ext == "" {
		ext = app.Config.Extract.Ext
	}
	if _, err := still.ParseFormat(ext); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(cmd.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", cmd.Dir, err)
	}

	fmt.Printf("Watching %s, thumbnails go to %s\n", cmd.Dir, cmd.OutDir)
	fmt.Println("Press Ctrl+C to stop")

	d := newDebouncer(settleDelay)
	consumed := make(chan struct{})
	// a single consumer keeps extractions serialized
	go func() {
		defer close(consumed)
		d.run(func(path string) {
			dst := outputPath(cmd.OutDir, path, ext)
			res, err := app.Extractor.ExtractFile(path, dst, app.Config.Request())
			if err != nil {
				app.Logger.Levelf(alog.Warning, "%s: %v", path, err)
				return
			}
			app.Logger.Levelf(alog.Info, "%s -> %s (%dx%d)", path, dst, res.Width, res.Height)
		})
	}()
	// an extraction in flight finishes before we return
	defer func() {
		d.stop()
		<-consumed
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down...")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) {
				if isVideo(ev.Name) {
					d.touch(ev.Name)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			app.Logger.Levelf(alog.Warning, "watch error: %v", err)
		}
	}
}

const readyBuffer = 64

// debouncer emits a path on ready once no touch for it arrived for delay
type debouncer struct {
	delay  time.Duration
	ready  chan string
	quit   chan struct{}
	mu     sync.Mutex
	timers map[string]*time.Timer
	done   bool
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:  delay,
		ready:  make(chan string, readyBuffer),
		quit:   make(chan struct{}),
		timers: make(map[string]*time.Timer),
	}
}

func (d *debouncer) touch(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return
	}

	if t, ok := d.timers[path]; ok {
		t.Reset(d.delay)
		return
	}
	d.timers[path] = time.AfterFunc(d.delay, func() { d.fire(path) })
}

// fire must not hold mu while sending, a full ready queue would stall touch
func (d *debouncer) fire(path string) {
	d.mu.Lock()
	delete(d.timers, path)
	done := d.done
	d.mu.Unlock()
	if done {
		return
	}

	select {
	case d.ready <- path:
	case <-d.quit:
	}
}

// run calls fn for each settled path until stop is called
func (d *debouncer) run(fn func(string)) {
	for {
		select {
		case <-d.quit:
			return
		case path := <-d.ready:
			fn(path)
		}
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return
	}
	d.done = true
	for _, t := range d.timers {
		t.Stop()
	}
	close(d.quit)
}
