package main

import (
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filegate/framegrab/internal/extract"
	"github.com/filegate/framegrab/internal/mediatest"
)

func TestParseArgs(t *testing.T) {
	opts := parseArgs([]string{"-i", "in.mkv", "-o", "out.jpg", "-s", "256", "-t", "25%", "-q", "5", "-cjpeg"})
	assert.Equal(t, "in.mkv", opts.input)
	assert.Equal(t, "out.jpg", opts.output)
	assert.Equal(t, 256, opts.size)
	assert.Equal(t, 25, opts.timePercent)
	assert.Equal(t, "jpeg", opts.format)

	req := opts.request()
	assert.Equal(t, 50, *req.Quality)
	assert.Equal(t, 25, *req.Offset)
	assert.Equal(t, 256, req.MaxSize)
}

func TestParseArgsDefaults(t *testing.T) {
	opts := parseArgs([]string{"-i", "in.mkv", "-o", "-", "-c", "png"})
	assert.Equal(t, 128, opts.size)
	assert.Equal(t, "png", opts.format)
	assert.True(t, toStdout(opts.output))

	req := opts.request()
	assert.Equal(t, 80, *req.Quality)
	assert.Equal(t, 10, *req.Offset)
}

func TestRequestClamps(t *testing.T) {
	req := options{quality: 42, timePercent: 150, size: -3}.request()
	assert.Equal(t, 100, *req.Quality)
	assert.Equal(t, 100, *req.Offset)
	assert.Zero(t, req.MaxSize)
}

func TestThumbnail(t *testing.T) {
	src := mediatest.Generate(t, mediatest.Default)
	dst := filepath.Join(t.TempDir(), "thumb.png")

	err := thumbnail(extract.New(extract.Config{}), options{input: src, output: dst, size: 64, timePercent: 10, quality: 8, format: "png"})
	require.NoError(t, err)

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
}
