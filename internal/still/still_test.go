package still

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func intp(v int) *int { return &v }

func TestParseFormat(t *testing.T) {
	for name, want := range map[string]Format{
		"jpg": JPEG, "JPEG": JPEG, ".jpg": JPEG, "png": PNG, "PNG": PNG, "webp": WebP,
	} {
		got, err := ParseFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseFormat("gif")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("/tmp/out.JPG")
	require.NoError(t, err)
	assert.Equal(t, JPEG, f)

	_, err = FormatFromPath("/tmp/out.nope")
	var ee *EncodeError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "/tmp/out.nope", ee.Path)

	_, err = FormatFromPath("/tmp/out")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSaveFormats(t *testing.T) {
	enc := NewEncoder()
	img := gradient(48, 32)
	dir := t.TempDir()

	decoders := map[Format]func(*os.File) (image.Image, error){
		JPEG: func(f *os.File) (image.Image, error) { return jpeg.Decode(f) },
		PNG:  func(f *os.File) (image.Image, error) { return png.Decode(f) },
		WebP: func(f *os.File) (image.Image, error) { return webp.Decode(f) },
	}

	for format, decode := range decoders {
		t.Run(string(format), func(t *testing.T) {
			path := filepath.Join(dir, "frame."+string(format))
			w, h, err := enc.Save(img, path, format, nil)
			require.NoError(t, err)
			assert.Equal(t, 48, w)
			assert.Equal(t, 32, h)

			f, err := os.Open(path)
			require.NoError(t, err)
			defer f.Close()
			got, err := decode(f)
			require.NoError(t, err)
			assert.Equal(t, img.Bounds(), got.Bounds())
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	enc := NewEncoder()
	path := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	_, _, err := enc.Save(gradient(8, 8), path, PNG, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestJPEGQualityAffectsSize(t *testing.T) {
	enc := NewEncoder()
	img := gradient(128, 128)

	var low, high bytes.Buffer
	require.NoError(t, enc.Write(&low, img, JPEG, intp(5)))
	require.NoError(t, enc.Write(&high, img, JPEG, intp(100)))
	assert.Less(t, low.Len(), high.Len())
}

func TestQualityOutOfRange(t *testing.T) {
	enc := NewEncoder()
	dir := t.TempDir()

	for _, q := range []int{-1, 101} {
		path := filepath.Join(dir, "frame.jpg")
		_, _, err := enc.Save(gradient(4, 4), path, JPEG, intp(q))

		var ee *EncodeError
		require.ErrorAs(t, err, &ee)
		assert.ErrorIs(t, err, ErrQualityRange)
		assert.Equal(t, path, ee.Path)
		assert.NoFileExists(t, path)
	}
}

func TestRestrictedEncoder(t *testing.T) {
	enc := NewEncoder(JPEG)
	assert.True(t, enc.Supports(JPEG))
	assert.False(t, enc.Supports(PNG))

	dir := t.TempDir()
	path := filepath.Join(dir, "frame.png")
	_, _, err := enc.Save(gradient(4, 4), path, PNG, nil)

	var ee *EncodeError
	require.ErrorAs(t, err, &ee)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveMissingDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "frame.jpg")

	_, _, err := NewEncoder().Save(gradient(4, 4), path, JPEG, nil)
	var ee *EncodeError
	require.ErrorAs(t, err, &ee)
	assert.ErrorIs(t, err, os.ErrNotExist)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPNGCompression(t *testing.T) {
	assert.Equal(t, png.DefaultCompression, pngCompression(nil))
	assert.Equal(t, png.BestSpeed, pngCompression(intp(0)))
	assert.Equal(t, png.DefaultCompression, pngCompression(intp(50)))
	assert.Equal(t, png.BestCompression, pngCompression(intp(100)))
}
