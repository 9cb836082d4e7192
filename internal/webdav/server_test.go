package webdav

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filegate/framegrab/internal/mediatest"
)

func newTestServer(t *testing.T, root string) *httptest.Server {
	t.Helper()
	srv, err := New(Config{Root: root, Username: "admin", Password: "secret"})
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string, auth bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if auth {
		req.SetBasicAuth("admin", "secret")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRequiresAuth(t *testing.T) {
	ts := newTestServer(t, t.TempDir())

	resp := get(t, ts.URL+"/", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/", nil)
	req.SetBasicAuth("admin", "wrong")
	bad, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, bad.StatusCode)
}

func TestServesFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hi"), 0o644))
	ts := newTestServer(t, root)

	resp := get(t, ts.URL+"/hello.txt", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFrameRequest(t *testing.T) {
	src := mediatest.Generate(t, mediatest.Default)
	ts := newTestServer(t, filepath.Dir(src))

	resp := get(t, ts.URL+"/"+filepath.Base(src)+"?frame&offset=50&max_size=64", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, "64x64", resp.Header.Get("X-Frame-Size"))

	cfg, name, err := image.DecodeConfig(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", name)
	assert.Equal(t, 64, cfg.Width)
}

func TestFrameRequestPNG(t *testing.T) {
	src := mediatest.Generate(t, mediatest.Default)
	ts := newTestServer(t, filepath.Dir(src))

	resp := get(t, ts.URL+"/"+filepath.Base(src)+"?frame&format=png", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestFrameRequestErrors(t *testing.T) {
	src := mediatest.Generate(t, mediatest.Default)
	root := filepath.Dir(src)
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes"), []byte("plain text"), 0o644))
	ts := newTestServer(t, root)
	base := "/" + filepath.Base(src)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"missing file", "/missing.mkv?frame", http.StatusNotFound},
		{"bad offset", base + "?frame&offset=abc", http.StatusBadRequest},
		{"offset range", base + "?frame&offset=101", http.StatusBadRequest},
		{"quality range", base + "?frame&quality=-1", http.StatusBadRequest},
		{"unknown format", base + "?frame&format=gif", http.StatusBadRequest},
		{"directory", "/?frame", http.StatusBadRequest},
		{"not media", "/notes?frame", http.StatusUnsupportedMediaType},
		{"escape root", "/../../etc/passwd?frame", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(t, ts.URL+tt.query, true)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestParseFrameQuery(t *testing.T) {
	q := 40
	srv, err := New(Config{Root: t.TempDir()})
	require.NoError(t, err)
	srv.defaults.Quality = &q

	r := httptest.NewRequest(http.MethodGet, "/a.mkv?frame&offset=10&max_size=200&format=WEBP", nil)
	req, format, err := srv.parseFrameQuery(r)
	require.NoError(t, err)
	assert.Equal(t, 10, *req.Offset)
	assert.Equal(t, 200, req.MaxSize)
	assert.Equal(t, 40, *req.Quality)
	assert.EqualValues(t, "webp", format)

	r = httptest.NewRequest(http.MethodGet, "/a.mkv?frame&max_size="+strings.Repeat("9", 30), nil)
	_, _, err = srv.parseFrameQuery(r)
	assert.Error(t, err)
}
