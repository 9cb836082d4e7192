package webdav

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"

	alog "github.com/anacrolix/log"
	"golang.org/x/net/webdav"

	"github.com/filegate/framegrab/internal/convert"
	"github.com/filegate/framegrab/internal/extract"
	"github.com/filegate/framegrab/internal/media"
	"github.com/filegate/framegrab/internal/still"
)

// FrameParam is the query key that turns a GET into a frame request
const FrameParam = "frame"

// Server wraps a WebDAV handler with authentication and serves still frames
// of videos for GET requests carrying ?frame
type Server struct {
	root      string
	handler   *webdav.Handler
	username  string
	password  string
	extractor *extract.Extractor
	defaults  extract.Request
	format    still.Format
	logger    alog.Logger
}

// Config holds configuration for the WebDAV server
type Config struct {
	// Root directory to serve (defaults to current working directory)
	Root string
	// Username for Basic Auth
	Username string
	// Password for Basic Auth
	Password string
	// Extractor renders frames, a default one is created when nil
	Extractor *extract.Extractor
	// Defaults apply to every frame request before query overrides
	Defaults extract.Request
	// Format is used when the query has none, JPEG when empty
	Format still.Format
	Logger *alog.Logger
}

// New creates a new WebDAV server
func New(cfg Config) (*Server, error) {
	root := cfg.Root
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}

	handler := &webdav.Handler{
		FileSystem: webdav.Dir(root),
		LockSystem: webdav.NewMemLS(),
		Prefix:     "",
	}

	s := &Server{
		root:      root,
		handler:   handler,
		username:  cfg.Username,
		password:  cfg.Password,
		extractor: cfg.Extractor,
		defaults:  cfg.Defaults,
		format:    cfg.Format,
		logger:    alog.NewLogger("webdav"),
	}
	if cfg.Logger != nil {
		s.logger = *cfg.Logger
	}
	if s.extractor == nil {
		s.extractor = extract.New(extract.Config{Logger: &s.logger})
	}
	if s.format == "" {
		s.format = still.JPEG
	}
	return s, nil
}

// ServeHTTP implements http.Handler with Basic Auth
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Check Basic Auth
	if !s.authenticate(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="framegrab"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Query().Has(FrameParam) {
		s.serveFrame(w, r)
		return
	}

	s.handler.ServeHTTP(w, r)
}

// authenticate checks the request for valid Basic Auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	username, password, ok := r.BasicAuth()
	if !ok {
		return false
	}

	// Use constant-time comparison to prevent timing attacks
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passwordMatch := subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1

	return usernameMatch && passwordMatch
}

// Handler returns the underlying http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s
}

// serveFrame opens a session for the requested file, renders one frame into
// memory and only then writes the response
func (s *Server) serveFrame(w http.ResponseWriter, r *http.Request) {
	req, format, err := s.parseFrameQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Cleaning a rooted path keeps the result inside root
	name := filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	info, err := os.Stat(name)
	if err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if info.IsDir() {
		http.Error(w, "not a media file", http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	var res extract.Result
	err = media.WithSession(name, func(sess *media.Session) error {
		var err error
		res, err = s.extractor.WriteFrame(sess, &buf, format, req)
		return err
	}, media.WithLogger(s.logger.WithNames("media")))
	if err != nil {
		code := frameStatus(err)
		if code >= http.StatusInternalServerError {
			s.logger.Levelf(alog.Warning, "frame of %s failed: %v", name, err)
		}
		http.Error(w, err.Error(), code)
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Frame-Size", fmt.Sprintf("%dx%d", res.Width, res.Height))
	w.Header().Set("X-Frame-Time", strconv.FormatFloat(res.Time, 'f', 3, 64))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		w.Write(buf.Bytes())
	}
}

func (s *Server) parseFrameQuery(r *http.Request) (extract.Request, still.Format, error) {
	q := r.URL.Query()
	req := s.defaults
	format := s.format

	if v := q.Get("format"); v != "" {
		f, err := still.ParseFormat(v)
		if err != nil {
			return req, "", err
		}
		format = f
	}

	ints := []struct {
		key string
		set func(int)
	}{
		{"offset", func(n int) { req.Offset = &n }},
		{"max_size", func(n int) { req.MaxSize = n }},
		{"quality", func(n int) { req.Quality = &n }},
	}
	for _, p := range ints {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, "", fmt.Errorf("invalid %s %q", p.key, v)
		}
		p.set(n)
	}

	return req, format, nil
}

// frameStatus maps pipeline errors to HTTP status codes
func frameStatus(err error) int {
	var oe *media.OpenError
	switch {
	case errors.Is(err, media.ErrOffsetRange),
		errors.Is(err, still.ErrQualityRange),
		errors.Is(err, still.ErrUnsupportedFormat),
		errors.Is(err, convert.ErrInvalidSize):
		return http.StatusBadRequest
	case errors.As(err, &oe), errors.Is(err, media.ErrNoVideoStream):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

func contentType(f still.Format) string {
	switch f {
	case still.PNG:
		return "image/png"
	case still.WebP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
