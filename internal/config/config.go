// Package config loads framegrab settings from a YAML file and FRAMEGRAB_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	alog "github.com/anacrolix/log"
	"gopkg.in/yaml.v3"

	"github.com/filegate/framegrab/internal/convert"
	"github.com/filegate/framegrab/internal/extract"
	"github.com/filegate/framegrab/internal/media"
	"github.com/filegate/framegrab/internal/still"
)

// EnvFile names the variable holding the config file path
const EnvFile = "FRAMEGRAB_CONFIG"

// Config holds every setting the CLI reads
type Config struct {
	LogLevel string `yaml:"log_level"`
	// Formats limits the still formats that may be written
	Formats []string `yaml:"formats"`
	Extract Extract  `yaml:"extract"`
	Batch   Batch    `yaml:"batch"`
	Serve   Serve    `yaml:"serve"`
}

// Extract holds default extraction options
type Extract struct {
	Offset       *int   `yaml:"offset"`
	MaxSize      int    `yaml:"max_size"`
	Quality      *int   `yaml:"quality"`
	Resampler    string `yaml:"resampler"`
	SquarePixels bool   `yaml:"square_pixels"`
	StrictSeek   bool   `yaml:"strict_seek"`
	// Ext is the output extension used by batch and watch
	Ext string `yaml:"ext"`
}

// Batch configures the batch command
type Batch struct {
	Workers int `yaml:"workers"`
}

// Serve configures the WebDAV server
type Serve struct {
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		LogLevel: "info",
		Formats:  []string{"jpeg", "png", "webp"},
		Extract: Extract{
			Resampler: string(convert.Bilinear),
			Ext:       "jpg",
		},
		Batch: Batch{Workers: 4},
		Serve: Serve{Port: 8080, User: "admin"},
	}
}

// Load returns the defaults overlaid with the YAML file at path and then with
// the environment. An empty path falls back to $FRAMEGRAB_CONFIG; when that is
// unset too, no file is read.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvFile)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from FRAMEGRAB_* variables
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("FRAMEGRAB_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("FRAMEGRAB_QUALITY"); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FRAMEGRAB_QUALITY: %w", err)
		}
		c.Extract.Quality = &q
	}
	if v := os.Getenv("FRAMEGRAB_MAX_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FRAMEGRAB_MAX_SIZE: %w", err)
		}
		c.Extract.MaxSize = n
	}
	if v := os.Getenv("FRAMEGRAB_FORMATS"); v != "" {
		c.Formats = nil
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				c.Formats = append(c.Formats, f)
			}
		}
	}
	if v := os.Getenv("FRAMEGRAB_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FRAMEGRAB_PORT: %w", err)
		}
		c.Serve.Port = p
	}
	return nil
}

// Validate checks every setting and reports all problems at once
func (c *Config) Validate() error {
	var errs []error

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(c.Formats) == 0 {
		errs = append(errs, errors.New("formats: at least one format is required"))
	}
	for _, f := range c.Formats {
		if _, err := still.ParseFormat(f); err != nil {
			errs = append(errs, fmt.Errorf("formats: %w", err))
		}
	}
	if c.Extract.Offset != nil {
		if err := media.ValidateOffset(*c.Extract.Offset); err != nil {
			errs = append(errs, fmt.Errorf("extract.offset: %w", err))
		}
	}
	if err := still.ValidateQuality(c.Extract.Quality); err != nil {
		errs = append(errs, fmt.Errorf("extract.quality: %w", err))
	}
	if err := convert.ValidateMaxSize(c.Extract.MaxSize); err != nil {
		errs = append(errs, fmt.Errorf("extract.max_size: %w", err))
	}
	if _, err := convert.ParseResampler(c.Extract.Resampler); err != nil {
		errs = append(errs, fmt.Errorf("extract.resampler: %w", err))
	}
	if _, err := still.ParseFormat(c.Extract.Ext); err != nil {
		errs = append(errs, fmt.Errorf("extract.ext: %w", err))
	}
	if c.Batch.Workers <= 0 {
		errs = append(errs, fmt.Errorf("batch.workers: must be positive, got %d", c.Batch.Workers))
	}
	if c.Serve.Port <= 0 || c.Serve.Port > 65535 {
		errs = append(errs, fmt.Errorf("serve.port: %d out of range", c.Serve.Port))
	}

	return errors.Join(errs...)
}

// Encoder returns a still encoder limited to the configured formats
func (c *Config) Encoder() (*still.Encoder, error) {
	formats := make([]still.Format, 0, len(c.Formats))
	for _, name := range c.Formats {
		f, err := still.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	if len(formats) == 0 {
		return nil, errors.New("no output formats enabled")
	}
	return still.NewEncoder(formats...), nil
}

// Request returns the configured extraction defaults as a request
func (c *Config) Request() extract.Request {
	return extract.Request{
		Offset:       c.Extract.Offset,
		MaxSize:      c.Extract.MaxSize,
		Quality:      c.Extract.Quality,
		Resampler:    convert.Resampler(c.Extract.Resampler),
		SquarePixels: c.Extract.SquarePixels,
		StrictSeek:   c.Extract.StrictSeek,
	}
}

// Logger returns a root logger filtered to the configured level
func (c *Config) Logger(name string) (alog.Logger, error) {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return alog.Logger{}, err
	}
	return alog.NewLogger(name).WithFilterLevel(level), nil
}

// ParseLevel maps a level name to a log level
func ParseLevel(name string) (alog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return alog.Debug, nil
	case "", "info":
		return alog.Info, nil
	case "warn", "warning":
		return alog.Warning, nil
	case "error":
		return alog.Error, nil
	default:
		return alog.Level{}, fmt.Errorf("unknown log level %q", name)
	}
}
