// Package config loads the viewer configuration from YAML or TOML files.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Format is the encoding of a config file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported config extension %q", filepath.Ext(path))
}

// Config is the complete viewer configuration.
type Config struct {
	Window  WindowConfig `yaml:"window" toml:"window"`
	Sphere  SphereConfig `yaml:"sphere" toml:"sphere"`
	Shaders ShaderConfig `yaml:"shaders" toml:"shaders"`
	Render  RenderConfig `yaml:"render" toml:"render"`
	Log     LogConfig    `yaml:"log" toml:"log"`
}

// WindowConfig configures the native window.
type WindowConfig struct {
	Title  string `yaml:"title" toml:"title"`
	Width  int    `yaml:"width" toml:"width"`
	Height int    `yaml:"height" toml:"height"`
}

// SphereConfig configures the generated mesh.
type SphereConfig struct {
	XSegments int `yaml:"x_segments" toml:"x_segments"`
	YSegments int `yaml:"y_segments" toml:"y_segments"`

	// Workers > 1 generates rows on a worker pool.
	Workers int `yaml:"workers" toml:"workers"`
}

// ShaderConfig points at shader files. Empty paths select the built-in shaders.
type ShaderConfig struct {
	Vertex   string `yaml:"vertex" toml:"vertex"`
	Fragment string `yaml:"fragment" toml:"fragment"`
}

// RenderConfig configures the frame loop and the backend.
type RenderConfig struct {
	FrameRate     int       `yaml:"frame_rate" toml:"frame_rate"`
	Animate       bool      `yaml:"animate" toml:"animate"`
	ClearColor    []float32 `yaml:"clear_color" toml:"clear_color"`
	Color         []float32 `yaml:"color" toml:"color"`
	PresentMode   string    `yaml:"present_mode" toml:"present_mode"`
	Profiling     bool      `yaml:"profiling" toml:"profiling"`
	ForceSoftware bool      `yaml:"force_software" toml:"force_software"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Present modes accepted by RenderConfig.PresentMode.
const (
	PresentVSync    = "vsync"
	PresentUncapped = "uncapped"
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:  "oxy-raw",
			Width:  800,
			Height: 800,
		},
		Sphere: SphereConfig{
			XSegments: 64,
			YSegments: 64,
			Workers:   1,
		},
		Render: RenderConfig{
			FrameRate:   60,
			ClearColor:  []float32{0, 0, 0, 1},
			Color:       []float32{1, 1, 1, 1},
			PresentMode: PresentVSync,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the file at path over the defaults and validates the result.
//
// Parameters:
//   - path: a .yaml, .yml or .toml file
//
// Returns:
//   - Config: the merged configuration
//   - error: read, decode or validation error
func Load(path string) (Config, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Config{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f, format)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads a document of the given format over the defaults and validates the result.
func Decode(r io.Reader, format Format) (Config, error) {
	cfg := Default()
	// lists replace the defaults instead of merging into them
	cfg.Render.ClearColor, cfg.Render.Color = nil, nil

	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatTOML:
		if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode toml: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", format)
	}

	def := Default()
	if cfg.Render.ClearColor == nil {
		cfg.Render.ClearColor = def.Render.ClearColor
	}
	if cfg.Render.Color == nil {
		cfg.Render.Color = def.Render.Color
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	case c.Sphere.XSegments <= 0 || c.Sphere.YSegments <= 0:
		return fmt.Errorf("%w: sphere segments %dx%d", ErrInvalidConfig, c.Sphere.XSegments, c.Sphere.YSegments)
	case c.Sphere.Workers < 0:
		return fmt.Errorf("%w: sphere workers %d", ErrInvalidConfig, c.Sphere.Workers)
	case c.Render.FrameRate <= 0:
		return fmt.Errorf("%w: frame rate %d", ErrInvalidConfig, c.Render.FrameRate)
	case len(c.Render.ClearColor) != 4:
		return fmt.Errorf("%w: clear color needs 4 components, got %d", ErrInvalidConfig, len(c.Render.ClearColor))
	case len(c.Render.Color) == 0 || len(c.Render.Color)%4 != 0:
		return fmt.Errorf("%w: color needs a multiple of 4 components, got %d", ErrInvalidConfig, len(c.Render.Color))
	case c.Render.PresentMode != PresentVSync && c.Render.PresentMode != PresentUncapped:
		return fmt.Errorf("%w: present mode %q", ErrInvalidConfig, c.Render.PresentMode)
	case c.Log.Format != "text" && c.Log.Format != "json":
		return fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.Log.Format)
	}
	if _, err := c.Log.level(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(l.Level))
	return level, err
}

// NewLogger builds a text or JSON slog logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
