package renderer

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-raw/common"
	"github.com/Carmen-Shannon/oxy-raw/engine/profiler"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithClearColor sets the color the frame is cleared to before drawing. Defaults to opaque black.
//
// Parameters:
//   - c: the clear color
//
// Returns:
//   - RendererBuilderOption: a function that applies the clear color option to a renderer
func WithClearColor(c common.Color) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = c
	}
}

// WithScheduler sets the FrameScheduler the loop yields to between frames.
// Defaults to a TickerScheduler at DefaultFrameRate.
//
// Parameters:
//   - s: the scheduler
//
// Returns:
//   - RendererBuilderOption: a function that applies the scheduler option to a renderer
func WithScheduler(s FrameScheduler) RendererBuilderOption {
	return func(r *renderer) {
		r.scheduler = s
	}
}

// WithLogger sets the structured logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) RendererBuilderOption {
	return func(r *renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithProfiling enables the frame profiler, which reports FPS and memory stats through the renderer's logger once per second.
// Apply it after WithLogger to share the logger.
//
// Parameters:
//   - enabled: true to profile frames
//
// Returns:
//   - RendererBuilderOption: a function that applies the profiling option to a renderer
func WithProfiling(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		if !enabled {
			r.profiler = nil
			return
		}
		r.profiler = profiler.NewProfiler(profiler.WithLogger(r.logger))
	}
}

// WithOscillator replaces the default scale bounce state.
func WithOscillator(o Oscillator) RendererBuilderOption {
	return func(r *renderer) {
		r.oscillator = o
	}
}

// WithAnimation starts the renderer with the scale bounce and rotation advance enabled.
// Both are frozen by default, which draws the sphere at scale 1 without rotation.
func WithAnimation(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.animate = enabled
	}
}

// WithReleaseOnStop releases every device object when the frame loop exits.
func WithReleaseOnStop(release bool) RendererBuilderOption {
	return func(r *renderer) {
		r.releaseOnStop = release
	}
}
