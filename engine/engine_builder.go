//go:build !js

package engine

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-raw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-raw/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithLogger sets the logger shared by the engine, backend and renderer. A nil logger is ignored.
//
// Parameters:
//   - logger: the structured logger
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(logger *slog.Logger) EngineBuilderOption {
	return func(e *engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithWindow sets a custom configured window for the engine to use rather than allowing the engine
// to create and manage one internally. The engine still closes it when Run returns.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithBackend replaces the WebGPU backend built from the configuration.
func WithBackend(b renderer.Backend) EngineBuilderOption {
	return func(e *engine) {
		e.backend = b
	}
}

// WithRenderer replaces the renderer built from the configuration. WithBackend has no effect with it.
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithShaderSources overrides both shader sources, taking precedence over the configured shader files.
//
// Parameters:
//   - vertex: vertex stage source
//   - fragment: fragment stage source
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithShaderSources(vertex, fragment string) EngineBuilderOption {
	return func(e *engine) {
		e.vertexSource, e.fragmentSource = vertex, fragment
	}
}

// WithFrameCallback sets the hook run at the start of every frame on the render goroutine.
func WithFrameCallback(callback func()) EngineBuilderOption {
	return func(e *engine) {
		e.onFrame = callback
	}
}
