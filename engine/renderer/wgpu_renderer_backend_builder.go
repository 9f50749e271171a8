//go:build !js

package renderer

import "log/slog"

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// WGPUBackendOption is a functional option applied to the WebGPU backend during construction via NewWGPUBackend.
type WGPUBackendOption func(*wgpuBackend)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - WGPUBackendOption: a function that applies the present mode option to the backend
func WithPresentMode(mode PresentMode) WGPUBackendOption {
	return func(b *wgpuBackend) {
		b.presentMode = mode
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - WGPUBackendOption: a function that applies the force software renderer option to the backend
func WithForceSoftwareRenderer(force bool) WGPUBackendOption {
	return func(b *wgpuBackend) {
		b.forceFallbackAdapter = force
	}
}

// WithBackendLogger sets the logger for device events. A nil logger is ignored.
func WithBackendLogger(logger *slog.Logger) WGPUBackendOption {
	return func(b *wgpuBackend) {
		if logger != nil {
			b.logger = logger
		}
	}
}
