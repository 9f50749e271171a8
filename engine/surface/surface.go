// Package surface names the drawable targets a renderer can bind to.
package surface

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrInvalidSurface is returned when a selector or handle does not name a drawable surface.
var ErrInvalidSurface = errors.New("invalid surface")

// Surface is a drawable target. Width and Height are the drawable size in pixels.
// Backends type-assert to the platform interfaces they need (a glfw window on native, a canvas in the browser).
type Surface interface {
	Width() int
	Height() int
}

// Resolver maps a string selector to a drawable Surface.
type Resolver interface {
	// Resolve returns the surface named by selector.
	//
	// Parameters:
	//   - selector: a surface name, optionally prefixed with '#'
	//
	// Returns:
	//   - Surface: the resolved surface
	//   - error: an error wrapping ErrInvalidSurface if nothing drawable matches
	Resolve(selector string) (Surface, error)
}

// Registry is a caller-owned Resolver backed by a name to surface map.
type Registry struct {
	mu       sync.RWMutex
	surfaces map[string]Surface
}

var _ Resolver = &Registry{}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{surfaces: make(map[string]Surface)}
}

// Register adds or replaces a surface under name. A leading '#' in name is ignored.
//
// Parameters:
//   - name: the surface name
//   - s: the surface, must not be nil
//
// Returns:
//   - error: an error wrapping ErrInvalidSurface for an empty name or nil surface
func (r *Registry) Register(name string, s Surface) error {
	name = strings.TrimPrefix(name, "#")
	if name == "" || s == nil {
		return fmt.Errorf("register %q: %w", name, ErrInvalidSurface)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.surfaces[name] = s
	return nil
}

// Unregister removes the surface registered under name, if any.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.surfaces, strings.TrimPrefix(name, "#"))
}

func (r *Registry) Resolve(selector string) (Surface, error) {
	name := strings.TrimPrefix(strings.TrimSpace(selector), "#")
	if name == "" {
		return nil, fmt.Errorf("resolve %q: empty selector: %w", selector, ErrInvalidSurface)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.surfaces[name]
	if !ok {
		return nil, fmt.Errorf("resolve %q: no surface registered: %w", selector, ErrInvalidSurface)
	}
	return s, nil
}

// Static is a fixed-size Surface with no platform backing, used by headless backends and tests.
type Static struct {
	W, H int
}

var _ Surface = Static{}

func (s Static) Width() int  { return s.W }
func (s Static) Height() int { return s.H }
