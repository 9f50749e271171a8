//go:build js && wasm

package webgl

import (
	"fmt"
	"strings"
	"syscall/js"

	"github.com/Carmen-Shannon/oxy-raw/engine/surface"
)

// Canvas is an HTML canvas element used as a drawing surface.
type Canvas struct {
	el js.Value
}

var _ surface.Surface = &Canvas{}

// NewCanvas wraps a canvas element.
//
// Returns:
//   - *Canvas: the surface
//   - error: wraps surface.ErrInvalidSurface if el is not a canvas
func NewCanvas(el js.Value) (*Canvas, error) {
	if el.IsUndefined() || el.IsNull() {
		return nil, fmt.Errorf("no element: %w", surface.ErrInvalidSurface)
	}
	if tag := el.Get("tagName"); tag.Type() != js.TypeString || !strings.EqualFold(tag.String(), "canvas") {
		return nil, fmt.Errorf("element is not a canvas: %w", surface.ErrInvalidSurface)
	}
	return &Canvas{el: el}, nil
}

// Element returns the underlying DOM element.
func (c *Canvas) Element() js.Value {
	return c.el
}

// Width returns the drawing buffer width.
func (c *Canvas) Width() int {
	return c.el.Get("width").Int()
}

// Height returns the drawing buffer height.
func (c *Canvas) Height() int {
	return c.el.Get("height").Int()
}

// SetSize resizes the drawing buffer.
func (c *Canvas) SetSize(width, height int) {
	c.el.Set("width", width)
	c.el.Set("height", height)
}

// DocumentResolver resolves CSS selectors against the page document.
type DocumentResolver struct {
	document js.Value
}

var _ surface.Resolver = DocumentResolver{}

// NewDocumentResolver returns a resolver over the global document.
func NewDocumentResolver() DocumentResolver {
	return DocumentResolver{document: js.Global().Get("document")}
}

// Resolve returns the canvas matching selector. An empty selector, no match or a non-canvas element
// wraps surface.ErrInvalidSurface.
func (d DocumentResolver) Resolve(selector string) (surface.Surface, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, fmt.Errorf("empty selector: %w", surface.ErrInvalidSurface)
	}
	el, err := querySelector(d.document, selector)
	if err != nil {
		return nil, err
	}
	c, err := NewCanvas(el)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", selector, err)
	}
	return c, nil
}

// querySelector converts the SyntaxError thrown for malformed selectors into an error.
func querySelector(document js.Value, selector string) (el js.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("selector %q: %v: %w", selector, r, surface.ErrInvalidSurface)
		}
	}()
	return document.Call("querySelector", selector), nil
}
