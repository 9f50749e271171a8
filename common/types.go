// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import "fmt"

// Color is a linear RGBA color with float components in [0, 1].
type Color struct {
	R, G, B, A float32
}

var (
	// ColorBlack is opaque black, the default clear color.
	ColorBlack = Color{R: 0, G: 0, B: 0, A: 1}

	// ColorWhite is opaque white, the default vertex color.
	ColorWhite = Color{R: 1, G: 1, B: 1, A: 1}
)

// ColorFromSlice builds a Color from a 4 element slice.
//
// Parameters:
//   - rgba: the red, green, blue and alpha components
//
// Returns:
//   - Color: the color
//   - error: an error if the slice does not hold exactly 4 components
func ColorFromSlice(rgba []float32) (Color, error) {
	if len(rgba) != 4 {
		return Color{}, fmt.Errorf("color must have 4 components, got %d", len(rgba))
	}
	return Color{R: rgba[0], G: rgba[1], B: rgba[2], A: rgba[3]}, nil
}

// Slice returns the color as a 4 element slice in RGBA order.
//
// Returns:
//   - []float32: the components
func (c Color) Slice() []float32 {
	return []float32{c.R, c.G, c.B, c.A}
}

// Viewport is a device viewport rectangle in pixels.
type Viewport struct {
	X, Y          int
	Width, Height int
}

// Empty reports whether the viewport covers no pixels.
//
// Returns:
//   - bool: true if width or height is not positive
func (v Viewport) Empty() bool {
	return v.Width <= 0 || v.Height <= 0
}
