package common

import (
	"github.com/chewxy/math32"
)

// Mat4 is a 4x4 matrix stored in column-major order (OpenGL/WebGPU convention).
type Mat4 [16]float32

// NewIdentity returns a fresh identity matrix.
//
// Returns:
//   - Mat4: the identity matrix
func NewIdentity() Mat4 {
	var m Mat4
	Identity(m[:])
	return m
}

// Identity resets a 4x4 matrix (flat slice) to the identity matrix.
// The matrix is stored in column-major order.
//
// Parameters:
//   - m: destination slice (must be at least 16 elements)
func Identity(m []float32) {
	for i := range m {
		m[i] = 0
	}
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
}

// Mul4 multiplies two 4x4 matrices and stores the result in out.
// All matrices are stored in column-major order (OpenGL/WebGPU convention).
// Result: out = a * b
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - a: left-hand matrix (16 elements)
//   - b: right-hand matrix (16 elements)
func Mul4(out, a, b []float32) {
	var buf [16]float32
	for i := 0; i < 4; i++ { // column of B
		for j := 0; j < 4; j++ { // row of A
			sum := float32(0)
			for k := 0; k < 4; k++ {
				sum += a[k*4+j] * b[i*4+k]
			}
			buf[i*4+j] = sum
		}
	}
	copy(out, buf[:])
}

// RotateY post-multiplies m by a rotation of rad radians around the Y axis, in place.
// Equivalent to m = m * Ry(rad).
//
// Parameters:
//   - m: the matrix to rotate (16 elements, column-major)
//   - rad: rotation angle in radians
func RotateY(m []float32, rad float32) {
	s := math32.Sin(rad)
	c := math32.Cos(rad)

	// Only columns 0 and 2 change.
	for row := 0; row < 4; row++ {
		a0 := m[row]
		a2 := m[8+row]
		m[row] = a0*c - a2*s
		m[8+row] = a0*s + a2*c
	}
}

// Scale post-multiplies m by a non-uniform scale, in place.
// Equivalent to m = m * S(x, y, z).
//
// Parameters:
//   - m: the matrix to scale (16 elements, column-major)
//   - x, y, z: scale factors along each axis
func Scale(m []float32, x, y, z float32) {
	for row := 0; row < 4; row++ {
		m[row] *= x
		m[4+row] *= y
		m[8+row] *= z
	}
}

// BuildModelMatrix writes identity * Ry(rotY) * S(scale, scale, scale) into out.
// The previous contents of out are discarded.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - rotY: rotation around the Y axis in radians
//   - scale: uniform scale factor
func BuildModelMatrix(out []float32, rotY, scale float32) {
	Identity(out)
	RotateY(out, rotY)
	Scale(out, scale, scale, scale)
}
