// Package mesh generates procedural geometry for the raw pipeline.
package mesh

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/chewxy/math32"
)

var (
	// ErrInvalidSegments is returned when a segment count is not positive.
	ErrInvalidSegments = errors.New("segment counts must be positive")

	// ErrIndexOverflow is returned when the lattice has more vertices than 16-bit indices can address.
	ErrIndexOverflow = errors.New("sphere lattice exceeds the 16-bit index range")
)

// maxVertices is the number of vertices addressable by a uint16 index.
const maxVertices = math.MaxUint16 + 1

// GenerateSphere builds a unit UV sphere from a (ySegments+1) x (xSegments+1) lattice.
// Lattice point (yi, xi) sits at u = xi/xSegments, v = yi/ySegments:
//
//	x = cos(2πu)·sin(πv), y = cos(πv), z = sin(2πu)·sin(πv)
//
// For every cell (i, j) two triangles are emitted, (idx(i,j), idx(i+1,j), idx(i+1,j+1)) and
// (idx(i,j), idx(i+1,j+1), idx(i,j+1)), with idx(r, c) = r*(xSegments+1)+c, in row-major cell order.
// The same input always yields bit-identical output.
//
// Parameters:
//   - xSegments: number of longitudinal segments
//   - ySegments: number of latitudinal segments
//   - opts: generation options
//
// Returns:
//   - Geometry: the generated positions and indices
//   - error: ErrInvalidSegments or ErrIndexOverflow
func GenerateSphere(xSegments, ySegments int, opts ...SphereBuilderOption) (Geometry, error) {
	if xSegments <= 0 || ySegments <= 0 {
		return Geometry{}, fmt.Errorf("%w: got %dx%d", ErrInvalidSegments, xSegments, ySegments)
	}
	if xSegments >= maxVertices || ySegments >= maxVertices {
		return Geometry{}, fmt.Errorf("%w: %dx%d", ErrIndexOverflow, xSegments, ySegments)
	}
	vertexCount := (xSegments + 1) * (ySegments + 1)
	if vertexCount > maxVertices {
		return Geometry{}, fmt.Errorf("%w: %dx%d needs %d vertices, max %d", ErrIndexOverflow, xSegments, ySegments, vertexCount, maxVertices)
	}

	b := &sphereBuilder{}
	for _, opt := range opts {
		opt(b)
	}

	g := Geometry{
		Vertices: make([]float32, 3*vertexCount),
		Indices:  make([]uint16, 6*xSegments*ySegments),
	}

	if b.pool == nil {
		for yi := 0; yi <= ySegments; yi++ {
			fillRow(g, yi, xSegments, ySegments)
		}
		return g, nil
	}

	// Each row writes a disjoint range of both slices, so tasks need no locking.
	var wg sync.WaitGroup
	for yi := 0; yi <= ySegments; yi++ {
		wg.Add(1)
		row := yi
		b.pool.SubmitTask(worker.Task{
			ID: row,
			Do: func() (any, error) {
				defer wg.Done()
				fillRow(g, row, xSegments, ySegments)
				return nil, nil
			},
		})
	}
	wg.Wait()

	return g, nil
}

// fillRow writes the lattice positions of row yi and, for every row but the last, the indices of the cells below it.
func fillRow(g Geometry, yi, xSegments, ySegments int) {
	stride := xSegments + 1
	v := float32(yi) / float32(ySegments)
	sinV := math32.Sin(v * math32.Pi)
	cosV := math32.Cos(v * math32.Pi)

	base := yi * stride * 3
	for xi := 0; xi <= xSegments; xi++ {
		u := float32(xi) / float32(xSegments)
		g.Vertices[base+xi*3] = math32.Cos(u*2*math32.Pi) * sinV
		g.Vertices[base+xi*3+1] = cosV
		g.Vertices[base+xi*3+2] = math32.Sin(u*2*math32.Pi) * sinV
	}

	if yi == ySegments {
		return
	}
	out := yi * xSegments * 6
	for j := 0; j < xSegments; j++ {
		a := uint16(yi*stride + j)
		b := uint16((yi+1)*stride + j)
		c := b + 1
		d := a + 1
		g.Indices[out] = a
		g.Indices[out+1] = b
		g.Indices[out+2] = c
		g.Indices[out+3] = a
		g.Indices[out+4] = c
		g.Indices[out+5] = d
		out += 6
	}
}
