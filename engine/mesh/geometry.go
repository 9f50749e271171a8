package mesh

import (
	"errors"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-raw/common"
)

// ErrInvalidGeometry is returned when a Geometry breaks its layout invariants.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Geometry is an indexed triangle mesh ready for upload.
// Vertices holds flattened xyz positions, Indices references them as 16-bit vertex indices.
type Geometry struct {
	Vertices []float32
	Indices  []uint16
}

// VertexCount returns the number of xyz positions in the geometry.
func (g Geometry) VertexCount() int {
	return len(g.Vertices) / 3
}

// IndexCount returns the number of indices in the geometry.
func (g Geometry) IndexCount() int {
	return len(g.Indices)
}

// VertexBytes returns a byte view of the vertex positions.
// The returned slice aliases Vertices.
func (g Geometry) VertexBytes() []byte {
	return common.SliceToBytes(g.Vertices)
}

// IndexBytes returns a byte view of the indices.
// The returned slice aliases Indices.
func (g Geometry) IndexBytes() []byte {
	return common.SliceToBytes(g.Indices)
}

// Validate checks that the geometry can be drawn: positions come in whole xyz triples, there is at least one index,
// the vertex count fits the 16-bit index range and every index addresses an existing vertex.
//
// Returns:
//   - error: an error wrapping ErrInvalidGeometry describing the first violation, or nil
func (g Geometry) Validate() error {
	if len(g.Vertices) == 0 || len(g.Vertices)%3 != 0 {
		return fmt.Errorf("%w: vertex array length %d is not a positive multiple of 3", ErrInvalidGeometry, len(g.Vertices))
	}
	if len(g.Indices) == 0 {
		return fmt.Errorf("%w: no indices", ErrInvalidGeometry)
	}
	count := g.VertexCount()
	if count > math.MaxUint16+1 {
		return fmt.Errorf("%w: %d vertices exceed the 16-bit index range", ErrInvalidGeometry, count)
	}
	for i, idx := range g.Indices {
		if int(idx) >= count {
			return fmt.Errorf("%w: index %d at position %d out of range [0, %d)", ErrInvalidGeometry, idx, i, count)
		}
	}
	return nil
}
