package mesh

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSphereCounts(t *testing.T) {
	cases := []struct{ x, y int }{{1, 1}, {2, 2}, {3, 5}, {64, 64}, {255, 255}}
	for _, c := range cases {
		g, err := GenerateSphere(c.x, c.y)
		require.NoError(t, err)
		assert.Len(t, g.Vertices, 3*(c.x+1)*(c.y+1), "%dx%d", c.x, c.y)
		assert.Len(t, g.Indices, 6*c.x*c.y, "%dx%d", c.x, c.y)
		assert.NoError(t, g.Validate())
	}
}

func TestGenerateSphereFirstCell(t *testing.T) {
	g, err := GenerateSphere(2, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 3, 4, 0, 4, 1}, g.Indices[:6])
	assert.Equal(t, []uint16{1, 4, 5, 1, 5, 2}, g.Indices[6:12])
	assert.Equal(t, []uint16{3, 6, 7, 3, 7, 4}, g.Indices[12:18])
}

func TestGenerateSpherePoles(t *testing.T) {
	g, err := GenerateSphere(4, 4)
	require.NoError(t, err)

	// first row sits on the north pole, last row on the south pole
	for xi := 0; xi <= 4; xi++ {
		assert.InDelta(t, 1, g.Vertices[xi*3+1], 1e-6)
		last := (4*5 + xi) * 3
		assert.InDelta(t, -1, g.Vertices[last+1], 1e-6)
	}
	assert.Equal(t, float32(0), g.Vertices[0])
	assert.Equal(t, float32(0), g.Vertices[2])
}

func TestGenerateSphereUnitRadius(t *testing.T) {
	g, err := GenerateSphere(16, 12)
	require.NoError(t, err)
	for i := 0; i < g.VertexCount(); i++ {
		x, y, z := g.Vertices[i*3], g.Vertices[i*3+1], g.Vertices[i*3+2]
		assert.InDelta(t, 1, math32.Sqrt(x*x+y*y+z*z), 1e-5, "vertex %d", i)
	}
}

func TestGenerateSphereDeterministic(t *testing.T) {
	a, err := GenerateSphere(32, 24)
	require.NoError(t, err)
	b, err := GenerateSphere(32, 24)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateSphereInvalidSegments(t *testing.T) {
	for _, c := range []struct{ x, y int }{{0, 4}, {4, 0}, {-1, 3}, {3, -8}} {
		_, err := GenerateSphere(c.x, c.y)
		assert.ErrorIs(t, err, ErrInvalidSegments, "%dx%d", c.x, c.y)
	}
}

func TestGenerateSphereIndexOverflow(t *testing.T) {
	// 256x255 lattice is exactly 65536 vertices
	g, err := GenerateSphere(255, 255)
	require.NoError(t, err)
	assert.Equal(t, 65536, g.VertexCount())
	assert.Equal(t, uint16(65535), g.Indices[len(g.Indices)-2])

	_, err = GenerateSphere(256, 256)
	assert.ErrorIs(t, err, ErrIndexOverflow)

	_, err = GenerateSphere(1<<40, 1<<40)
	assert.ErrorIs(t, err, ErrIndexOverflow)
}

func TestGenerateSphereWorkerPool(t *testing.T) {
	pool := worker.NewDynamicWorkerPool(4, 64, time.Second)
	defer pool.Stop()

	serial, err := GenerateSphere(48, 40)
	require.NoError(t, err)
	parallel, err := GenerateSphere(48, 40, WithWorkerPool(pool))
	require.NoError(t, err)
	assert.Equal(t, serial, parallel)

	// a nil pool falls back to the serial path
	fallback, err := GenerateSphere(48, 40, WithWorkerPool(nil))
	require.NoError(t, err)
	assert.Equal(t, serial, fallback)
}
