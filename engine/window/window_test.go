//go:build !js

package window

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-raw/engine/surface"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/stretchr/testify/assert"
)

var _ surface.Surface = &engineWindow{}

func TestWindowOptions(t *testing.T) {
	w := newEngineWindow(
		WithTitle("sphere"),
		WithSize(1024, 768),
		WithMinSize(320, 240),
		WithMaxSize(1920, 0),
	)
	assert.Equal(t, "sphere", w.title)
	assert.Equal(t, 1024, w.Width())
	assert.Equal(t, 768, w.Height())
	assert.Equal(t, 320, w.minWidth)
	assert.Equal(t, 240, w.minHeight)
	assert.Equal(t, 1920, w.maxWidth)
	assert.Equal(t, 0, w.maxHeight)
}

func TestWindowDefaults(t *testing.T) {
	w := newEngineWindow()
	assert.Equal(t, 800, w.Width())
	assert.Equal(t, 800, w.Height())
	assert.False(t, w.IsRunning())
	assert.Nil(t, w.SurfaceDescriptor())
	assert.Error(t, w.Close())
}

func TestNewWindowRejectsEmptySize(t *testing.T) {
	_, err := NewWindow(WithSize(0, 600))
	assert.Error(t, err)
}

func TestSetSizeNotifies(t *testing.T) {
	w := newEngineWindow()
	var gotW, gotH int
	w.SetResizeCallback(func(width, height int) {
		gotW, gotH = width, height
	})
	w.setSize(640, 360)
	assert.Equal(t, 640, gotW)
	assert.Equal(t, 360, gotH)
	assert.Equal(t, 640, w.Width())
	assert.Equal(t, 360, w.Height())
}

func TestSizeLimit(t *testing.T) {
	assert.Equal(t, glfw.DontCare, sizeLimit(0))
	assert.Equal(t, glfw.DontCare, sizeLimit(-5))
	assert.Equal(t, 300, sizeLimit(300))
}
