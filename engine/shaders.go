//go:build !js

package engine

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-raw/common"
)

var (
	//go:embed shaders/sphere.vert.wgsl
	defaultVertexShader string

	//go:embed shaders/sphere.frag.wgsl
	defaultFragmentShader string
)

// loadShaders reads the shader files, falling back to the built-in sources for empty paths.
func loadShaders(vertexPath, fragmentPath string) (vertex, fragment string, err error) {
	read := func(path string) (string, error) {
		if path == "" {
			return "", nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read shader: %w", err)
		}
		return string(b), nil
	}
	if vertex, err = read(vertexPath); err != nil {
		return "", "", err
	}
	if fragment, err = read(fragmentPath); err != nil {
		return "", "", err
	}
	return common.Coalesce(vertex, defaultVertexShader), common.Coalesce(fragment, defaultFragmentShader), nil
}
