//go:build js && wasm

package webgl

import "syscall/js"

// glConsts caches the WebGL2 enum values read from the context.
type glConsts struct {
	vertexShader       int
	fragmentShader     int
	compileStatus      int
	linkStatus         int
	arrayBuffer        int
	elementArrayBuffer int
	staticDraw         int
	floatType          int
	unsignedShort      int
	triangleStrip      int
	triangles          int
	depthTest          int
	lequal             int
	less               int
	always             int
	colorBufferBit     int
	depthBufferBit     int
	noError            int
}

func readConsts(gl js.Value) glConsts {
	return glConsts{
		vertexShader:       gl.Get("VERTEX_SHADER").Int(),
		fragmentShader:     gl.Get("FRAGMENT_SHADER").Int(),
		compileStatus:      gl.Get("COMPILE_STATUS").Int(),
		linkStatus:         gl.Get("LINK_STATUS").Int(),
		arrayBuffer:        gl.Get("ARRAY_BUFFER").Int(),
		elementArrayBuffer: gl.Get("ELEMENT_ARRAY_BUFFER").Int(),
		staticDraw:         gl.Get("STATIC_DRAW").Int(),
		floatType:          gl.Get("FLOAT").Int(),
		unsignedShort:      gl.Get("UNSIGNED_SHORT").Int(),
		triangleStrip:      gl.Get("TRIANGLE_STRIP").Int(),
		triangles:          gl.Get("TRIANGLES").Int(),
		depthTest:          gl.Get("DEPTH_TEST").Int(),
		lequal:             gl.Get("LEQUAL").Int(),
		less:               gl.Get("LESS").Int(),
		always:             gl.Get("ALWAYS").Int(),
		colorBufferBit:     gl.Get("COLOR_BUFFER_BIT").Int(),
		depthBufferBit:     gl.Get("DEPTH_BUFFER_BIT").Int(),
		noError:            gl.Get("NO_ERROR").Int(),
	}
}
