//go:build js && wasm

// Package webgl runs the raw render pipeline in a browser on a WebGL2 canvas.
package webgl
