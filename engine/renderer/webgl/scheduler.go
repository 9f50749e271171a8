//go:build js && wasm

package webgl

import (
	"context"
	"syscall/js"

	"github.com/Carmen-Shannon/oxy-raw/engine/renderer"
)

// AnimationFrameScheduler paces frames on the browser's requestAnimationFrame.
type AnimationFrameScheduler struct {
	ready    chan struct{}
	callback js.Func
}

var _ renderer.FrameScheduler = &AnimationFrameScheduler{}

// NewAnimationFrameScheduler creates a scheduler. Release it once the loop has finished.
func NewAnimationFrameScheduler() *AnimationFrameScheduler {
	s := &AnimationFrameScheduler{ready: make(chan struct{}, 1)}
	s.callback = js.FuncOf(func(this js.Value, args []js.Value) any {
		select {
		case s.ready <- struct{}{}:
		default:
		}
		return nil
	})
	return s
}

// Next requests an animation frame and waits for it or for ctx.
func (s *AnimationFrameScheduler) Next(ctx context.Context) error {
	id := js.Global().Call("requestAnimationFrame", s.callback)
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		js.Global().Call("cancelAnimationFrame", id)
		return ctx.Err()
	}
}

// Release frees the JavaScript callback.
func (s *AnimationFrameScheduler) Release() {
	s.callback.Release()
}
