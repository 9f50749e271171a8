package renderer

import (
	"github.com/Carmen-Shannon/oxy-raw/common"
	"github.com/chewxy/math32"
)

// RotationStep is the Y rotation advanced per frame while animation is enabled.
const RotationStep = math32.Pi / 720

// Transform holds the per-frame matrices uploaded to the program.
// Model is rebuilt from identity every frame and never accumulates.
type Transform struct {
	Rotate common.Mat4
	Model  common.Mat4
	Angle  float32
}

// NewTransform returns a transform with identity matrices and a zero angle.
func NewTransform() Transform {
	return Transform{Rotate: common.NewIdentity(), Model: common.NewIdentity()}
}

// Rebuild sets Model to identity * rotateY(Angle) * scale(s, s, s).
func (t *Transform) Rebuild(scale float32) {
	common.BuildModelMatrix(t.Model[:], t.Angle, scale)
}

// Oscillator is the scale bounce state. Change flips sign when Scale leaves [Min, Max].
type Oscillator struct {
	Scale  float32
	Change float32
	Min    float32
	Max    float32
	Step   float32
}

// NewOscillator returns the default bounce: scale 1 shrinking by 0.01, bounded by [0.45, 1] with step 0.002.
func NewOscillator() Oscillator {
	return Oscillator{
		Scale:  1,
		Change: -0.01,
		Min:    0.45,
		Max:    1,
		Step:   0.002,
	}
}

// Update re-evaluates the bounce direction and, when advance is true, applies it to Scale.
//
// Parameters:
//   - advance: whether Scale moves this frame
func (o *Oscillator) Update(advance bool) {
	if o.Scale > o.Max {
		o.Change = -o.Step
	} else if o.Scale < o.Min {
		o.Change = o.Step
	}
	if advance {
		o.Scale += o.Change
	}
}
