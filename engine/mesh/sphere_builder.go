package mesh

import "github.com/Carmen-Shannon/automation/tools/worker"

// SphereBuilderOption configures sphere generation.
type SphereBuilderOption func(*sphereBuilder)

type sphereBuilder struct {
	pool worker.DynamicWorkerPool
}

// WithWorkerPool spreads the lattice rows over the given worker pool.
// Output is identical to the serial path. A nil pool keeps generation on the calling goroutine.
//
// Parameters:
//   - pool: the pool to submit one task per lattice row to
//
// Returns:
//   - SphereBuilderOption: the option
func WithWorkerPool(pool worker.DynamicWorkerPool) SphereBuilderOption {
	return func(b *sphereBuilder) {
		b.pool = pool
	}
}
