package profiler

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestProfilerReportsPerInterval(t *testing.T) {
	var buf bytes.Buffer
	clock := &fakeClock{t: time.Unix(1000, 0)}
	p := NewProfiler(
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
		WithInterval(time.Second),
		withClock(clock.now),
	)

	for i := 0; i < 59; i++ {
		clock.t = clock.t.Add(10 * time.Millisecond)
		assert.False(t, p.Tick())
	}
	assert.Empty(t, buf.String())

	clock.t = time.Unix(1002, 0)
	assert.True(t, p.Tick())

	s := p.Last()
	assert.Equal(t, 60, s.Frames)
	assert.InDelta(t, 30.0, s.FPS, 1e-9)
	assert.Equal(t, 2*time.Second, s.WindowLength)
	assert.Contains(t, buf.String(), "frame stats")
	assert.Contains(t, buf.String(), "fps=30")

	// counters reset after a report
	clock.t = clock.t.Add(100 * time.Millisecond)
	assert.False(t, p.Tick())
}

func TestProfilerOptionsIgnoreInvalid(t *testing.T) {
	p := NewProfiler(WithLogger(nil), WithInterval(-time.Second))
	assert.NotNil(t, p.logger)
	assert.Equal(t, time.Second, p.updateInterval)
}
