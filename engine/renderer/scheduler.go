package renderer

import (
	"context"
	"sync"
	"time"
)

// DefaultFrameRate is the pace of a TickerScheduler created with a non-positive rate.
const DefaultFrameRate = 60

// FrameScheduler is the per-frame yield point of the render loop.
// Next blocks until the next frame may start and returns ctx.Err() if ctx ends first.
type FrameScheduler interface {
	Next(ctx context.Context) error
}

// TickerScheduler paces frames on a time.Ticker.
type TickerScheduler struct {
	mu       sync.Mutex
	interval time.Duration
	ticker   *time.Ticker
}

var _ FrameScheduler = &TickerScheduler{}

// NewTickerScheduler creates a scheduler yielding fps times per second. fps <= 0 selects DefaultFrameRate.
//
// Parameters:
//   - fps: target frames per second
//
// Returns:
//   - *TickerScheduler: the scheduler, whose ticker starts on the first Next
func NewTickerScheduler(fps int) *TickerScheduler {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return &TickerScheduler{interval: time.Second / time.Duration(fps)}
}

// Interval returns the time between two frames.
func (s *TickerScheduler) Interval() time.Duration {
	return s.interval
}

func (s *TickerScheduler) Next(ctx context.Context) error {
	s.mu.Lock()
	if s.ticker == nil {
		s.ticker = time.NewTicker(s.interval)
	}
	c := s.ticker.C
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c:
		return nil
	}
}

// Stop stops the underlying ticker. A later Next restarts it.
func (s *TickerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

// ManualScheduler releases one frame per Step call.
type ManualScheduler struct {
	steps chan struct{}
}

var _ FrameScheduler = &ManualScheduler{}

// NewManualScheduler creates a scheduler that only advances when stepped.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{steps: make(chan struct{})}
}

// Step releases the loop waiting in Next. It blocks until the loop takes the step or ctx ends.
//
// Parameters:
//   - ctx: bounds the wait
//
// Returns:
//   - error: ctx.Err() if the step was not taken
func (s *ManualScheduler) Step(ctx context.Context) error {
	select {
	case s.steps <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ManualScheduler) Next(ctx context.Context) error {
	select {
	case <-s.steps:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
