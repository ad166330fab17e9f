package capture

import (
	"context"
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

var errNoMoreFrames = errors.New("no more frames")

// MockStep is one scripted Fetch result: a frame to clone or an error.
type MockStep struct {
	Frame *gocv.Mat
	Err   error
}

// MockSource plays back scripted fetch results for testing.
type MockSource struct {
	steps []MockStep
	index int
	loop  bool
	mu    sync.Mutex
	calls int
}

// NewMockSource returns a source replaying frames in order.
func NewMockSource(frames []*gocv.Mat, loop bool) *MockSource {
	steps := make([]MockStep, len(frames))
	for i, f := range frames {
		steps[i] = MockStep{Frame: f}
	}
	return &MockSource{steps: steps, loop: loop}
}

// NewMockSourceSteps returns a source replaying explicit steps.
func NewMockSourceSteps(steps []MockStep, loop bool) *MockSource {
	return &MockSource{steps: steps, loop: loop}
}

// Fetch returns the next scripted result. Frames are cloned so the
// originals stay untouched.
func (s *MockSource) Fetch(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if s.index >= len(s.steps) {
		if !s.loop || len(s.steps) == 0 {
			return nil, &FetchError{Kind: ErrNetwork, URL: "mock://", Err: errNoMoreFrames}
		}
		s.index = 0
	}

	step := s.steps[s.index]
	s.index++

	if step.Err != nil {
		return nil, step.Err
	}
	return NewFrame(step.Frame.Clone()), nil
}

// Calls returns how many times Fetch was invoked.
func (s *MockSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Reset restarts playback from the beginning.
func (s *MockSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = 0
}
