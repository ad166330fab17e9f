package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect was invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// ThumbsUpLandmarks returns a right hand with the thumb raised above the
// knuckles and offset sideways from the wrist.
func ThumbsUpLandmarks() HandLandmarks {
	return HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
		Points: []Point3D{
			Wrist:    {X: 0.50, Y: 0.80},
			ThumbCMC: {X: 0.55, Y: 0.75},
			ThumbMCP: {X: 0.60, Y: 0.65},
			ThumbIP:  {X: 0.63, Y: 0.50},
			ThumbTip: {X: 0.65, Y: 0.35},

			// Fingers curled into the palm
			IndexMCP: {X: 0.55, Y: 0.70, Z: -0.02},
			IndexPIP: {X: 0.55, Y: 0.68, Z: -0.05},
			IndexDIP: {X: 0.52, Y: 0.70, Z: -0.04},
			IndexTip: {X: 0.50, Y: 0.72, Z: -0.02},

			MiddleMCP: {X: 0.50, Y: 0.68, Z: -0.02},
			MiddlePIP: {X: 0.50, Y: 0.66, Z: -0.05},
			MiddleDIP: {X: 0.47, Y: 0.68, Z: -0.04},
			MiddleTip: {X: 0.45, Y: 0.70, Z: -0.02},

			RingMCP: {X: 0.45, Y: 0.70, Z: -0.02},
			RingPIP: {X: 0.45, Y: 0.68, Z: -0.05},
			RingDIP: {X: 0.42, Y: 0.70, Z: -0.04},
			RingTip: {X: 0.40, Y: 0.72, Z: -0.02},

			PinkyMCP: {X: 0.40, Y: 0.72, Z: -0.02},
			PinkyPIP: {X: 0.40, Y: 0.70, Z: -0.05},
			PinkyDIP: {X: 0.37, Y: 0.72, Z: -0.04},
			PinkyTip: {X: 0.35, Y: 0.74, Z: -0.02},
		},
	}
}

// OpenPalmLandmarks returns a right hand with all fingers extended upward.
// The thumb stays below the index knuckle, so it is not a thumbs up.
func OpenPalmLandmarks() HandLandmarks {
	return HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
		Points: []Point3D{
			Wrist:    {X: 0.50, Y: 0.80},
			ThumbCMC: {X: 0.55, Y: 0.77, Z: 0.02},
			ThumbMCP: {X: 0.62, Y: 0.75, Z: 0.03},
			ThumbIP:  {X: 0.68, Y: 0.73, Z: 0.03},
			ThumbTip: {X: 0.73, Y: 0.72, Z: 0.03},

			IndexMCP: {X: 0.55, Y: 0.68},
			IndexPIP: {X: 0.57, Y: 0.55},
			IndexDIP: {X: 0.58, Y: 0.45},
			IndexTip: {X: 0.58, Y: 0.35},

			MiddleMCP: {X: 0.50, Y: 0.66},
			MiddlePIP: {X: 0.50, Y: 0.52},
			MiddleDIP: {X: 0.50, Y: 0.40},
			MiddleTip: {X: 0.50, Y: 0.30},

			RingMCP: {X: 0.45, Y: 0.68},
			RingPIP: {X: 0.44, Y: 0.55},
			RingDIP: {X: 0.43, Y: 0.45},
			RingTip: {X: 0.43, Y: 0.36},

			PinkyMCP: {X: 0.40, Y: 0.70},
			PinkyPIP: {X: 0.38, Y: 0.60},
			PinkyDIP: {X: 0.37, Y: 0.52},
			PinkyTip: {X: 0.36, Y: 0.45},
		},
	}
}
