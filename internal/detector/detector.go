package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a BGR frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for the landmark model.
type Config struct {
	// MaxHands is the maximum number of hands to detect.
	MaxHands int

	// MinDetectionConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinDetectionConfidence float64

	// StaticImageMode treats every frame independently when true. Streaming
	// mode (false) lets the model track the hand between frames.
	StaticImageMode bool

	// ScriptPath overrides the location of mediapipe_service.py.
	ScriptPath string

	// PythonPath overrides the interpreter; defaults to a venv or python3.
	PythonPath string

	// IdleTimeout stops the model process after this long without frames.
	IdleTimeout time.Duration
}

// DefaultConfig returns the single-hand streaming configuration.
func DefaultConfig() Config {
	return Config{
		MaxHands:               1,
		MinDetectionConfidence: 0.5,
		StaticImageMode:        false,
		IdleTimeout:            30 * time.Second,
	}
}
