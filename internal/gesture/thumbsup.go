// Package gesture evaluates fixed-rule gestures on detected hand landmarks.
package gesture

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/thumblight/internal/detector"
)

// ThumbOffset is the minimum horizontal distance, in normalized frame
// widths, between thumb tip and wrist.
const ThumbOffset = 0.1

// ErrDetection is returned when a hand cannot be evaluated.
var ErrDetection = errors.New("gesture detection failed")

// Verdict is the outcome of evaluating one hand.
type Verdict struct {
	Detected bool
	// ThumbTip is the normalized thumb tip position, set whenever the hand
	// could be evaluated.
	ThumbTip detector.Point3D
}

// Evaluate applies the thumbs-up rule: the thumb tip is above both the index
// finger base knuckle and the wrist, and more than ThumbOffset away from the
// wrist horizontally. Image Y grows downward, so "above" means smaller Y.
func Evaluate(hand *detector.HandLandmarks) (Verdict, error) {
	tip, err := hand.At(detector.ThumbTip)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrDetection, err)
	}
	indexMCP, err := hand.At(detector.IndexMCP)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrDetection, err)
	}
	wrist, err := hand.At(detector.Wrist)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrDetection, err)
	}

	thumbUp := tip.Y < indexMCP.Y && tip.Y < wrist.Y
	thumbPositioned := math.Abs(tip.X-wrist.X) > ThumbOffset

	return Verdict{
		Detected: thumbUp && thumbPositioned,
		ThumbTip: tip,
	}, nil
}

// Check is Evaluate with errors logged and downgraded to a negative verdict.
func Check(log logrus.FieldLogger, hand *detector.HandLandmarks) Verdict {
	v, err := Evaluate(hand)
	if err != nil {
		if log != nil {
			log.WithError(err).Error("failed to evaluate thumbs up")
		}
		return Verdict{}
	}
	return v
}
