// Package render draws hand landmark overlays onto frames.
package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/thumblight/internal/detector"
)

// Overlay styling. Colors are RGBA; gocv converts them to BGR when drawing.
var (
	// ConnectionColor draws the skeleton lines.
	ConnectionColor = color.RGBA{R: 224, G: 224, B: 224, A: 0}
	// LandmarkColor fills the landmark dots.
	LandmarkColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	// MarkerColor fills the thumbs-up marker.
	MarkerColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
)

// Overlay sizes in pixels.
const (
	// ConnectionThickness is the skeleton line width.
	ConnectionThickness = 2
	// LandmarkRadius is the radius of each landmark dot.
	LandmarkRadius = 3
	// MarkerRadius is the radius of the thumbs-up marker in pixels.
	MarkerRadius = 10
)

// DrawHand draws the skeleton connections and landmark points of hand onto
// img. Points missing from a partial landmark set are skipped.
func DrawHand(img *gocv.Mat, hand *detector.HandLandmarks) {
	if img == nil || img.Empty() || hand == nil {
		return
	}
	w, h := img.Cols(), img.Rows()

	for _, c := range detector.HandConnections {
		a, errA := hand.At(c[0])
		b, errB := hand.At(c[1])
		if errA != nil || errB != nil {
			continue
		}
		gocv.Line(img, a.Pixel(w, h), b.Pixel(w, h), ConnectionColor, ConnectionThickness)
	}

	for _, p := range hand.Points {
		gocv.Circle(img, p.Pixel(w, h), LandmarkRadius, LandmarkColor, -1)
	}
}

// MarkThumbTip draws a filled green circle at the thumb tip position.
func MarkThumbTip(img *gocv.Mat, tip detector.Point3D) image.Point {
	if img == nil || img.Empty() {
		return image.Point{}
	}
	center := tip.Pixel(img.Cols(), img.Rows())
	gocv.Circle(img, center, MarkerRadius, MarkerColor, -1)
	return center
}
