// Package testdata provides camera fixtures shared by tests.
package testdata

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"sync/atomic"
)

// SnapshotJPEG encodes a solid width x height frame as JPEG.
func SnapshotJPEG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill := color.RGBA{R: 200, G: 120, B: 40, A: 255}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Camera mimics an ESP32-CAM snapshot endpoint.
type Camera struct {
	jpeg     []byte
	requests atomic.Int64
}

// NewCamera serves the same width x height snapshot on every request.
func NewCamera(width, height int) *Camera {
	return &Camera{jpeg: SnapshotJPEG(width, height)}
}

func (c *Camera) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.requests.Add(1)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(c.jpeg)
}

// Requests returns how many snapshots were served.
func (c *Camera) Requests() int64 {
	return c.requests.Load()
}
