// Package display publishes annotated frames to viewers.
package display

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/hybridgroup/mjpeg"
	"gocv.io/x/gocv"
)

// MJPEG is a display surface that re-encodes every shown frame as JPEG and
// fans it out to HTTP clients as a multipart MJPEG stream.
type MJPEG struct {
	stream *mjpeg.Stream

	mu     sync.RWMutex
	last   []byte
	frames int
}

// NewMJPEG creates an MJPEG display with no connected viewers.
func NewMJPEG() *MJPEG {
	return &MJPEG{stream: mjpeg.NewStream()}
}

// Show encodes img and replaces the current stream frame. It returns once
// the frame is visible to new and existing viewers.
func (d *MJPEG) Show(img *gocv.Mat) error {
	if img == nil || img.Empty() {
		return fmt.Errorf("show: empty frame")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *img)
	if err != nil {
		return fmt.Errorf("show: encode jpeg: %w", err)
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	d.stream.UpdateJPEG(data)

	d.mu.Lock()
	d.last = data
	d.frames++
	d.mu.Unlock()
	return nil
}

// ServeHTTP streams frames to the client until it disconnects.
func (d *MJPEG) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	d.stream.ServeHTTP(w, r)
}

// ServeSnapshot writes the most recent frame as a single JPEG.
func (d *MJPEG) ServeSnapshot(w http.ResponseWriter, r *http.Request) {
	data := d.LastFrame()
	if data == nil {
		http.Error(w, "no frame yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

// LastFrame returns the most recent JPEG, or nil before the first Show.
func (d *MJPEG) LastFrame() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last
}

// Frames returns how many frames have been shown.
func (d *MJPEG) Frames() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.frames
}

// Discard is a display that drops frames, for headless runs.
type Discard struct{}

// Show implements the display contract without output.
func (Discard) Show(*gocv.Mat) error { return nil }
