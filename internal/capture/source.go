// Package capture acquires camera frames as GoCV matrices.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// Fetch error kinds. Test with errors.Is.
var (
	// ErrNetwork covers unreachable hosts, timeouts and non-2xx responses.
	ErrNetwork = errors.New("network error")
	// ErrInvalidImage means the response body is not a decodable image.
	ErrInvalidImage = errors.New("invalid image")
)

// FetchError describes a failed frame fetch.
type FetchError struct {
	Kind error // ErrNetwork or ErrInvalidImage
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %v: %v", e.URL, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Frame is one decoded BGR image. The caller must Close it.
type Frame struct {
	Mat       gocv.Mat
	Width     int
	Height    int
	Timestamp time.Time
}

// NewFrame wraps mat, taking ownership of it.
func NewFrame(mat gocv.Mat) *Frame {
	return &Frame{
		Mat:       mat,
		Width:     mat.Cols(),
		Height:    mat.Rows(),
		Timestamp: time.Now(),
	}
}

// Close releases the underlying matrix.
func (f *Frame) Close() error {
	if f == nil {
		return nil
	}
	return f.Mat.Close()
}

// Source produces frames on demand.
type Source interface {
	// Fetch returns the next frame or a *FetchError.
	Fetch(ctx context.Context) (*Frame, error)
}

// SourceFactory builds a Source for a camera URL.
type SourceFactory func(url string) Source
