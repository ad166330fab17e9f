package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"gocv.io/x/gocv"
)

// Snapshot defaults.
const (
	DefaultTimeout = 5 * time.Second
	// MaxSnapshotBytes bounds the body read from the camera.
	MaxSnapshotBytes = 32 << 20
)

// SnapshotSource fetches single still images from an HTTP camera endpoint,
// such as an ESP32-CAM "/cam-hi.jpg" handler.
type SnapshotSource struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// SnapshotOption configures a SnapshotSource.
type SnapshotOption func(*SnapshotSource)

// WithTimeout sets the per-fetch timeout. Values <= 0 are ignored.
func WithTimeout(d time.Duration) SnapshotOption {
	return func(s *SnapshotSource) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) SnapshotOption {
	return func(s *SnapshotSource) {
		if c != nil {
			s.client = c
		}
	}
}

// NewSnapshotSource creates a source for url with a 5 second timeout.
func NewSnapshotSource(url string, opts ...SnapshotOption) *SnapshotSource {
	s := &SnapshotSource{
		url:     url,
		client:  &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL returns the snapshot endpoint.
func (s *SnapshotSource) URL() string {
	return s.url
}

// Fetch downloads and decodes one snapshot.
func (s *SnapshotSource) Fetch(ctx context.Context) (*Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.download(ctx)
	if err != nil {
		return nil, &FetchError{Kind: ErrNetwork, URL: s.url, Err: err}
	}

	mat, err := Decode(data)
	if err != nil {
		return nil, &FetchError{Kind: ErrInvalidImage, URL: s.url, Err: err}
	}

	return NewFrame(mat), nil
}

func (s *SnapshotSource) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// Decode turns encoded image bytes into a 3-channel BGR matrix. On error the
// returned Mat must not be used.
func Decode(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.Mat{}, errors.New("empty body")
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, err
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, errors.New("payload is not a decodable image")
	}
	return mat, nil
}
