package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"gocv.io/x/gocv"

	"github.com/ayusman/thumblight/internal/capture"
	"github.com/ayusman/thumblight/internal/detector"
)

const controlTopic = "casa/luz"

type harness struct {
	loop      *Loop
	source    *capture.MockSource
	detector  *detector.MockDetector
	publisher *fakePublisher
	display   *fakeDisplay
	events    *eventLog
	frame     gocv.Mat
}

func newHarness(t *testing.T, cfg LoopConfig, steps func(*gocv.Mat) []capture.MockStep) *harness {
	t.Helper()
	logger, _ := test.NewNullLogger()

	h := &harness{
		detector:  detector.NewMockDetector(),
		publisher: &fakePublisher{},
		display:   &fakeDisplay{},
		events:    &eventLog{},
		frame:     gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3),
	}
	h.source = capture.NewMockSourceSteps(steps(&h.frame), false)
	t.Cleanup(func() {
		h.frame.Close()
		h.display.Close()
	})

	if cfg.ControlTopic == "" {
		cfg.ControlTopic = controlTopic
	}
	h.loop = NewLoop(cfg, Deps{
		Sources:   sourceOf(h.source),
		Detector:  h.detector,
		Publisher: h.publisher,
		Display:   h.display,
		Notifier:  h.events,
		Log:       logger,
	})
	return h
}

func oneFrame(m *gocv.Mat) []capture.MockStep {
	return []capture.MockStep{{Frame: m}}
}

// runOnce runs the loop and stops it after the first displayed frame.
func (h *harness) runOnce(t *testing.T) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.display.onShow = cancel

	errCh := make(chan error, 1)
	go func() { errCh <- h.loop.Run(ctx, "mock://cam") }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
		return nil
	}
}

func TestLoop_ThumbsUpPublishesOnce(t *testing.T) {
	h := newHarness(t, LoopConfig{}, oneFrame)
	h.detector.SetHands([]detector.HandLandmarks{detector.ThumbsUpLandmarks()})

	if err := h.runOnce(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	msgs := h.publisher.messages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if msgs[0].topic != controlTopic || msgs[0].payload != ControlPayload {
		t.Errorf("published %+v, want ON to %s", msgs[0], controlTopic)
	}
	if h.display.count() != 1 {
		t.Errorf("frames shown = %d, want 1", h.display.count())
	}

	got := h.events.messages()
	want := []string{MsgThumbsUp, MsgStopped}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}

	stats := h.loop.Stats()
	if stats.Frames != 1 || stats.Hands != 1 || stats.ThumbsUp != 1 || stats.Published != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestLoop_MarksThumbTip(t *testing.T) {
	h := newHarness(t, LoopConfig{}, oneFrame)
	hand := detector.ThumbsUpLandmarks()
	h.detector.SetHands([]detector.HandLandmarks{hand})

	if err := h.runOnce(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	tip := hand.Points[detector.ThumbTip].Pixel(640, 480)
	px := h.display.last.GetVecbAt(tip.Y, tip.X)
	if px[0] != 0 || px[1] != 255 || px[2] != 0 {
		t.Errorf("thumb tip pixel = %v, want green marker", px)
	}

	// The source frame itself is left untouched.
	if v := h.frame.GetVecbAt(tip.Y, tip.X); v[1] != 0 {
		t.Error("source frame was modified")
	}
}

func TestLoop_NoDebounce(t *testing.T) {
	h := newHarness(t, LoopConfig{}, oneFrame)
	h.detector.SetHands([]detector.HandLandmarks{detector.ThumbsUpLandmarks(), detector.ThumbsUpLandmarks()})

	if err := h.runOnce(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := len(h.publisher.messages()); got != 2 {
		t.Errorf("published %d messages, want one per qualifying hand", got)
	}
}

func TestLoop_NoGesture(t *testing.T) {
	tests := []struct {
		name  string
		hands []detector.HandLandmarks
		err   error
	}{
		{name: "no hands"},
		{name: "open palm", hands: []detector.HandLandmarks{detector.OpenPalmLandmarks()}},
		{name: "incomplete hand", hands: []detector.HandLandmarks{{Points: make([]detector.Point3D, 3)}}},
		{name: "detector error", err: errors.New("model crashed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, LoopConfig{}, oneFrame)
			h.detector.SetHands(tt.hands)
			h.detector.SetError(tt.err)

			if err := h.runOnce(t); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got := len(h.publisher.messages()); got != 0 {
				t.Errorf("published %d messages, want 0", got)
			}
			if h.display.count() != 1 {
				t.Errorf("frames shown = %d, want 1", h.display.count())
			}
		})
	}
}

func TestLoop_PublishErrorDoesNotStop(t *testing.T) {
	h := newHarness(t, LoopConfig{}, oneFrame)
	h.detector.SetHands([]detector.HandLandmarks{detector.ThumbsUpLandmarks()})
	h.publisher.err = errors.New("broker down")

	if err := h.runOnce(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if h.display.count() != 1 {
		t.Error("frame should still be shown")
	}
	if h.loop.Stats().Published != 0 {
		t.Error("failed publish should not be counted")
	}
}

func TestLoop_FetchFailureHalts(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.ThumbsUpLandmarks()})
	pub := &fakePublisher{}
	disp := &fakeDisplay{}
	events := &eventLog{}

	loop := NewLoop(LoopConfig{ControlTopic: controlTopic}, Deps{
		Sources:   func(url string) capture.Source { return capture.NewSnapshotSource(url) },
		Detector:  det,
		Publisher: pub,
		Display:   disp,
		Notifier:  events,
		Log:       logger,
	})

	err := loop.Run(context.Background(), srv.URL+"/cam-hi.jpg")
	if !errors.Is(err, capture.ErrNetwork) {
		t.Fatalf("Run() error = %v, want ErrNetwork", err)
	}
	if len(pub.messages()) != 0 {
		t.Error("nothing should be published after a failed fetch")
	}
	if det.Calls() != 0 || disp.count() != 0 {
		t.Error("no detection or rendering after a failed fetch")
	}

	got := events.messages()
	want := fmt.Sprintf(MsgStreamError, err)
	if len(got) != 2 || got[0] != want || got[1] != MsgStopped {
		t.Errorf("events = %v, want [%q %q]", got, want, MsgStopped)
	}
}

func TestLoop_InvalidImageHalts(t *testing.T) {
	h := newHarness(t, LoopConfig{}, func(*gocv.Mat) []capture.MockStep {
		return []capture.MockStep{{Err: &capture.FetchError{Kind: capture.ErrInvalidImage, URL: "mock://cam"}}}
	})

	err := h.loop.Run(context.Background(), "mock://cam")
	if !errors.Is(err, capture.ErrInvalidImage) {
		t.Errorf("Run() error = %v, want ErrInvalidImage", err)
	}
	if got := h.events.messages(); len(got) != 2 || got[0] != MsgInvalidImage {
		t.Errorf("events = %v, want %q first", got, MsgInvalidImage)
	}
}

func TestFetchFailureMessage(t *testing.T) {
	network := &capture.FetchError{Kind: capture.ErrNetwork, URL: "http://cam", Err: errors.New("connection refused")}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "invalid image", err: &capture.FetchError{Kind: capture.ErrInvalidImage, URL: "http://cam"}, want: MsgInvalidImage},
		{name: "network", err: network, want: "Erro ao conectar ao stream: fetch http://cam: network error: connection refused"},
		{name: "wrapped network", err: fmt.Errorf("retry: %w", network), want: fmt.Sprintf(MsgStreamError, fmt.Errorf("retry: %w", network))},
		{name: "unknown", err: errors.New("boom"), want: MsgFetchFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fetchFailureMessage(tt.err); got != tt.want {
				t.Errorf("fetchFailureMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoop_Retry(t *testing.T) {
	failure := &capture.FetchError{Kind: capture.ErrNetwork, URL: "mock://cam"}
	steps := func(m *gocv.Mat) []capture.MockStep {
		return []capture.MockStep{{Err: failure}, {Err: failure}, {Frame: m}}
	}

	t.Run("recovers within retries", func(t *testing.T) {
		h := newHarness(t, LoopConfig{FetchRetries: 2, RetryBackoff: time.Millisecond}, steps)
		if err := h.runOnce(t); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if h.display.count() != 1 {
			t.Errorf("frames shown = %d, want 1", h.display.count())
		}
		if h.source.Calls() != 3 {
			t.Errorf("fetch calls = %d, want 3", h.source.Calls())
		}
	})

	t.Run("gives up after retries", func(t *testing.T) {
		h := newHarness(t, LoopConfig{FetchRetries: 1, RetryBackoff: time.Millisecond}, steps)
		err := h.loop.Run(context.Background(), "mock://cam")
		if !errors.Is(err, capture.ErrNetwork) {
			t.Fatalf("Run() error = %v, want ErrNetwork", err)
		}
		if h.source.Calls() != 2 {
			t.Errorf("fetch calls = %d, want 2", h.source.Calls())
		}
	})

	t.Run("stop during backoff", func(t *testing.T) {
		h := newHarness(t, LoopConfig{FetchRetries: 5, RetryBackoff: time.Hour}, steps)
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		if err := h.loop.Run(ctx, "mock://cam"); err != nil {
			t.Errorf("Run() error = %v, want nil on stop", err)
		}
	})
}

func TestLoop_StoppedBeforeFirstFetch(t *testing.T) {
	h := newHarness(t, LoopConfig{}, oneFrame)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.loop.Run(ctx, "mock://cam"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if h.source.Calls() != 0 {
		t.Errorf("fetch calls = %d, want 0", h.source.Calls())
	}
	if got := h.events.messages(); len(got) != 1 || got[0] != MsgStopped {
		t.Errorf("events = %v, want only %q", got, MsgStopped)
	}
}

func TestLoop_PollInterval(t *testing.T) {
	h := newHarness(t, LoopConfig{PollInterval: time.Hour}, func(m *gocv.Mat) []capture.MockStep {
		return []capture.MockStep{{Frame: m}, {Frame: m}}
	})
	ctx, cancel := context.WithCancel(context.Background())
	h.display.onShow = func() {
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
	}

	if err := h.loop.Run(ctx, "mock://cam"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if h.source.Calls() != 1 {
		t.Errorf("fetch calls = %d, want 1 while pacing", h.source.Calls())
	}
}
