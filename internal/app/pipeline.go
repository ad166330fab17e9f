package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/thumblight/internal/capture"
	"github.com/ayusman/thumblight/internal/detector"
	"github.com/ayusman/thumblight/internal/gesture"
	"github.com/ayusman/thumblight/internal/render"
)

// DefaultRetryBackoff is the first delay between fetch retries when
// LoopConfig.RetryBackoff is unset. It doubles on each retry.
const DefaultRetryBackoff = 500 * time.Millisecond

// ControlPayload is published to the control topic on a thumbs up.
const ControlPayload = "ON"

var errStopped = errors.New("loop stopped")

// LoopConfig tunes the acquisition loop.
type LoopConfig struct {
	ControlTopic string
	// FetchTimeout bounds one snapshot fetch. Zero means capture.DefaultTimeout.
	FetchTimeout time.Duration
	// FetchRetries is how many times a failed fetch is retried before the
	// loop gives up. Zero stops on the first failure.
	FetchRetries int
	// RetryBackoff is the first retry delay; it doubles after each attempt.
	RetryBackoff time.Duration
	// PollInterval is an optional pause between iterations.
	PollInterval time.Duration
}

// Stats counts loop activity.
type Stats struct {
	Frames    int64 `json:"frames"`
	Hands     int64 `json:"hands"`
	ThumbsUp  int64 `json:"thumbs_up"`
	Published int64 `json:"published"`
}

// Deps are the loop collaborators.
type Deps struct {
	Sources   capture.SourceFactory
	Detector  detector.Detector
	Publisher Publisher
	Display   Display
	Notifier  Notifier
	Log       logrus.FieldLogger
}

// Loop fetches frames from one camera, detects thumbs up gestures, publishes
// the control command and renders the annotated frame.
type Loop struct {
	cfg  LoopConfig
	deps Deps
	log  logrus.FieldLogger

	frames    atomic.Int64
	hands     atomic.Int64
	thumbsUp  atomic.Int64
	published atomic.Int64
}

// NewLoop creates a loop. Sources, Detector, Publisher and Display are
// required; a nil Notifier discards events.
func NewLoop(cfg LoopConfig, deps Deps) *Loop {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = capture.DefaultTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if deps.Notifier == nil {
		deps.Notifier = NotifierFunc(func(Event) {})
	}
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loop{cfg: cfg, deps: deps, log: log}
}

// Run polls url until ctx is cancelled or a fetch fails. Cancellation is
// observed between iterations; an in-flight fetch runs to completion or its
// own timeout. A clean stop returns nil; a fetch failure returns the
// *capture.FetchError.
func (l *Loop) Run(ctx context.Context, url string) error {
	src := l.deps.Sources(url)
	log := l.log.WithField("url", url)
	defer l.notify(LevelInfo, MsgStopped)

	log.Info("monitoring started")

	for {
		select {
		case <-ctx.Done():
			log.Info("monitoring stopped")
			return nil
		default:
		}

		frame, err := l.fetch(ctx, src, log)
		if errors.Is(err, errStopped) {
			log.Info("monitoring stopped")
			return nil
		}
		if err != nil {
			log.WithError(err).Error("failed to capture frame")
			l.notify(LevelError, fetchFailureMessage(err))
			return err
		}

		l.process(log, frame)
		frame.Close()

		if l.cfg.PollInterval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(l.cfg.PollInterval):
			}
		}
	}
}

func (l *Loop) fetch(ctx context.Context, src capture.Source, log logrus.FieldLogger) (*capture.Frame, error) {
	backoff := l.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.FetchTimeout)
		frame, err := src.Fetch(fctx)
		cancel()
		if err == nil {
			return frame, nil
		}
		if attempt >= l.cfg.FetchRetries {
			return nil, err
		}

		log.WithError(err).WithField("attempt", attempt+1).Warnf("fetch failed, retrying in %v", backoff)
		select {
		case <-ctx.Done():
			return nil, errStopped
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// process runs detection on frame, publishes for every thumbs up hand and
// shows the annotated result.
func (l *Loop) process(log logrus.FieldLogger, frame *capture.Frame) {
	l.frames.Add(1)

	hands, err := l.deps.Detector.Detect(&frame.Mat)
	if err != nil {
		log.WithError(fmt.Errorf("%w: %v", gesture.ErrDetection, err)).Warn("hand detection failed")
		hands = nil
	}
	l.hands.Add(int64(len(hands)))

	for i := range hands {
		hand := &hands[i]
		render.DrawHand(&frame.Mat, hand)

		v := gesture.Check(log, hand)
		if !v.Detected {
			continue
		}

		l.thumbsUp.Add(1)
		log.Info("thumbs up detected")
		l.notify(LevelSuccess, MsgThumbsUp)

		topic := l.cfg.ControlTopic
		if err := l.deps.Publisher.Publish(topic, []byte(ControlPayload)); err != nil {
			log.WithError(err).WithField("topic", topic).Error("failed to publish control command")
		} else {
			l.published.Add(1)
		}

		render.MarkThumbTip(&frame.Mat, v.ThumbTip)
	}

	if err := l.deps.Display.Show(&frame.Mat); err != nil {
		log.WithError(err).Warn("failed to display frame")
	}
}

// fetchFailureMessage picks the operator message for a fetch error kind.
func fetchFailureMessage(err error) string {
	switch {
	case errors.Is(err, capture.ErrInvalidImage):
		return MsgInvalidImage
	case errors.Is(err, capture.ErrNetwork):
		return fmt.Sprintf(MsgStreamError, err)
	default:
		return MsgFetchFailed
	}
}

func (l *Loop) notify(level Level, msg string) {
	l.deps.Notifier.Notify(Event{Level: level, Message: msg, Time: time.Now()})
}

// Stats returns counters accumulated over all runs.
func (l *Loop) Stats() Stats {
	return Stats{
		Frames:    l.frames.Load(),
		Hands:     l.hands.Load(),
		ThumbsUp:  l.thumbsUp.Load(),
		Published: l.published.Load(),
	}
}
