package app

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/thumblight/internal/capture"
)

type message struct {
	topic   string
	payload string
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []message
	err  error
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, message{topic: topic, payload: string(payload)})
	return nil
}

func (p *fakePublisher) messages() []message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]message(nil), p.msgs...)
}

// fakeDisplay keeps a copy of the last shown frame and runs onShow after
// each Show.
type fakeDisplay struct {
	mu      sync.Mutex
	shown   int
	last    gocv.Mat
	hasLast bool
	onShow  func()
}

func (d *fakeDisplay) Show(img *gocv.Mat) error {
	d.mu.Lock()
	d.shown++
	if d.hasLast {
		d.last.Close()
	}
	d.last = img.Clone()
	d.hasLast = true
	fn := d.onShow
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

func (d *fakeDisplay) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shown
}

func (d *fakeDisplay) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasLast {
		d.last.Close()
		d.hasLast = false
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Notify(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.Message
	}
	return out
}

func sourceOf(src capture.Source) capture.SourceFactory {
	return func(string) capture.Source { return src }
}
