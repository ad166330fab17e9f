// Package app runs the gesture acquisition loop and tracks its status.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Event messages shown to the operator.
const (
	// MsgThumbsUp accompanies every control publish.
	MsgThumbsUp = "Gesto de 'Jóia' detectado! Enviando comando MQTT..."
	// MsgInvalidImage reports a camera response that is not an image.
	MsgInvalidImage = "O conteúdo retornado pelo URL não é uma imagem válida."
	// MsgStreamError is a format taking the fetch error.
	MsgStreamError = "Erro ao conectar ao stream: %v"
	// MsgFetchFailed is used for fetch errors of no known kind.
	MsgFetchFailed = "Erro ao capturar frames. Verifique o stream."
	// MsgStopped is always the last event of a run.
	MsgStopped = "Monitoramento encerrado."
)

// MaxEvents is how many recent events Status keeps.
const MaxEvents = 50

var (
	// ErrAlreadyRunning is returned by Start while a loop is active.
	ErrAlreadyRunning = errors.New("monitoring already running")
	// ErrEmptyURL is returned when no camera URL is given.
	ErrEmptyURL = errors.New("camera url is empty")
)

// Publisher sends a payload to a broker topic without waiting for delivery.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Display shows one annotated frame. Show returns once the frame is visible.
type Display interface {
	Show(img *gocv.Mat) error
}

// Level classifies an Event.
type Level string

// Event levels.
const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Event is a user-visible notification from the loop.
type Event struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifier receives loop events.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify calls f(e).
func (f NotifierFunc) Notify(e Event) { f(e) }

// Status is a snapshot of the App.
type Status struct {
	Running   bool      `json:"running"`
	URL       string    `json:"url,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Events    []Event   `json:"events"`
	Stats     Stats     `json:"stats"`
}

// App owns at most one running Loop.
type App struct {
	loop     *Loop
	notifier Notifier

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	url       string
	startedAt time.Time
	lastErr   error
	events    []Event
}

// New creates an App. Events from the loop are recorded for Status and
// forwarded to deps.Notifier.
func New(cfg LoopConfig, deps Deps) *App {
	a := &App{notifier: deps.Notifier}
	deps.Notifier = NotifierFunc(a.record)
	a.loop = NewLoop(cfg, deps)
	return a
}

func (a *App) record(e Event) {
	a.mu.Lock()
	a.events = append(a.events, e)
	if len(a.events) > MaxEvents {
		a.events = append([]Event(nil), a.events[len(a.events)-MaxEvents:]...)
	}
	a.mu.Unlock()

	if a.notifier != nil {
		a.notifier.Notify(e)
	}
}

// Start launches the loop for url in the background.
func (a *App) Start(url string) error {
	_, err := a.start(context.Background(), url)
	return err
}

// Run runs the loop for url until ctx is cancelled or a fetch fails.
func (a *App) Run(ctx context.Context, url string) error {
	done, err := a.start(ctx, url)
	if err != nil {
		return err
	}
	<-done

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastErr
}

func (a *App) start(parent context.Context, url string) (<-chan struct{}, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.done != nil {
		return nil, ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	a.cancel = cancel
	a.done = done
	a.url = url
	a.startedAt = time.Now()
	a.lastErr = nil

	go func() {
		err := a.loop.Run(ctx, url)
		cancel()

		a.mu.Lock()
		a.lastErr = err
		a.cancel = nil
		a.done = nil
		a.mu.Unlock()
		close(done)
	}()

	return done, nil
}

// Stop signals the loop and waits for it to finish its current iteration.
// It is a no-op when nothing is running.
func (a *App) Stop() {
	a.mu.RLock()
	cancel, done := a.cancel, a.done
	a.mu.RUnlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a loop is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done != nil
}

// Status returns the current state, recent events and counters.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := Status{
		Running: a.done != nil,
		URL:     a.url,
		Events:  append([]Event(nil), a.events...),
		Stats:   a.loop.Stats(),
	}
	if s.Running {
		s.StartedAt = a.startedAt
	}
	if a.lastErr != nil {
		s.LastError = a.lastErr.Error()
	}
	return s
}
