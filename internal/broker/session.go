// Package broker manages MQTT sessions with availability reporting.
package broker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/thumblight/internal/config"
)

// Availability payloads, always published retained.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Session timing.
const (
	// DefaultKeepAlive is the MQTT keep-alive when Options leaves it unset.
	DefaultKeepAlive = 60 * time.Second
	// ConnectRetryInterval is the first delay between failed connect
	// attempts. It doubles up to MaxReconnectInterval.
	ConnectRetryInterval = 2 * time.Second
	// MaxReconnectInterval caps the delay between connect attempts.
	MaxReconnectInterval = 30 * time.Second
	// PublishTimeout bounds how long a publish outcome is awaited before it
	// is logged as unconfirmed.
	PublishTimeout = 10 * time.Second
	// CloseWait bounds how long Close waits for the offline publish.
	CloseWait = time.Second
	// DisconnectQuiesce is the grace period in milliseconds for in-flight work.
	DisconnectQuiesce = 250
)

var (
	// ErrConnect wraps connection failures reported by the client.
	ErrConnect = errors.New("broker connect failed")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("broker session closed")
	// ErrNotStarted is returned when publishing before Start.
	ErrNotStarted = errors.New("broker session not started")
	// ErrNotConnected is returned when publishing while the session is
	// connecting or reconnecting. The message is dropped.
	ErrNotConnected = errors.New("broker not connected")
)

// State is the connection state of a Session.
type State int

// Session states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventType identifies a session lifecycle event.
type EventType int

// Lifecycle events sent on Session.Events.
const (
	EventConnected EventType = iota
	EventConnectionLost
	EventClosed
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventConnectionLost:
		return "connection_lost"
	case EventClosed:
		return "closed"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event reports a lifecycle change. Err is set for EventConnectionLost.
type Event struct {
	Type EventType
	Err  error
	Time time.Time
}

// Options configure a Session.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	// ClientID defaults to thumblight-<uuid>.
	ClientID  string
	KeepAlive time.Duration
	// AvailabilityTopic receives retained online/offline messages. Empty
	// disables availability reporting and the last will.
	AvailabilityTopic string
}

// OptionsFromConfig maps broker settings onto session options.
func OptionsFromConfig(cfg config.BrokerConfig, availabilityTopic string) Options {
	return Options{
		Host:              cfg.Host,
		Port:              cfg.Port,
		Username:          cfg.Username,
		Password:          cfg.Password,
		ClientID:          cfg.ClientID,
		KeepAlive:         cfg.KeepAlive,
		AvailabilityTopic: availabilityTopic,
	}
}

// ClientFactory builds the underlying MQTT client.
type ClientFactory func(*mqtt.ClientOptions) mqtt.Client

// Option customizes a Session.
type Option func(*Session)

// WithClientFactory replaces mqtt.NewClient, mainly for tests.
func WithClientFactory(f ClientFactory) Option {
	return func(s *Session) {
		if f != nil {
			s.newClient = f
		}
	}
}

// WithRetryInterval sets the first delay between failed connect attempts.
// Values <= 0 are ignored.
func WithRetryInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.retryInterval = d
		}
	}
}

// WithPublishTimeout sets how long a publish outcome is awaited. Values <= 0
// are ignored.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

type subscription struct {
	topic   string
	qos     byte
	handler mqtt.MessageHandler
}

// Session owns one MQTT client. Until the first connection succeeds the
// session retries on its own timer and logs every failure; afterwards the
// client's goroutines keep the socket alive and reconnect, and Session
// callbacks only log and publish availability.
type Session struct {
	opts           Options
	log            logrus.FieldLogger
	newClient      ClientFactory
	retryInterval  time.Duration
	publishTimeout time.Duration

	mu     sync.Mutex
	client mqtt.Client
	state  State
	subs   []subscription

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Session. It does not connect until Start.
func New(opts Options, log logrus.FieldLogger, options ...Option) *Session {
	if opts.Port == 0 {
		opts.Port = config.DefaultPort
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = DefaultKeepAlive
	}
	if opts.ClientID == "" {
		opts.ClientID = "thumblight-" + uuid.NewString()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Session{
		opts:           opts,
		log:            log,
		newClient:      mqtt.NewClient,
		retryInterval:  ConnectRetryInterval,
		publishTimeout: PublishTimeout,
		events:         make(chan Event, 16),
		done:           make(chan struct{}),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// ClientID returns the MQTT client identifier in use.
func (s *Session) ClientID() string {
	return s.opts.ClientID
}

// BrokerURL returns the tcp URL the session connects to.
func (s *Session) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", s.opts.Host, s.opts.Port)
}

func (s *Session) clientOptions() *mqtt.ClientOptions {
	o := mqtt.NewClientOptions()
	o.AddBroker(s.BrokerURL())
	o.SetClientID(s.opts.ClientID)
	o.SetUsername(s.opts.Username)
	o.SetPassword(s.opts.Password)
	o.SetKeepAlive(s.opts.KeepAlive)
	o.SetAutoReconnect(true)
	o.SetConnectRetry(false)
	o.SetMaxReconnectInterval(MaxReconnectInterval)
	if s.opts.AvailabilityTopic != "" {
		o.SetWill(s.opts.AvailabilityTopic, PayloadOffline, 1, true)
	}
	o.SetOnConnectHandler(s.onConnect)
	o.SetConnectionLostHandler(s.onConnectionLost)
	return o
}

// Start begins connecting in the background and returns immediately.
// Failed attempts are logged as ErrConnect and retried with backoff until
// one succeeds or the session is closed. Calling Start more than once has no
// effect.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.client != nil {
		s.mu.Unlock()
		return nil
	}
	s.client = s.newClient(s.clientOptions())
	s.state = StateConnecting
	client := s.client
	s.mu.Unlock()

	s.log.WithField("url", s.BrokerURL()).WithField("client_id", s.opts.ClientID).Info("connecting to broker")

	go s.connect(client)
	return nil
}

func (s *Session) connect(client mqtt.Client) {
	wait := s.retryInterval
	for attempt := 1; ; attempt++ {
		token := client.Connect()
		select {
		case <-token.Done():
		case <-s.done:
			return
		}
		err := token.Error()
		if err == nil {
			return
		}

		log := s.log.WithError(fmt.Errorf("%w: %v", ErrConnect, err)).
			WithField("attempt", attempt).
			WithField("retry_in", wait)
		if ct, ok := token.(*mqtt.ConnectToken); ok {
			log = log.WithField("return_code", ct.ReturnCode())
		}
		log.Error("broker connection failed")

		select {
		case <-time.After(wait):
		case <-s.done:
			return
		}
		wait *= 2
		if wait > MaxReconnectInterval {
			wait = MaxReconnectInterval
		}
	}
}

func (s *Session) onConnect(c mqtt.Client) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateConnected
	subs := append([]subscription(nil), s.subs...)
	s.mu.Unlock()

	s.log.WithField("url", s.BrokerURL()).Info("connected to broker")

	if s.opts.AvailabilityTopic != "" {
		s.track(c.Publish(s.opts.AvailabilityTopic, 1, true, PayloadOnline), s.opts.AvailabilityTopic)
	}
	for _, sub := range subs {
		s.subscribe(c, sub)
	}
	s.emit(Event{Type: EventConnected, Time: time.Now()})
}

func (s *Session) onConnectionLost(c mqtt.Client, err error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateConnecting
	s.mu.Unlock()

	s.log.WithError(err).Warn("broker connection lost, reconnecting")

	if s.opts.AvailabilityTopic != "" {
		s.track(c.Publish(s.opts.AvailabilityTopic, 1, true, PayloadOffline), s.opts.AvailabilityTopic)
	}
	s.emit(Event{Type: EventConnectionLost, Err: err, Time: time.Now()})
}

// Publish sends payload to topic with QoS 0, not retained. It does not wait
// for delivery; the outcome is logged when the client reports it. While the
// session is not connected the message is dropped and ErrNotConnected
// returned.
func (s *Session) Publish(topic string, payload []byte) error {
	s.mu.Lock()
	client, state := s.client, s.state
	s.mu.Unlock()

	switch {
	case state == StateClosed:
		return ErrClosed
	case client == nil:
		return ErrNotStarted
	case state != StateConnected:
		return ErrNotConnected
	}
	s.track(client.Publish(topic, 0, false, payload), topic)
	return nil
}

// track logs the result of token once it completes, or a warning when it
// does not complete within the publish timeout.
func (s *Session) track(token mqtt.Token, topic string) {
	log := s.log.WithField("topic", topic)
	go func() {
		timer := time.NewTimer(s.publishTimeout)
		defer timer.Stop()

		select {
		case <-token.Done():
		case <-timer.C:
			log.Warn("publish not confirmed")
			return
		case <-s.done:
			if !token.WaitTimeout(CloseWait) {
				return
			}
		}
		if err := token.Error(); err != nil {
			log.WithError(err).Error("publish failed")
			return
		}
		if pt, ok := token.(*mqtt.PublishToken); ok {
			log = log.WithField("message_id", pt.MessageID())
		}
		log.Debug("message published")
	}()
}

// Subscribe registers handler for topic. The subscription is issued now if
// connected and re-issued after every reconnect.
func (s *Session) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	sub := subscription{topic: topic, qos: qos, handler: handler}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.subs = append(s.subs, sub)
	client, connected := s.client, s.state == StateConnected
	s.mu.Unlock()

	if connected {
		s.subscribe(client, sub)
	}
	return nil
}

func (s *Session) subscribe(c mqtt.Client, sub subscription) {
	token := c.Subscribe(sub.topic, sub.qos, sub.handler)
	log := s.log.WithField("topic", sub.topic)
	go func() {
		select {
		case <-token.Done():
		case <-s.done:
			return
		}
		if err := token.Error(); err != nil {
			log.WithError(err).Error("subscribe failed")
			return
		}
		log.Info("subscribed")
	}()
}

// Close publishes a retained offline message, waits briefly for it and
// disconnects. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		client := s.client
		s.state = StateClosed
		s.mu.Unlock()

		if client != nil {
			if s.opts.AvailabilityTopic != "" {
				token := client.Publish(s.opts.AvailabilityTopic, 1, true, PayloadOffline)
				if !token.WaitTimeout(CloseWait) {
					s.log.Warn("timed out publishing offline status")
				} else if err := token.Error(); err != nil {
					s.log.WithError(err).Warn("failed to publish offline status")
				}
			}
			client.Disconnect(DisconnectQuiesce)
			s.log.Info("disconnected from broker")
		}

		s.emit(Event{Type: EventClosed, Time: time.Now()})
		close(s.done)
	})
	return nil
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether the session currently holds a live connection.
func (s *Session) Connected() bool {
	return s.State() == StateConnected
}

// Events returns lifecycle events. Events are dropped when the buffer is full.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
	}
}
