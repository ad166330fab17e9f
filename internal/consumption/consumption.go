// Package consumption handles energy consumption messages from the broker.
package consumption

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultField is the payload key carrying the consumption total.
const DefaultField = "consumo"

// Handle errors. Every rejected message is logged and counted.
var (
	// ErrPayloadParse means the payload is not a JSON object.
	ErrPayloadParse = errors.New("payload is not a JSON object")
	// ErrMissingField means the object lacks the consumption field.
	ErrMissingField = errors.New("payload has no consumption data")
	// ErrNotNumeric means the field is present but not a JSON number.
	ErrNotNumeric = errors.New("consumption value is not numeric")
)

// Reading is one parsed consumption message.
type Reading struct {
	Topic      string
	Value      float64
	Payload    map[string]interface{}
	ReceivedAt time.Time
}

// Stats counts handled messages.
type Stats struct {
	Received int
	Accepted int
	Rejected int
}

// Handler parses consumption payloads and logs the totals.
type Handler struct {
	field string
	log   logrus.FieldLogger

	mu    sync.Mutex
	stats Stats
}

// NewHandler creates a handler reading field from each payload. An empty
// field means DefaultField.
func NewHandler(field string, log logrus.FieldLogger) *Handler {
	if field == "" {
		field = DefaultField
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{field: field, log: log}
}

// Field returns the payload key the handler reads.
func (h *Handler) Field() string {
	return h.field
}

// Parse decodes payload without logging.
func (h *Handler) Parse(payload []byte) (Reading, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(payload, &data); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrPayloadParse, err)
	}
	if data == nil {
		return Reading{}, fmt.Errorf("%w: null", ErrPayloadParse)
	}

	raw, ok := data[h.field]
	if !ok {
		return Reading{Payload: data}, fmt.Errorf("%w: field %q", ErrMissingField, h.field)
	}
	value, ok := raw.(float64)
	if !ok {
		return Reading{Payload: data}, fmt.Errorf("%w: field %q holds %T", ErrNotNumeric, h.field, raw)
	}

	return Reading{Value: value, Payload: data, ReceivedAt: time.Now()}, nil
}

// Handle parses payload and logs the outcome. Malformed payloads are logged
// and reported through the error; they never panic.
func (h *Handler) Handle(topic string, payload []byte) (Reading, error) {
	log := h.log.WithField("topic", topic)

	r, err := h.Parse(payload)
	r.Topic = topic

	h.mu.Lock()
	h.stats.Received++
	if err != nil {
		h.stats.Rejected++
	} else {
		h.stats.Accepted++
	}
	h.mu.Unlock()

	switch {
	case errors.Is(err, ErrPayloadParse):
		log.WithError(err).Error("failed to decode message")
		return r, err
	case errors.Is(err, ErrMissingField):
		log.Warn("message without consumption data")
		return r, err
	case err != nil:
		log.WithError(err).Warn("message with invalid consumption data")
		return r, err
	}

	log.WithField("payload", r.Payload).Debug("message received")
	log.WithField(h.field, r.Value).Infof("Consumo total: %s kWh", strconv.FormatFloat(r.Value, 'f', -1, 64))
	return r, nil
}

// MessageHandler adapts Handle to the MQTT client callback.
func (h *Handler) MessageHandler() mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		h.Handle(msg.Topic(), msg.Payload())
	}
}

// Stats returns message counters.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}
