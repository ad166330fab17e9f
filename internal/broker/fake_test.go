package broker

import (
	"errors"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool { <-t.done; return true }

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type pubRecord struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

// fakeClient records calls. Unimplemented methods of mqtt.Client panic.
type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	opts         *mqtt.ClientOptions
	connectToken mqtt.Token
	connectErrs  []error
	connects     int
	publishToken func() mqtt.Token
	publishErr   error
	pubs         []pubRecord
	subs         []string
	disconnects  int
}

// Connect fails with each of connectErrs in turn, then returns connectToken
// or a token that never completes.
func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if len(c.connectErrs) > 0 {
		err := c.connectErrs[0]
		c.connectErrs = c.connectErrs[1:]
		return newToken(err)
	}
	if c.connectToken != nil {
		return c.connectToken
	}
	return pendingToken()
}

func (c *fakeClient) connectCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	var p string
	switch v := payload.(type) {
	case string:
		p = v
	case []byte:
		p = string(v)
	}
	c.pubs = append(c.pubs, pubRecord{topic: topic, qos: qos, retained: retained, payload: p})
	if c.publishToken != nil {
		return c.publishToken()
	}
	return newToken(c.publishErr)
}

func (c *fakeClient) Subscribe(topic string, qos byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, topic)
	return newToken(nil)
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
}

func (c *fakeClient) published() []pubRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]pubRecord(nil), c.pubs...)
}

func (c *fakeClient) subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subs...)
}

func (c *fakeClient) count(topic, payload string, retained bool) int {
	n := 0
	for _, p := range c.published() {
		if p.topic == topic && p.payload == payload && p.retained == retained {
			n++
		}
	}
	return n
}

func (c *fakeClient) factory() ClientFactory {
	return func(o *mqtt.ClientOptions) mqtt.Client {
		c.opts = o
		return c
	}
}

var errLost = errors.New("connection reset")
