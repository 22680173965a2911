// Package mqtttest is an in-memory mqtt.Client for tests. Publishes are
// recorded and Deliver feeds a message to matching subscriptions.
package mqtttest

import (
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Published struct {
	Topic    string
	Qos      byte
	Retained bool
	Payload  []byte
}

type Client struct {
	mu        sync.Mutex
	subs      map[string]mqtt.MessageHandler
	published []Published
	notify    chan struct{}
}

var _ mqtt.Client = (*Client)(nil)

func NewClient() *Client {
	return &Client{
		subs:   make(map[string]mqtt.MessageHandler),
		notify: make(chan struct{}, 1),
	}
}

func (c *Client) IsConnected() bool       { return true }
func (c *Client) IsConnectionOpen() bool  { return true }
func (c *Client) Connect() mqtt.Token     { return done{} }
func (c *Client) Disconnect(quiesce uint) {}

func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	}
	c.mu.Lock()
	c.published = append(c.published, Published{topic, qos, retained, b})
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return done{}
}

func (c *Client) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	c.subs[topic] = callback
	c.mu.Unlock()
	return done{}
}

func (c *Client) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	for topic, qos := range filters {
		c.Subscribe(topic, qos, callback)
	}
	return done{}
}

func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	for _, topic := range topics {
		delete(c.subs, topic)
	}
	c.mu.Unlock()
	return done{}
}

func (c *Client) AddRoute(topic string, callback mqtt.MessageHandler) {
	c.Subscribe(topic, 0, callback)
}

func (c *Client) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// Deliver calls every handler whose filter matches topic.
func (c *Client) Deliver(topic string, payload []byte) {
	c.mu.Lock()
	var handlers []mqtt.MessageHandler
	for filter, h := range c.subs {
		if match(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(c, message{topic: topic, payload: payload})
	}
}

// Subscribed reports whether some subscription filter equals topic.
func (c *Client) Subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[topic]
	return ok
}

func (c *Client) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Published, len(c.published))
	copy(out, c.published)
	return out
}

// WaitPublished blocks until at least n messages went out or timeout passes.
func (c *Client) WaitPublished(n int, timeout time.Duration) []Published {
	deadline := time.After(timeout)
	for {
		if p := c.Published(); len(p) >= n {
			return p
		}
		select {
		case <-c.notify:
		case <-deadline:
			return c.Published()
		}
	}
}

func match(filter, topic string) bool {
	if filter == topic {
		return true
	}
	if strings.HasSuffix(filter, "#") {
		return strings.HasPrefix(topic, strings.TrimSuffix(filter, "#"))
	}
	return false
}

type done struct{}

func (done) Wait() bool                     { return true }
func (done) WaitTimeout(time.Duration) bool { return true }
func (done) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (done) Error() error { return nil }

type message struct {
	topic   string
	payload []byte
}

func (m message) Duplicate() bool   { return false }
func (m message) Qos() byte         { return 0 }
func (m message) Retained() bool    { return false }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return 0 }
func (m message) Payload() []byte   { return m.payload }
func (m message) Ack()              {}
