// Package memorybroker is a process-local broker used for development and
// tests. Topic filters follow MQTT matching rules.
package memorybroker

import (
	"context"
	"fmt"
	"sync"

	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/reglet-dev/edge-agent/domain/errors"
	"github.com/reglet-dev/edge-agent/domain/ports"
)

const eventBuffer = 256

// Message is a publish observed on the broker.
type Message struct {
	Topic   string
	Payload []byte
	QoS     entities.QoS
}

type tap struct {
	filter string
	ch     chan Message
}

// Broker routes publishes between its clients and taps.
type Broker struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	taps    map[int]tap
	nextID  int
}

// New returns an empty broker.
func New() *Broker {
	return &Broker{
		clients: make(map[*Client]struct{}),
		taps:    make(map[int]tap),
	}
}

// Client returns a new, not yet connected client.
func (b *Broker) Client(id string) *Client {
	c := &Client{
		broker:  b,
		id:      id,
		filters: make(map[string]entities.QoS),
		events:  make(chan ports.BrokerEvent, eventBuffer),
	}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	return c
}

// Publish delivers a message from outside any client, as a cloud service
// would.
func (b *Broker) Publish(topic string, qos entities.QoS, payload []byte) {
	b.route(Message{Topic: topic, QoS: qos, Payload: append([]byte(nil), payload...)})
}

// Tap returns every publish matching filter until cancel is called.
func (b *Broker) Tap(filter string) (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Message, eventBuffer)
	b.taps[id] = tap{filter: filter, ch: ch}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if t, ok := b.taps[id]; ok {
			delete(b.taps, id)
			close(t.ch)
		}
	}
	return ch, cancel
}

func (b *Broker) route(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		c.deliver(msg)
	}
	for _, t := range b.taps {
		if entities.TopicMatches(t.filter, msg.Topic) {
			select {
			case t.ch <- msg:
			default:
				// Non-blocking send to avoid one slow tap stalling all publishers.
			}
		}
	}
}

func (b *Broker) remove(c *Client) {
	b.mu.Lock()
	delete(b.clients, c)
	b.mu.Unlock()
}

// Client is an in-process ports.BrokerClient.
type Client struct {
	broker    *Broker
	events    chan ports.BrokerEvent
	filters   map[string]entities.QoS
	id        string
	mu        sync.Mutex
	connected bool
	closed    bool
}

var _ ports.BrokerClient = (*Client)(nil)

// ID returns the client id.
func (c *Client) ID() string {
	return c.id
}

// Connect marks the client connected and reports it.
func (c *Client) Connect(_ context.Context) error {
	c.setConnected(true, nil)
	return nil
}

// Drop simulates a lost connection.
func (c *Client) Drop(cause error) {
	if cause == nil {
		cause = fmt.Errorf("connection dropped")
	}
	c.setConnected(false, cause)
}

func (c *Client) setConnected(connected bool, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.connected = connected
	ev := ports.BrokerEvent{Kind: ports.BrokerConnected}
	if !connected {
		ev = ports.BrokerEvent{Kind: ports.BrokerConnectionLost, Err: cause}
		// subscriptions do not survive a lost session
		c.filters = make(map[string]entities.QoS)
	}
	c.emit(ev)
}

// Events returns the client's event channel.
func (c *Client) Events() <-chan ports.BrokerEvent {
	return c.events
}

// Subscribe registers a topic filter.
func (c *Client) Subscribe(_ context.Context, filter string, qos entities.QoS) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return &errors.BrokerError{Operation: "subscribe", Topic: filter, Err: fmt.Errorf("not connected")}
	}
	c.filters[filter] = qos
	return nil
}

// Publish routes a message to every matching subscriber.
func (c *Client) Publish(_ context.Context, topic string, qos entities.QoS, payload []byte) error {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return &errors.BrokerError{Operation: "publish", Topic: topic, Err: fmt.Errorf("not connected")}
	}
	c.broker.Publish(topic, qos, payload)
	return nil
}

// Disconnect closes the event channel and leaves the broker.
func (c *Client) Disconnect() {
	c.broker.remove(c)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.connected = false
	close(c.events)
}

func (c *Client) deliver(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return
	}
	for filter := range c.filters {
		if entities.TopicMatches(filter, msg.Topic) {
			c.emit(ports.BrokerEvent{Kind: ports.BrokerMessage, Topic: msg.Topic, Payload: msg.Payload})
			return
		}
	}
}

// emit must be called with c.mu held.
func (c *Client) emit(ev ports.BrokerEvent) {
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
	}
}
