// Package mqtt implements ports.BrokerClient on top of Eclipse Paho.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/reglet-dev/edge-agent/domain/errors"
	"github.com/reglet-dev/edge-agent/domain/ports"
)

// Defaults applied to zero Config fields.
const (
	DefaultKeepAlive     = 30 * time.Second
	DefaultRetryInterval = 5 * time.Second
	DefaultTimeout       = 10 * time.Second
)

// Config describes the broker connection.
type Config struct {
	URL           string
	ClientID      string
	Username      string
	Password      string
	KeepAlive     time.Duration
	RetryInterval time.Duration
	Timeout       time.Duration
}

func (c *Config) applyDefaults() {
	if c.KeepAlive <= 0 {
		c.KeepAlive = DefaultKeepAlive
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Client is a Paho-backed broker connection. Paho reconnects on its own once
// the first connection succeeds; until then Client retries every
// RetryInterval.
//
// Paho callbacks only append to a backlog that a pump goroutine forwards to
// Events in order, so a slow listener never stalls Paho's router.
type Client struct {
	client  paho.Client
	logger  *slog.Logger
	events  chan ports.BrokerEvent
	wake    chan struct{}
	done    chan struct{}
	pending []ports.BrokerEvent
	cfg     Config
	mu      sync.Mutex
	once    sync.Once
}

var _ ports.BrokerClient = (*Client)(nil)

// New creates a client. Nothing is dialled until Connect.
func New(cfg Config, logger *slog.Logger) *Client {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:    cfg,
		logger: logger.With("component", "mqtt"),
		events: make(chan ports.BrokerEvent, 64),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go c.pump()

	opts := paho.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetKeepAlive(cfg.KeepAlive).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(cfg.RetryInterval).
		SetOrderMatters(true).
		SetOnConnectHandler(func(paho.Client) { c.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { c.onConnectionLost(err) }).
		SetDefaultPublishHandler(func(_ paho.Client, msg paho.Message) { c.onMessage(msg) })
	c.client = paho.NewClient(opts)
	return c
}

// Connect makes the first connection attempt. If it fails, attempts continue
// in the background until one succeeds, ctx is done or Disconnect is called.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.attempt(); err == nil {
		return nil
	}
	go c.retry(ctx)
	return nil
}

func (c *Client) attempt() error {
	tok := c.client.Connect()
	var err error
	if !tok.WaitTimeout(c.cfg.Timeout) {
		err = fmt.Errorf("timed out after %s", c.cfg.Timeout)
	} else {
		err = tok.Error()
	}
	if err != nil {
		c.logger.Warn("connect failed", "broker", c.cfg.URL, "error", err)
		c.emit(ports.BrokerEvent{Kind: ports.BrokerConnectionLost, Err: &errors.BrokerError{Operation: "connect", Err: err}})
	}
	return err
}

func (c *Client) retry(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.RetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			if c.attempt() == nil {
				return
			}
		}
	}
}

// Events returns the connection event channel.
func (c *Client) Events() <-chan ports.BrokerEvent {
	return c.events
}

// Subscribe registers a filter; matching messages arrive as BrokerMessage
// events.
func (c *Client) Subscribe(_ context.Context, filter string, qos entities.QoS) error {
	tok := c.client.Subscribe(filter, byte(qos), nil)
	if err := c.wait(tok); err != nil {
		return &errors.BrokerError{Operation: "subscribe", Topic: filter, Err: err}
	}
	return nil
}

// Publish sends payload to topic without the retain flag.
func (c *Client) Publish(_ context.Context, topic string, qos entities.QoS, payload []byte) error {
	tok := c.client.Publish(topic, byte(qos), false, payload)
	if err := c.wait(tok); err != nil {
		return &errors.BrokerError{Operation: "publish", Topic: topic, Err: err}
	}
	return nil
}

func (c *Client) wait(tok paho.Token) error {
	if !tok.WaitTimeout(c.cfg.Timeout) {
		return fmt.Errorf("timed out after %s", c.cfg.Timeout)
	}
	return tok.Error()
}

// Disconnect closes the connection. The event channel is closed shortly
// after; undelivered events are dropped.
func (c *Client) Disconnect() {
	c.once.Do(func() {
		close(c.done)
		if c.client.IsConnected() {
			c.client.Disconnect(250)
		}
	})
}

func (c *Client) onConnect() {
	c.logger.Info("connected", "broker", c.cfg.URL)
	c.emit(ports.BrokerEvent{Kind: ports.BrokerConnected})
}

func (c *Client) onConnectionLost(err error) {
	c.emit(ports.BrokerEvent{Kind: ports.BrokerConnectionLost, Err: err})
}

func (c *Client) onMessage(msg paho.Message) {
	c.emit(ports.BrokerEvent{Kind: ports.BrokerMessage, Topic: msg.Topic(), Payload: msg.Payload()})
}

// emit queues ev for the pump and never blocks.
func (c *Client) emit(ev ports.BrokerEvent) {
	select {
	case <-c.done:
		return
	default:
	}
	c.mu.Lock()
	c.pending = append(c.pending, ev)
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// pump forwards queued events in arrival order until Disconnect, then
// closes the event channel.
func (c *Client) pump() {
	defer close(c.events)
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}
		c.mu.Lock()
		batch := c.pending
		c.pending = nil
		c.mu.Unlock()
		for _, ev := range batch {
			select {
			case c.events <- ev:
			case <-c.done:
				return
			}
		}
	}
}
