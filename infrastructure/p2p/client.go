// Package p2p implements ports.BrokerClient over libp2p gossipsub, for
// deployments without a central broker.
//
// All broker topics travel inside envelopes on a single gossip topic; each
// client filters the envelopes against its own subscriptions.
package p2p

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/reglet-dev/edge-agent/domain/errors"
	"github.com/reglet-dev/edge-agent/domain/ports"
)

// DefaultTopic is the gossip topic used when Config.Topic is empty.
const DefaultTopic = "edge-agent/v1"

// Config configures the libp2p transport.
type Config struct {
	ListenAddrs []string
	Bootstrap   []string
	Topic       string
}

// envelope carries one broker publish across the gossip topic.
type envelope struct {
	Topic   string       `json:"topic"`
	Payload []byte       `json:"payload"`
	QoS     entities.QoS `json:"qos"`
}

// Client is a gossipsub-backed broker connection. QoS is carried but not
// enforced; gossip delivery is best effort. Once a message reaches the
// client it is kept until the listener takes it or Disconnect is called.
type Client struct {
	ctx     context.Context
	cancel  context.CancelFunc
	host    host.Host
	topic   *pubsub.Topic
	sub     *pubsub.Subscription
	logger  *slog.Logger
	events  chan ports.BrokerEvent
	wake    chan struct{}
	done    chan struct{}
	pending []ports.BrokerEvent
	filters map[string]entities.QoS
	cfg     Config
	mu      sync.RWMutex
	emitMu  sync.Mutex
	closed  bool
}

var _ ports.BrokerClient = (*Client)(nil)

// New creates a client. The libp2p host starts on Connect.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:     cfg,
		logger:  logger.With("component", "p2p"),
		events:  make(chan ports.BrokerEvent, 64),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		filters: make(map[string]entities.QoS),
	}
	go c.pump()
	return c
}

// Connect starts the host, joins the gossip topic and dials the bootstrap
// peers. Unreachable bootstrap peers are logged; an invalid listen address
// or a host that fails to start is returned as an error.
func (c *Client) Connect(ctx context.Context) error {
	listenAddrs := make([]ma.Multiaddr, 0, len(c.cfg.ListenAddrs))
	for _, s := range c.cfg.ListenAddrs {
		if s == "" {
			continue
		}
		a, err := ma.NewMultiaddr(s)
		if err != nil {
			return fmt.Errorf("invalid listen multiaddr %q: %w", s, err)
		}
		listenAddrs = append(listenAddrs, a)
	}
	if len(listenAddrs) == 0 {
		a, _ := ma.NewMultiaddr("/ip4/0.0.0.0/tcp/0")
		listenAddrs = append(listenAddrs, a)
	}

	h, err := libp2p.New(libp2p.ListenAddrs(listenAddrs...))
	if err != nil {
		return &errors.BrokerError{Operation: "connect", Err: fmt.Errorf("create host: %w", err)}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ps, err := pubsub.NewGossipSub(runCtx, h)
	if err != nil {
		cancel()
		_ = h.Close()
		return &errors.BrokerError{Operation: "connect", Err: fmt.Errorf("create gossipsub: %w", err)}
	}
	topic, err := ps.Join(c.cfg.Topic)
	if err != nil {
		cancel()
		_ = h.Close()
		return &errors.BrokerError{Operation: "connect", Topic: c.cfg.Topic, Err: err}
	}
	sub, err := topic.Subscribe()
	if err != nil {
		cancel()
		_ = topic.Close()
		_ = h.Close()
		return &errors.BrokerError{Operation: "subscribe", Topic: c.cfg.Topic, Err: err}
	}

	c.mu.Lock()
	c.ctx, c.cancel, c.host, c.topic, c.sub = runCtx, cancel, h, topic, sub
	c.mu.Unlock()

	c.bootstrap(runCtx)
	go c.read(runCtx)

	c.logger.InfoContext(ctx, "joined gossip topic", "topic", c.cfg.Topic, "peer", h.ID().String())
	c.emit(ports.BrokerEvent{Kind: ports.BrokerConnected})
	return nil
}

func (c *Client) bootstrap(ctx context.Context) {
	for _, raw := range c.cfg.Bootstrap {
		if raw == "" {
			continue
		}
		addr, err := ma.NewMultiaddr(raw)
		if err != nil {
			c.logger.WarnContext(ctx, "skip bootstrap addr", "addr", raw, "error", err)
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			c.logger.WarnContext(ctx, "skip bootstrap addr", "addr", raw, "error", err)
			continue
		}
		if err := c.host.Connect(ctx, *info); err != nil {
			c.logger.WarnContext(ctx, "bootstrap connect failed", "peer", info.ID.String(), "error", err)
			continue
		}
		c.logger.InfoContext(ctx, "connected bootstrap peer", "peer", info.ID.String())
	}
}

func (c *Client) read(ctx context.Context) {
	self := c.host.ID()
	for {
		msg, err := c.sub.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == self {
			continue
		}
		var env envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			c.logger.DebugContext(ctx, "dropping malformed envelope", "from", msg.ReceivedFrom.String(), "error", err)
			continue
		}
		if !c.matches(env.Topic) {
			continue
		}
		c.emit(ports.BrokerEvent{Kind: ports.BrokerMessage, Topic: env.Topic, Payload: env.Payload})
	}
}

func (c *Client) matches(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for filter := range c.filters {
		if entities.TopicMatches(filter, topic) {
			return true
		}
	}
	return false
}

// Events returns the connection event channel.
func (c *Client) Events() <-chan ports.BrokerEvent {
	return c.events
}

// Subscribe registers a topic filter.
func (c *Client) Subscribe(_ context.Context, filter string, qos entities.QoS) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.topic == nil || c.closed {
		return &errors.BrokerError{Operation: "subscribe", Topic: filter, Err: fmt.Errorf("not connected")}
	}
	c.filters[filter] = qos
	return nil
}

// Publish wraps payload in an envelope and gossips it.
func (c *Client) Publish(ctx context.Context, topic string, qos entities.QoS, payload []byte) error {
	c.mu.RLock()
	t := c.topic
	closed := c.closed
	c.mu.RUnlock()
	if t == nil || closed {
		return &errors.BrokerError{Operation: "publish", Topic: topic, Err: fmt.Errorf("not connected")}
	}

	data, err := json.Marshal(envelope{Topic: topic, Payload: payload, QoS: qos})
	if err != nil {
		return &errors.BrokerError{Operation: "publish", Topic: topic, Err: err}
	}
	if err := t.Publish(ctx, data); err != nil {
		return &errors.BrokerError{Operation: "publish", Topic: topic, Err: err}
	}
	return nil
}

// PeerID returns the local peer id, or "" before Connect.
func (c *Client) PeerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.host == nil {
		return ""
	}
	return c.host.ID().String()
}

// ListenAddrs returns the dialable addresses of this peer.
func (c *Client) ListenAddrs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.host == nil {
		return nil
	}
	out := make([]string, 0, len(c.host.Addrs()))
	for _, addr := range c.host.Addrs() {
		out = append(out, fmt.Sprintf("%s/p2p/%s", addr.String(), c.host.ID().String()))
	}
	return out
}

// TopicPeers returns the peers seen on the gossip topic.
func (c *Client) TopicPeers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.topic == nil {
		return nil
	}
	peers := c.topic.ListPeers()
	out := make([]string, 0, len(peers))
	for _, pid := range peers {
		out = append(out, pid.String())
	}
	return out
}

// Disconnect leaves the gossip topic and stops the host. The event channel
// is closed shortly after.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
		c.sub.Cancel()
		_ = c.topic.Close()
		_ = c.host.Close()
	}
	close(c.done)
}

// emit queues ev for the pump and never blocks or drops.
func (c *Client) emit(ev ports.BrokerEvent) {
	select {
	case <-c.done:
		return
	default:
	}
	c.emitMu.Lock()
	c.pending = append(c.pending, ev)
	c.emitMu.Unlock()
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
		c.emitMu.Lock()
		batch := c.pending
		c.pending = nil
		c.emitMu.Unlock()
		for _, ev := range batch {
			select {
			case c.events <- ev:
			case <-c.done:
				return
			}
		}
	}
}
