// Package publisher sends queued publish requests to the broker.
package publisher

import (
	"context"
	"log/slog"

	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/reglet-dev/edge-agent/domain/ports"
)

// Source is the outbound queue the publisher drains.
type Source interface {
	Wait(ctx context.Context) error
	Drain() []entities.OutboundPublishRequest
}

// Publisher performs broker publishes on its own goroutine so slow network
// I/O never stalls the sandbox.
type Publisher struct {
	client ports.BrokerClient
	source Source
	logger *slog.Logger
}

// New creates a publisher.
func New(client ports.BrokerClient, source Source, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		source: source,
		logger: logger.With("component", "publisher"),
	}
}

// Run publishes until ctx is done. Publish failures are logged and dropped;
// the broker client owns retries.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		if err := p.source.Wait(ctx); err != nil {
			return nil
		}
		for _, req := range p.source.Drain() {
			p.publish(ctx, req)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, req entities.OutboundPublishRequest) {
	if err := p.client.Publish(ctx, req.Topic, req.QoS, []byte(req.Payload)); err != nil {
		p.logger.ErrorContext(ctx, "publish failed", "topic", req.Topic, "qos", req.QoS, "error", err)
		return
	}
	p.logger.DebugContext(ctx, "published", "topic", req.Topic, "qos", req.QoS, "bytes", len(req.Payload))
}
