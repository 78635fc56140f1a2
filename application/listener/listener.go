// Package listener turns broker events into inbound messages for the main
// loop.
package listener

import (
	"context"
	"log/slog"

	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/reglet-dev/edge-agent/domain/ports"
)

// Listener classifies broker events. It never calls into the sandbox; new
// bundles are written to disk and announced through the inbox.
type Listener struct {
	client ports.BrokerClient
	inbox  ports.Inbox
	bundle ports.FileStore
	logger *slog.Logger
	topics entities.Topics
}

// New creates a listener for the device described by topics. Bundles
// received on the flows topic are written to bundle.
func New(client ports.BrokerClient, inbox ports.Inbox, topics entities.Topics, bundle ports.FileStore, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		client: client,
		inbox:  inbox,
		bundle: bundle,
		topics: topics,
		logger: logger.With("component", "listener"),
	}
}

// Run consumes events until ctx is done or the client's event channel is
// closed.
func (l *Listener) Run(ctx context.Context) error {
	events := l.client.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			l.handle(ctx, ev)
		}
	}
}

func (l *Listener) handle(ctx context.Context, ev ports.BrokerEvent) {
	switch ev.Kind {
	case ports.BrokerConnected:
		l.logger.InfoContext(ctx, "connected to broker")
		l.subscribe(ctx)
		l.inbox.Push(entities.InboundMessage{Kind: entities.BrokerConnected})
	case ports.BrokerConnectionLost:
		l.logger.WarnContext(ctx, "broker connection lost", "error", ev.Err)
		l.inbox.Push(entities.InboundMessage{Kind: entities.BrokerDisconnected})
	case ports.BrokerMessage:
		l.message(ctx, ev.Topic, ev.Payload)
	default:
		l.logger.DebugContext(ctx, "ignoring broker event", "kind", ev.Kind)
	}
}

func (l *Listener) subscribe(ctx context.Context) {
	for _, filter := range []string{l.topics.Command(), l.topics.ToAgent()} {
		if err := l.client.Subscribe(ctx, filter, entities.AtMostOnce); err != nil {
			l.logger.ErrorContext(ctx, "subscribe failed", "filter", filter, "error", err)
		}
	}
}

func (l *Listener) message(ctx context.Context, topic string, payload []byte) {
	switch topic {
	case l.topics.Flows():
		l.logger.InfoContext(ctx, "received new bundle", "bytes", len(payload))
		if err := l.bundle.Save(payload); err != nil {
			l.logger.ErrorContext(ctx, "failed to write bundle", "path", l.bundle.Path(), "error", err)
			return
		}
		l.inbox.Push(entities.InboundMessage{Kind: entities.ModuleUpdateAvailable})
	case l.topics.Command():
		l.inbox.Push(entities.InboundMessage{Kind: entities.CommandReceived, Payload: string(payload)})
	case l.topics.VirtualButton():
		l.inbox.Push(entities.InboundMessage{Kind: entities.VirtualButtonReceived, Payload: string(payload)})
	default:
		l.logger.DebugContext(ctx, "ignoring message", "topic", topic)
	}
}
