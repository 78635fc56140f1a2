package ports

import (
	"context"

	"github.com/reglet-dev/edge-agent/domain/entities"
)

// BrokerEventKind classifies an event delivered by a BrokerClient.
type BrokerEventKind int

const (
	// BrokerConnected is delivered after every successful (re)connect.
	BrokerConnected BrokerEventKind = iota + 1
	// BrokerConnectionLost is delivered when the connection drops or a
	// connect attempt fails.
	BrokerConnectionLost
	// BrokerMessage carries an incoming publish.
	BrokerMessage
)

// BrokerEvent is a single notification from the broker connection.
type BrokerEvent struct {
	Err     error
	Topic   string
	Payload []byte
	Kind    BrokerEventKind
}

// BrokerClient is a publish/subscribe broker connection.
// Implementations reconnect on their own and report every state change on
// the Events channel.
type BrokerClient interface {
	// Connect starts the connection. It returns once the first attempt has
	// been made; failures are reported as BrokerConnectionLost events.
	Connect(ctx context.Context) error

	// Events returns the channel of connection events. The channel is closed
	// after Disconnect.
	Events() <-chan BrokerEvent

	// Subscribe registers interest in a topic filter.
	Subscribe(ctx context.Context, filter string, qos entities.QoS) error

	// Publish sends a payload to a topic.
	Publish(ctx context.Context, topic string, qos entities.QoS, payload []byte) error

	// Disconnect closes the connection.
	Disconnect()
}
