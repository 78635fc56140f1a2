package entities

import "fmt"

// InboundKind tags an InboundMessage.
type InboundKind int

// Inbound message kinds produced by the broker listener.
const (
	ModuleUpdateAvailable InboundKind = iota + 1
	BrokerConnected
	BrokerDisconnected
	CommandReceived
	VirtualButtonReceived
)

func (k InboundKind) String() string {
	switch k {
	case ModuleUpdateAvailable:
		return "module_update_available"
	case BrokerConnected:
		return "broker_connected"
	case BrokerDisconnected:
		return "broker_disconnected"
	case CommandReceived:
		return "command_received"
	case VirtualButtonReceived:
		return "virtual_button_received"
	default:
		return fmt.Sprintf("inbound_kind(%d)", int(k))
	}
}

// InboundMessage is one classified broker event. Payload is only set for
// CommandReceived and VirtualButtonReceived.
type InboundMessage struct {
	Kind    InboundKind
	Payload string
}

// QoS is the broker delivery guarantee requested for a publish.
type QoS byte

// Delivery guarantees.
const (
	AtMostOnce  QoS = 0
	AtLeastOnce QoS = 1
	ExactlyOnce QoS = 2
)

// QoSFromGuest maps the integer a sandbox passes to send_message.
// 0 and 1 map directly; anything else requests exactly-once.
func QoSFromGuest(v int32) QoS {
	switch v {
	case 0:
		return AtMostOnce
	case 1:
		return AtLeastOnce
	default:
		return ExactlyOnce
	}
}

func (q QoS) String() string {
	switch q {
	case AtMostOnce:
		return "at_most_once"
	case AtLeastOnce:
		return "at_least_once"
	default:
		return "exactly_once"
	}
}

// OutboundPublishRequest is a message waiting for the publisher.
type OutboundPublishRequest struct {
	Topic   string
	Payload string
	QoS     QoS
}

// Prompt lists the operator commands. It is printed when the CLI starts and
// after each command that produces output.
const Prompt = "(info, direct, exit) >"
