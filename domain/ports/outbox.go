package ports

import "github.com/reglet-dev/edge-agent/domain/entities"

// Outbox accepts publish requests produced by the sandbox. Push must never
// block on network I/O.
type Outbox interface {
	Push(req entities.OutboundPublishRequest)
}

// Clock supplies wall-clock time in Unix milliseconds.
type Clock interface {
	NowMillis() int64
}

// Inbox accepts events for the main loop. Push must never block.
type Inbox interface {
	Push(msg entities.InboundMessage)
}
