package host

import (
	"io"
	"log/slog"

	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/reglet-dev/edge-agent/domain/ports"
	"github.com/reglet-dev/edge-agent/hostfuncs"
)

// Option defines a functional option for configuring the Manager.
type Option func(*Manager)

// GuestConfig is pushed into every bundle before its init entry point runs.
type GuestConfig struct {
	TraceLevel      int32
	StorageSize     int32
	StorageInterval int32
	DebugEnabled    bool
	// Buffer lengths are only sent when both are positive and the bundle
	// exports eea_config_set_message_buffer_lengths.
	TopicBufferLength   int32
	PayloadBufferLength int32
}

// WithHostFunctions configures the manager with a host function registry.
func WithHostFunctions(registry *hostfuncs.Registry) Option {
	return func(m *Manager) {
		m.registry = registry
	}
}

// WithBundlePath sets where bundles are loaded from.
func WithBundlePath(path string) Option {
	return func(m *Manager) {
		m.bundlePath = path
	}
}

// WithDecompressor expands bundle bytes before they are compiled.
func WithDecompressor(d ports.Decompressor) Option {
	return func(m *Manager) {
		m.decompressor = d
	}
}

// WithMemoryPages sets the initial size of each instance's linear memory.
func WithMemoryPages(pages uint32) Option {
	return func(m *Manager) {
		m.memoryPages = pages
	}
}

// WithGuestConfig sets the configuration pushed into each bundle.
func WithGuestConfig(cfg GuestConfig) Option {
	return func(m *Manager) {
		m.guest = cfg
	}
}

// WithOutbox sets where eea_send_message requests are queued.
func WithOutbox(outbox ports.Outbox) Option {
	return func(m *Manager) {
		m.outbox = outbox
	}
}

// WithStorage sets the bundle's persistent storage.
func WithStorage(store ports.FileStore) Option {
	return func(m *Manager) {
		m.storage = store
	}
}

// WithDeviceID sets the id returned by eea_get_device_id.
func WithDeviceID(id string) Option {
	return func(m *Manager) {
		m.deviceID = id
	}
}

// WithClock overrides the wall clock used by eea_get_time.
func WithClock(clock ports.Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithConsole sets where registered terminal functions print.
func WithConsole(w io.Writer) Option {
	return func(m *Manager) {
		m.console = w
	}
}

// WithLogger sets the logger for the manager and for guest traces.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithBufferRegistry shares an existing buffer registry with the manager.
func WithBufferRegistry(reg *entities.BufferRegistry) Option {
	return func(m *Manager) {
		m.buffers = reg
	}
}
