package entities

import "sync/atomic"

// MessageBuffers is the guest-provided pair of scratch buffers the host writes
// inbound topics and payloads into. Pointers are offsets into linear memory.
type MessageBuffers struct {
	TopicPtr   uint32
	TopicCap   uint32
	PayloadPtr uint32
	PayloadCap uint32
}

// BufferRegistry holds the current MessageBuffers. The four values are
// swapped as a unit, so readers never observe a half-written registration.
//
// Registrations are not cleared when a module is replaced; the previous
// module's values stay visible until the new module registers its own.
type BufferRegistry struct {
	current atomic.Pointer[MessageBuffers]
}

// NewBufferRegistry returns an empty registry.
func NewBufferRegistry() *BufferRegistry {
	return &BufferRegistry{}
}

// Store replaces the registration. Last write wins.
func (r *BufferRegistry) Store(b MessageBuffers) {
	r.current.Store(&b)
}

// Load returns the current registration and whether one was ever stored.
func (r *BufferRegistry) Load() (MessageBuffers, bool) {
	b := r.current.Load()
	if b == nil {
		return MessageBuffers{}, false
	}
	return *b, true
}
