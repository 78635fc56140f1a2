package bridge

import (
	"fmt"

	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/reglet-dev/edge-agent/domain/errors"
)

// EncodeMessage writes topic and payload into the buffers the sandbox
// registered and returns the number of bytes written for each.
//
// The registered capacities are not enforced; callers must keep messages
// within them. Only the linear memory bounds are checked.
func EncodeMessage(mem *Memory, reg *entities.BufferRegistry, topic, payload string) (uint32, uint32, error) {
	bufs, ok := reg.Load()
	if !ok {
		return 0, 0, errors.ErrBuffersNotRegistered
	}
	if err := mem.WriteBytes(bufs.TopicPtr, []byte(topic)); err != nil {
		return 0, 0, fmt.Errorf("encoding topic: %w", err)
	}
	if err := mem.WriteBytes(bufs.PayloadPtr, []byte(payload)); err != nil {
		return 0, 0, fmt.Errorf("encoding payload: %w", err)
	}
	return uint32(len(topic)), uint32(len(payload)), nil
}

// DecodeBundleID reads the bundle identifier: a single length byte at lenPtr
// followed by that many bytes at ptr.
func DecodeBundleID(mem *Memory, ptr, lenPtr uint32) (string, error) {
	l, err := mem.ReadBytes(lenPtr, 1)
	if err != nil {
		return "", fmt.Errorf("reading bundle id length: %w", err)
	}
	id, err := mem.ReadString(ptr, uint32(l[0]))
	if err != nil {
		return "", fmt.Errorf("reading bundle id: %w", err)
	}
	return id, nil
}
