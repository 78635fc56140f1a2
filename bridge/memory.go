// Package bridge moves data between the host and a sandbox's linear memory.
//
// Every access is bounds-checked against the current memory size; an access
// outside the memory fails with ErrOutOfRange instead of touching it.
package bridge

import (
	"encoding/binary"

	"github.com/reglet-dev/edge-agent/domain/errors"
)

var (
	// ErrOutOfRange is returned for any access outside linear memory.
	ErrOutOfRange = errors.ErrOutOfRange
	// ErrBuffersNotRegistered is returned by EncodeMessage before the
	// sandbox has registered its message buffers.
	ErrBuffersNotRegistered = errors.ErrBuffersNotRegistered
)

// Linear is the raw linear memory of a sandbox. wazero's api.Memory
// satisfies it.
type Linear interface {
	Size() uint32
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// Memory is a bounds-checked view of a sandbox's linear memory.
type Memory struct {
	lin Linear
}

// NewMemory wraps lin.
func NewMemory(lin Linear) *Memory {
	return &Memory{lin: lin}
}

// Size returns the current size of the memory in bytes.
func (m *Memory) Size() uint32 {
	return m.lin.Size()
}

func (m *Memory) check(op string, offset, length uint32) error {
	size := m.lin.Size()
	if uint64(offset)+uint64(length) > uint64(size) {
		return &errors.MemoryError{Op: op, Offset: offset, Length: length, Size: size}
	}
	return nil
}

// ReadBytes returns a copy of length bytes starting at offset.
func (m *Memory) ReadBytes(offset, length uint32) ([]byte, error) {
	if err := m.check("read", offset, length); err != nil {
		return nil, err
	}
	if length == 0 {
		return []byte{}, nil
	}
	b, ok := m.lin.Read(offset, length)
	if !ok {
		return nil, &errors.MemoryError{Op: "read", Offset: offset, Length: length, Size: m.lin.Size()}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// ReadString decodes length bytes at offset as a string. Invalid UTF-8 is
// kept as-is.
func (m *Memory) ReadString(offset, length uint32) (string, error) {
	b, err := m.ReadBytes(offset, length)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteBytes copies b into memory at offset.
func (m *Memory) WriteBytes(offset uint32, b []byte) error {
	if err := m.check("write", offset, uint32(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if !m.lin.Write(offset, b) {
		return &errors.MemoryError{Op: "write", Offset: offset, Length: uint32(len(b)), Size: m.lin.Size()}
	}
	return nil
}

// WriteByte stores a single byte at offset.
func (m *Memory) WriteByte(offset uint32, v byte) error {
	return m.WriteBytes(offset, []byte{v})
}

// WriteUint64LE stores v as 8 little-endian bytes at offset.
func (m *Memory) WriteUint64LE(offset uint32, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return m.WriteBytes(offset, buf[:])
}
