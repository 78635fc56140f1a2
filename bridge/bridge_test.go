package bridge

import (
	"errors"
	"testing"

	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceMemory is a Linear backed by a byte slice.
type sliceMemory []byte

func (s sliceMemory) Size() uint32 { return uint32(len(s)) }

func (s sliceMemory) Read(offset, n uint32) ([]byte, bool) {
	if uint64(offset)+uint64(n) > uint64(len(s)) {
		return nil, false
	}
	return s[offset : offset+n], true
}

func (s sliceMemory) Write(offset uint32, v []byte) bool {
	if uint64(offset)+uint64(len(v)) > uint64(len(s)) {
		return false
	}
	copy(s[offset:], v)
	return true
}

func TestMemory_Bounds(t *testing.T) {
	mem := NewMemory(make(sliceMemory, 16))

	tests := []struct {
		name   string
		op     func() error
		wantOK bool
	}{
		{"write fits", func() error { return mem.WriteBytes(8, make([]byte, 8)) }, true},
		{"write overflows", func() error { return mem.WriteBytes(9, make([]byte, 8)) }, false},
		{"write past end", func() error { return mem.WriteByte(16, 1) }, false},
		{"empty write at end", func() error { return mem.WriteBytes(16, nil) }, true},
		{"read fits", func() error { _, err := mem.ReadBytes(0, 16); return err }, true},
		{"read overflows", func() error { _, err := mem.ReadBytes(1, 16); return err }, false},
		{"read wraps uint32", func() error { _, err := mem.ReadBytes(0xffffffff, 2); return err }, false},
		{"u64 fits", func() error { return mem.WriteUint64LE(8, 1) }, true},
		{"u64 overflows", func() error { return mem.WriteUint64LE(9, 1) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrOutOfRange), "got %v", err)
			}
		})
	}
}

func TestMemory_ReadCopies(t *testing.T) {
	raw := make(sliceMemory, 4)
	copy(raw, "abcd")
	mem := NewMemory(raw)

	b, err := mem.ReadBytes(0, 4)
	require.NoError(t, err)
	raw[0] = 'z'
	assert.Equal(t, "abcd", string(b))
}

func TestMemory_WriteUint64LE(t *testing.T) {
	raw := make(sliceMemory, 8)
	mem := NewMemory(raw)

	require.NoError(t, mem.WriteUint64LE(0, 0x0102030405060708))
	assert.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1}, []byte(raw))
}

func TestEncodeMessage(t *testing.T) {
	raw := make(sliceMemory, 64)
	mem := NewMemory(raw)
	reg := entities.NewBufferRegistry()
	reg.Store(entities.MessageBuffers{TopicPtr: 0, TopicCap: 1, PayloadPtr: 32, PayloadCap: 5})

	tl, pl, err := EncodeMessage(mem, reg, "t", "hello")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), tl)
	assert.Equal(t, uint32(5), pl)
	assert.Equal(t, "t", string(raw[0:1]))
	assert.Equal(t, "hello", string(raw[32:37]))
	assert.Equal(t, byte(0), raw[1], "nothing written past the topic")
	assert.Equal(t, byte(0), raw[37], "nothing written past the payload")
}

func TestEncodeMessage_Unregistered(t *testing.T) {
	mem := NewMemory(make(sliceMemory, 8))

	_, _, err := EncodeMessage(mem, entities.NewBufferRegistry(), "t", "p")
	assert.ErrorIs(t, err, ErrBuffersNotRegistered)
}

func TestEncodeMessage_OutOfMemory(t *testing.T) {
	mem := NewMemory(make(sliceMemory, 8))
	reg := entities.NewBufferRegistry()
	reg.Store(entities.MessageBuffers{TopicPtr: 0, TopicCap: 4, PayloadPtr: 6, PayloadCap: 4})

	_, _, err := EncodeMessage(mem, reg, "t", "hello")
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestDecodeBundleID(t *testing.T) {
	raw := make(sliceMemory, 32)
	copy(raw[4:], "bundle-7")
	raw[20] = 8
	mem := NewMemory(raw)

	id, err := DecodeBundleID(mem, 4, 20)
	require.NoError(t, err)
	assert.Equal(t, "bundle-7", id)

	_, err = DecodeBundleID(mem, 30, 20)
	assert.ErrorIs(t, err, ErrOutOfRange)
}
