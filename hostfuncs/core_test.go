package hostfuncs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/reglet-dev/edge-agent/bridge"
	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/reglet-dev/edge-agent/domain/errors"
	"github.com/reglet-dev/edge-agent/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrace(t *testing.T) {
	tests := []struct {
		level uint32
		want  string
	}{
		{1, "level=ERROR"},
		{2, "level=INFO"},
		{0, "level=DEBUG"},
		{9, "level=DEBUG"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			env := newTestEnv(t)
			copy(env.raw[10:], "hi there")

			status, err := Trace(context.Background(), env.Env, []uint32{10, 8, tt.level})
			require.NoError(t, err)
			assert.Equal(t, int32(0), status)
			assert.Contains(t, env.logs.String(), tt.want)
			assert.Contains(t, env.logs.String(), `msg="hi there"`)
			assert.Contains(t, env.logs.String(), "source=guest")
		})
	}
}

func TestSendMessage(t *testing.T) {
	tests := []struct {
		qos  uint32
		want entities.QoS
	}{
		{0, entities.AtMostOnce},
		{1, entities.AtLeastOnce},
		{2, entities.ExactlyOnce},
		{5, entities.ExactlyOnce},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			env := newTestEnv(t)
			copy(env.raw[0:], "a/b")
			copy(env.raw[16:], "{}")

			status, err := SendMessage(context.Background(), env.Env, []uint32{0, 3, 16, 2, tt.qos})
			require.NoError(t, err)
			assert.Equal(t, int32(0), status)
			assert.Equal(t, []entities.OutboundPublishRequest{{Topic: "a/b", Payload: "{}", QoS: tt.want}}, env.outbox.Drain())
		})
	}
}

func TestSendMessage_OutOfRange(t *testing.T) {
	env := newTestEnv(t)

	_, err := SendMessage(context.Background(), env.Env, []uint32{250, 10, 0, 0, 0})
	assert.ErrorIs(t, err, bridge.ErrOutOfRange)
	assert.Zero(t, env.outbox.Len())
}

func TestGetTime(t *testing.T) {
	env := newTestEnv(t)

	status, err := GetTime(context.Background(), env.Env, []uint32{8})
	require.NoError(t, err)
	assert.Equal(t, int32(0), status)
	assert.Equal(t, []byte{0x05, 0x04, 0x03, 0x02, 0x01, 0, 0, 0}, []byte(env.raw[8:16]))
}

func TestSetMessageBuffers_LastWriteWins(t *testing.T) {
	env := newTestEnv(t)

	_, err := SetMessageBuffers(context.Background(), env.Env, []uint32{1, 2, 3, 4})
	require.NoError(t, err)
	_, err = SetMessageBuffers(context.Background(), env.Env, []uint32{10, 20, 30, 40})
	require.NoError(t, err)

	got, ok := env.Buffers.Load()
	require.True(t, ok)
	assert.Equal(t, entities.MessageBuffers{TopicPtr: 10, TopicCap: 20, PayloadPtr: 30, PayloadCap: 40}, got)
}

func TestSleep(t *testing.T) {
	env := newTestEnv(t)

	start := time.Now()
	status, err := Sleep(context.Background(), env.Env, []uint32{20})
	require.NoError(t, err)
	assert.Equal(t, int32(0), status)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
	testutil.AssertDurationWithin(t, 20*time.Millisecond, elapsed, 500*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start = time.Now()
	_, err = Sleep(ctx, env.Env, []uint32{10_000})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStorageSave(t *testing.T) {
	env := newTestEnv(t)
	copy(env.raw[0:], `{"k":1}`)

	status, err := StorageSave(context.Background(), env.Env, []uint32{0, 7})
	require.NoError(t, err)
	assert.Equal(t, int32(0), status)
	assert.Equal(t, `{"k":1}`, string(env.store.data))
}

func TestStorageSave_FailureIsFatal(t *testing.T) {
	env := newTestEnv(t)
	env.store.saveErr = errDiskFull

	_, err := StorageSave(context.Background(), env.Env, []uint32{0, 1})
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.ErrorIs(t, err, errDiskFull)
}

func TestStorageRead(t *testing.T) {
	t.Run("fits", func(t *testing.T) {
		env := newTestEnv(t)
		env.store.data = []byte("state")

		status, err := StorageRead(context.Background(), env.Env, []uint32{32, 16, 100})
		require.NoError(t, err)
		assert.Equal(t, int32(0), status)
		assert.Equal(t, "state", string(env.raw[32:37]))
		assert.Equal(t, byte(5), env.raw[100])
	})

	t.Run("buffer too small writes nothing", func(t *testing.T) {
		env := newTestEnv(t)
		env.store.data = []byte("0123456789")
		env.raw[100] = 0xee

		status, err := StorageRead(context.Background(), env.Env, []uint32{32, 4, 100})
		require.NoError(t, err)
		assert.Equal(t, int32(1), status)
		assert.Equal(t, make([]byte, 10), []byte(env.raw[32:42]))
		assert.Equal(t, byte(0xee), env.raw[100])
	})

	t.Run("empty storage", func(t *testing.T) {
		env := newTestEnv(t)
		env.raw[100] = 0xee

		status, err := StorageRead(context.Background(), env.Env, []uint32{32, 4, 100})
		require.NoError(t, err)
		assert.Equal(t, int32(0), status)
		assert.Equal(t, byte(0), env.raw[100])
	})
}

func TestGetDeviceID(t *testing.T) {
	t.Run("truncated to cap", func(t *testing.T) {
		env := newTestEnv(t)

		status, err := GetDeviceID(context.Background(), env.Env, []uint32{0, 6, 100})
		require.NoError(t, err)
		assert.Equal(t, int32(0), status)
		assert.Equal(t, "device", string(env.raw[0:6]))
		assert.Equal(t, byte(0), env.raw[6])
		assert.Equal(t, byte(6), env.raw[100])
	})

	t.Run("length byte is cap for a shorter id", func(t *testing.T) {
		env := newTestEnv(t)
		for i := 0; i < 32; i++ {
			env.raw[i] = '.'
		}

		_, err := GetDeviceID(context.Background(), env.Env, []uint32{0, 32, 100})
		require.NoError(t, err)
		assert.Equal(t, "device-123", string(env.raw[0:10]))
		assert.Equal(t, strings.Repeat(".", 22), string(env.raw[10:32]))
		assert.Equal(t, byte(32), env.raw[100])
	})
}

func TestTerminalPrint(t *testing.T) {
	env := newTestEnv(t)
	var out strings.Builder
	env.Console = &out
	copy(env.raw[0:], "hello")

	status, err := TerminalPrint(context.Background(), env.Env, []uint32{0, 5})
	require.NoError(t, err)
	assert.Equal(t, int32(0), status)
	assert.Equal(t, "hello\n", out.String())
}
