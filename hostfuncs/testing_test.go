package hostfuncs

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/reglet-dev/edge-agent/application/queue"
	"github.com/reglet-dev/edge-agent/bridge"
	"github.com/reglet-dev/edge-agent/domain/entities"
)

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

type memStore struct {
	data    []byte
	saveErr error
}

func (m *memStore) Save(data []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Read() ([]byte, error) { return m.data, nil }
func (m *memStore) Path() string          { return "mem://storage" }

type fixedClock int64

func (c fixedClock) NowMillis() int64 { return int64(c) }

type testEnv struct {
	*Env
	raw    sliceMemory
	outbox *queue.Queue[entities.OutboundPublishRequest]
	store  *memStore
	logs   *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	raw := make(sliceMemory, 256)
	outbox := queue.New[entities.OutboundPublishRequest]()
	store := &memStore{}
	logs := &bytes.Buffer{}
	return &testEnv{
		Env: &Env{
			Memory:   bridge.NewMemory(raw),
			Outbox:   outbox,
			Buffers:  entities.NewBufferRegistry(),
			Storage:  store,
			Clock:    fixedClock(0x0102030405),
			Logger:   slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
			Console:  io.Discard,
			DeviceID: "device-123",
		},
		raw:    raw,
		outbox: outbox,
		store:  store,
		logs:   logs,
	}
}

var errDiskFull = errors.New("disk full")
