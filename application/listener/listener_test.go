package listener

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/reglet-dev/edge-agent/application/queue"
	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/reglet-dev/edge-agent/infrastructure/memorybroker"
	"github.com/reglet-dev/edge-agent/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bundleFile struct {
	mu   sync.Mutex
	err  error
	data []byte
}

func (b *bundleFile) Save(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.data = append([]byte(nil), data...)
	return nil
}

func (b *bundleFile) Read() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data, nil
}

func (b *bundleFile) Path() string { return "bundle.wasm" }

var topics = entities.Topics{Base: "losant", DeviceID: "dev1"}

type fixture struct {
	broker *memorybroker.Broker
	client *memorybroker.Client
	inbox  *queue.Queue[entities.InboundMessage]
	bundle *bundleFile
	done   chan struct{}
}

func start(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	f := &fixture{
		broker: memorybroker.New(),
		inbox:  queue.New[entities.InboundMessage](),
		bundle: &bundleFile{},
		done:   make(chan struct{}),
	}
	f.client = f.broker.Client("dev1")

	l := New(f.client, f.inbox, topics, f.bundle, nil)
	go func() {
		defer close(f.done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-f.done
	})

	require.NoError(t, f.client.Connect(ctx))
	f.expect(t, entities.InboundMessage{Kind: entities.BrokerConnected})
	return f
}

// expect waits for the next inbound messages and compares them in order.
func (f *fixture) expect(t *testing.T, want ...entities.InboundMessage) {
	t.Helper()
	var got []entities.InboundMessage
	testutil.RequireEventually(t, func() bool {
		got = append(got, f.inbox.Drain()...)
		return len(got) >= len(want)
	})
	assert.Equal(t, want, got)
}

func TestListener_ClassifiesMessages(t *testing.T) {
	f := start(t)

	f.broker.Publish(topics.Command(), entities.AtMostOnce, []byte(`{"name":"go"}`))
	f.broker.Publish(topics.VirtualButton(), entities.AtMostOnce, []byte(`{"p":1}`))
	f.broker.Publish(topics.Flows(), entities.AtMostOnce, []byte("\x00asm"))

	f.expect(t,
		entities.InboundMessage{Kind: entities.CommandReceived, Payload: `{"name":"go"}`},
		entities.InboundMessage{Kind: entities.VirtualButtonReceived, Payload: `{"p":1}`},
		entities.InboundMessage{Kind: entities.ModuleUpdateAvailable},
	)

	data, err := f.bundle.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte("\x00asm"), data)
}

func TestListener_IgnoresOtherTopics(t *testing.T) {
	f := start(t)

	f.broker.Publish("losant/dev1/toAgent/unknown", entities.AtMostOnce, []byte("x"))
	f.broker.Publish(topics.Command(), entities.AtMostOnce, []byte("after"))

	f.expect(t, entities.InboundMessage{Kind: entities.CommandReceived, Payload: "after"})
}

func TestListener_BundleWriteFailureSkipsUpdate(t *testing.T) {
	f := start(t)
	f.bundle.mu.Lock()
	f.bundle.err = fmt.Errorf("read-only file system")
	f.bundle.mu.Unlock()

	f.broker.Publish(topics.Flows(), entities.AtMostOnce, []byte("\x00asm"))
	f.broker.Publish(topics.Command(), entities.AtMostOnce, []byte("next"))

	f.expect(t, entities.InboundMessage{Kind: entities.CommandReceived, Payload: "next"})
}

func TestListener_ConnectionChanges(t *testing.T) {
	f := start(t)

	f.client.Drop(fmt.Errorf("timeout"))
	f.expect(t, entities.InboundMessage{Kind: entities.BrokerDisconnected})

	require.NoError(t, f.client.Connect(context.Background()))
	f.expect(t, entities.InboundMessage{Kind: entities.BrokerConnected})

	// subscriptions are restored after reconnecting
	f.broker.Publish(topics.Command(), entities.AtMostOnce, []byte("again"))
	f.expect(t, entities.InboundMessage{Kind: entities.CommandReceived, Payload: "again"})
}

func TestListener_StopsWhenEventsClose(t *testing.T) {
	f := start(t)
	f.client.Disconnect()

	select {
	case <-f.done:
	case <-time.After(time.Second):
		t.Fatal("listener still running")
	}
}
