package hostfuncs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/reglet-dev/edge-agent/domain/errors"
)

// Names of the core host functions.
const (
	FuncTrace             = "eea_trace"
	FuncSendMessage       = "eea_send_message"
	FuncGetTime           = "eea_get_time"
	FuncSetMessageBuffers = "eea_set_message_buffers"
	FuncSleep             = "eea_sleep"
	FuncStorageSave       = "eea_storage_save"
	FuncStorageRead       = "eea_storage_read"
	FuncGetDeviceID       = "eea_get_device_id"
)

// traceLevels names guest trace levels by index.
var traceLevels = [...]string{"", "ERROR", "INFO"}

// Trace logs a UTF-8 message from guest memory.
// Args: ptr, len, level.
func Trace(ctx context.Context, env *Env, args []uint32) (int32, error) {
	msg, err := env.Memory.ReadString(args[0], args[1])
	if err != nil {
		return 0, err
	}
	level := int32(args[2])

	lvl := slog.LevelDebug
	name := ""
	if level >= 0 && int(level) < len(traceLevels) {
		name = traceLevels[level]
	}
	switch name {
	case "ERROR":
		lvl = slog.LevelError
	case "INFO":
		lvl = slog.LevelInfo
	}
	env.logger().Log(ctx, lvl, msg, "source", "guest", "trace_level", level)
	return 0, nil
}

// SendMessage queues a publish request. It never waits on the network.
// Args: topic ptr, topic len, payload ptr, payload len, qos.
func SendMessage(ctx context.Context, env *Env, args []uint32) (int32, error) {
	topic, err := env.Memory.ReadString(args[0], args[1])
	if err != nil {
		return 0, err
	}
	payload, err := env.Memory.ReadString(args[2], args[3])
	if err != nil {
		return 0, err
	}
	req := entities.OutboundPublishRequest{
		Topic:   topic,
		Payload: payload,
		QoS:     entities.QoSFromGuest(int32(args[4])),
	}
	env.Outbox.Push(req)
	env.logger().DebugContext(ctx, "queued message", "topic", topic, "qos", req.QoS)
	return 0, nil
}

// GetTime writes the current Unix time in milliseconds as 8 little-endian
// bytes.
// Args: out ptr.
func GetTime(_ context.Context, env *Env, args []uint32) (int32, error) {
	if err := env.Memory.WriteUint64LE(args[0], uint64(env.nowMillis())); err != nil {
		return 0, err
	}
	return 0, nil
}

// SetMessageBuffers records where the host should write inbound messages.
// Args: topic ptr, topic cap, payload ptr, payload cap.
func SetMessageBuffers(_ context.Context, env *Env, args []uint32) (int32, error) {
	env.Buffers.Store(entities.MessageBuffers{
		TopicPtr:   args[0],
		TopicCap:   args[1],
		PayloadPtr: args[2],
		PayloadCap: args[3],
	})
	return 0, nil
}

// Sleep blocks the calling goroutine. A cancelled context ends it early.
// Args: milliseconds.
func Sleep(ctx context.Context, _ *Env, args []uint32) (int32, error) {
	d := time.Duration(int32(args[0])) * time.Millisecond
	if d <= 0 {
		return 0, nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	return 0, nil
}

// StorageSave overwrites the storage file. A write failure is fatal.
// Args: ptr, len.
func StorageSave(ctx context.Context, env *Env, args []uint32) (int32, error) {
	data, err := env.Memory.ReadString(args[0], args[1])
	if err != nil {
		return 0, err
	}
	if err := env.Storage.Save([]byte(data)); err != nil {
		return 0, errors.Fatal(FuncStorageSave, fmt.Errorf("writing %s: %w", env.Storage.Path(), err))
	}
	env.logger().DebugContext(ctx, "storage saved", "bytes", len(data))
	return 0, nil
}

// StorageRead copies the storage file into guest memory and writes its length
// as a single byte. Returns 1 without writing anything when the file is
// larger than the buffer.
// Args: out ptr, cap, out len ptr.
func StorageRead(ctx context.Context, env *Env, args []uint32) (int32, error) {
	out, capacity, outLen := args[0], args[1], args[2]

	data, err := env.Storage.Read()
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", env.Storage.Path(), err)
	}
	if uint64(len(data)) > uint64(capacity) {
		env.logger().WarnContext(ctx, "storage buffer too small", "capacity", capacity, "size", len(data))
		return 1, nil
	}
	if err := env.Memory.WriteBytes(out, data); err != nil {
		return 0, err
	}
	if err := env.Memory.WriteByte(outLen, byte(len(data))); err != nil {
		return 0, err
	}
	return 0, nil
}

// GetDeviceID copies the device id, truncated to cap, into guest memory.
// The length byte is always cap, not the id length.
// Args: out ptr, cap, out len ptr.
func GetDeviceID(_ context.Context, env *Env, args []uint32) (int32, error) {
	out, capacity, outLen := args[0], args[1], args[2]

	id := []byte(env.DeviceID)
	if uint64(len(id)) > uint64(capacity) {
		id = id[:capacity]
	}
	if err := env.Memory.WriteBytes(out, id); err != nil {
		return 0, err
	}
	if err := env.Memory.WriteByte(outLen, byte(capacity)); err != nil {
		return 0, err
	}
	return 0, nil
}
