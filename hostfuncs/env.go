package hostfuncs

import (
	"io"
	"log/slog"
	"time"

	"github.com/reglet-dev/edge-agent/bridge"
	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/reglet-dev/edge-agent/domain/ports"
)

// Env is the host state one module instance's functions run against.
// A new Env is built for every instance; Buffers is shared with the
// lifecycle manager and survives reloads.
type Env struct {
	Memory   *bridge.Memory
	Outbox   ports.Outbox
	Buffers  *entities.BufferRegistry
	Storage  ports.FileStore
	Clock    ports.Clock
	Logger   *slog.Logger
	Console  io.Writer
	DeviceID string
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Env) nowMillis() int64 {
	if e.Clock == nil {
		return time.Now().UnixMilli()
	}
	return e.Clock.NowMillis()
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// NowMillis returns the current Unix time in milliseconds.
func (SystemClock) NowMillis() int64 {
	return time.Now().UnixMilli()
}
