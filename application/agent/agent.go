// Package agent runs the main orchestration loop: it is the only goroutine
// that calls into the sandbox.
package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/reglet-dev/edge-agent/domain/errors"
	"github.com/reglet-dev/edge-agent/domain/ports"
	"github.com/reglet-dev/edge-agent/host"
	"github.com/reglet-dev/edge-agent/hostfuncs"
)

// DefaultLoopInterval is the pause between ticks when none is configured.
const DefaultLoopInterval = time.Second

// Runtime owns the sandbox instances. *host.Manager implements it.
type Runtime interface {
	Current() *host.Instance
	Swap(ctx context.Context) (*host.Instance, error)
	Buffers() *entities.BufferRegistry
}

// Drainer hands over everything queued so far.
type Drainer[T any] interface {
	Drain() []T
}

// Disconnector closes the broker connection on exit.
type Disconnector interface {
	Disconnect()
}

// Config holds the values the loop reports and announces.
type Config struct {
	Topics          entities.Topics
	Version         string
	Broker          string
	BundlePath      string
	CompilerOptions entities.CompilerOptions
	LoopInterval    time.Duration
}

// Agent drives the current sandbox instance.
type Agent struct {
	runtime   Runtime
	broker    Disconnector
	commands  Drainer[string]
	inbound   Drainer[entities.InboundMessage]
	outbox    ports.Outbox
	clock     ports.Clock
	console   io.Writer
	logger    *slog.Logger
	cfg       Config
	connected atomic.Bool
	prompt    bool
}

// Option configures an Agent.
type Option func(*Agent)

// WithCommands sets the CLI command queue.
func WithCommands(q Drainer[string]) Option {
	return func(a *Agent) { a.commands = q }
}

// WithInbound sets the queue of classified broker events.
func WithInbound(q Drainer[entities.InboundMessage]) Option {
	return func(a *Agent) { a.inbound = q }
}

// WithOutbox sets where hello messages are queued for publishing.
func WithOutbox(o ports.Outbox) Option {
	return func(a *Agent) { a.outbox = o }
}

// WithBroker sets the connection closed by the exit command.
func WithBroker(b Disconnector) Option {
	return func(a *Agent) { a.broker = b }
}

// WithClock overrides the clock used for tick timestamps.
func WithClock(c ports.Clock) Option {
	return func(a *Agent) { a.clock = c }
}

// WithConsole sets where CLI output is printed.
func WithConsole(w io.Writer) Option {
	return func(a *Agent) { a.console = w }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithPrompt sets whether the prompt is printed again after a command's
// output. It is on by default.
func WithPrompt(show bool) Option {
	return func(a *Agent) { a.prompt = show }
}

// New creates an agent around runtime.
func New(cfg Config, runtime Runtime, opts ...Option) (*Agent, error) {
	if runtime == nil {
		return nil, fmt.Errorf("runtime is required")
	}
	a := &Agent{
		cfg:     cfg,
		runtime: runtime,
		clock:   hostfuncs.SystemClock{},
		console: io.Discard,
		logger:  slog.Default(),
		prompt:  true,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.commands == nil || a.inbound == nil {
		return nil, fmt.Errorf("command and inbound queues are required")
	}
	if a.outbox == nil {
		return nil, fmt.Errorf("outbox is required")
	}
	if a.cfg.LoopInterval <= 0 {
		a.cfg.LoopInterval = DefaultLoopInterval
	}
	a.logger = a.logger.With("component", "agent")
	return a, nil
}

// Connected reports the last broker connectivity the loop observed.
func (a *Agent) Connected() bool {
	return a.connected.Load()
}

// Run ticks until ctx is done or a step fails. It returns an
// *errors.ExitError after the exit command and an *errors.FatalError when
// the sandbox can no longer run.
func (a *Agent) Run(ctx context.Context) error {
	for {
		if err := a.Step(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(a.cfg.LoopInterval):
		}
	}
}

// Step runs one iteration without sleeping: CLI commands, then broker
// events, then one tick of the sandbox.
func (a *Agent) Step(ctx context.Context) error {
	for _, line := range a.commands.Drain() {
		if err := a.command(ctx, line); err != nil {
			return err
		}
	}
	for _, msg := range a.inbound.Drain() {
		if err := a.dispatch(ctx, msg); err != nil {
			return err
		}
	}
	return a.tick(ctx)
}

func (a *Agent) tick(ctx context.Context) error {
	inst := a.runtime.Current()
	if inst == nil || inst.Entry() == nil {
		return nil
	}
	status, err := inst.Entry().Loop(ctx, a.clock.NowMillis())
	return a.check(ctx, host.ExportLoop, status, err)
}

func (a *Agent) dispatch(ctx context.Context, msg entities.InboundMessage) error {
	a.logger.DebugContext(ctx, "inbound message", "kind", msg.Kind)
	switch msg.Kind {
	case entities.ModuleUpdateAvailable:
		return a.reload(ctx)
	case entities.BrokerConnected:
		a.connected.Store(true)
		a.hello(ctx)
		return a.setConnectionStatus(ctx, true)
	case entities.BrokerDisconnected:
		a.connected.Store(false)
		return a.setConnectionStatus(ctx, false)
	case entities.CommandReceived:
		return a.deliver(ctx, a.cfg.Topics.Command(), msg.Payload)
	case entities.VirtualButtonReceived:
		return a.deliver(ctx, a.cfg.Topics.VirtualButton(), msg.Payload)
	default:
		a.logger.WarnContext(ctx, "unknown inbound message", "kind", msg.Kind)
		return nil
	}
}

func (a *Agent) reload(ctx context.Context) error {
	a.logger.InfoContext(ctx, "updating bundle")
	inst, err := a.runtime.Swap(ctx)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "bundle updated", "bundle", inst.BundleID())
	a.hello(ctx)
	if a.connected.Load() {
		return a.setConnectionStatus(ctx, true)
	}
	return nil
}

func (a *Agent) setConnectionStatus(ctx context.Context, connected bool) error {
	inst := a.provisioned()
	if inst == nil {
		return nil
	}
	status, err := inst.Entry().SetConnectionStatus(ctx, connected)
	return a.check(ctx, host.ExportSetConnectionStatus, status, err)
}

func (a *Agent) deliver(ctx context.Context, topic, payload string) error {
	inst := a.provisioned()
	if inst == nil {
		a.logger.WarnContext(ctx, "messages are not supported yet, no bundle loaded", "topic", topic)
		return nil
	}
	topicLen, payloadLen, err := a.encode(inst, topic, payload)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to pass message to bundle", "topic", topic, "error", err)
		return nil
	}
	status, err := inst.Entry().MessageReceived(ctx, topicLen, payloadLen)
	return a.check(ctx, host.ExportMessageReceived, status, err)
}

// provisioned returns the current instance, or nil while it is
// unprovisioned. Only provisioned bundles see messages, direct triggers and
// connectivity changes.
func (a *Agent) provisioned() *host.Instance {
	inst := a.runtime.Current()
	if inst == nil || inst.Unprovisioned() || inst.Entry() == nil {
		return nil
	}
	return inst
}

func (a *Agent) hello(ctx context.Context) {
	bundleID := entities.DefaultBundleID
	if inst := a.runtime.Current(); inst != nil {
		bundleID = inst.BundleID()
	}
	raw, err := entities.NewHello(a.cfg.Version, bundleID, a.cfg.CompilerOptions).Marshal()
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to build hello", "error", err)
		return
	}
	a.outbox.Push(entities.OutboundPublishRequest{
		Topic:   a.cfg.Topics.Hello(),
		Payload: raw,
		QoS:     entities.AtLeastOnce,
	})
}

// check logs a failed or non-zero sandbox call. Only fatal errors stop the
// loop.
func (a *Agent) check(ctx context.Context, entry string, status int32, err error) error {
	if err != nil {
		if errors.IsFatal(err) {
			return err
		}
		a.logger.ErrorContext(ctx, "bundle call failed", "entry", entry, "error", err)
		return nil
	}
	if status != 0 {
		a.logger.WarnContext(ctx, "bundle returned error code", "entry", entry, "status", status)
	}
	return nil
}
