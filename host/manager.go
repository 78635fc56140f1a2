package host

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/reglet-dev/edge-agent/bridge"
	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/reglet-dev/edge-agent/domain/errors"
	"github.com/reglet-dev/edge-agent/domain/ports"
	"github.com/reglet-dev/edge-agent/hostfuncs"
	wazeroadapter "github.com/reglet-dev/edge-agent/infrastructure/wazero"
	"github.com/tetratelabs/wabin/binary"
	"github.com/tetratelabs/wabin/wasm"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Manager loads bundles and owns the current Instance.
type Manager struct {
	registry     *hostfuncs.Registry
	decompressor ports.Decompressor
	outbox       ports.Outbox
	storage      ports.FileStore
	clock        ports.Clock
	console      io.Writer
	logger       *slog.Logger
	buffers      *entities.BufferRegistry
	current      atomic.Pointer[Instance]
	bundlePath   string
	deviceID     string
	guest        GuestConfig
	memoryPages  uint32
	seq          atomic.Uint64
}

// NewManager creates a new manager with the given options.
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		memoryPages: wazeroadapter.DefaultMemoryPages,
		clock:       hostfuncs.SystemClock{},
		console:     io.Discard,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.registry == nil {
		reg, err := hostfuncs.NewRegistry(hostfuncs.WithBundle(hostfuncs.AllBundles()))
		if err != nil {
			return nil, fmt.Errorf("failed to create default registry: %w", err)
		}
		m.registry = reg
	}
	if m.bundlePath == "" {
		return nil, fmt.Errorf("bundle path is required")
	}
	if m.outbox == nil {
		return nil, fmt.Errorf("outbox is required")
	}
	if m.storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.buffers == nil {
		m.buffers = entities.NewBufferRegistry()
	}
	return m, nil
}

// Buffers returns the message buffer registration shared by every instance.
func (m *Manager) Buffers() *entities.BufferRegistry {
	return m.buffers
}

// Current returns the current instance, or nil before Start.
func (m *Manager) Current() *Instance {
	return m.current.Load()
}

// Start loads the initial instance and makes it current.
func (m *Manager) Start(ctx context.Context) (*Instance, error) {
	inst, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	m.current.Store(inst)
	return inst, nil
}

// Swap replaces the current instance with a freshly loaded one.
//
// The current instance is shut down first; a trap there is fatal and leaves
// it current. A non-zero shutdown status is logged and the swap proceeds.
// Once the old instance has shut down, a failure to load its replacement is
// also fatal since nothing is left running.
func (m *Manager) Swap(ctx context.Context) (*Instance, error) {
	old := m.Current()
	if old != nil {
		status, err := old.Shutdown(ctx)
		if err != nil {
			return nil, errors.Fatal(ExportShutdown, err)
		}
		if status != 0 {
			m.logger.WarnContext(ctx, "bundle shutdown returned non-zero status", "bundle", old.BundleID(), "status", status)
		}
	}

	next, err := m.Load(ctx)
	if err != nil {
		return nil, errors.Fatal("reload", err)
	}

	if old != nil {
		if err := old.Close(ctx); err != nil {
			m.logger.WarnContext(ctx, "failed to close previous instance", "bundle", old.BundleID(), "error", err)
		}
	}
	m.current.Store(next)
	m.logger.InfoContext(ctx, "bundle loaded", "bundle", next.BundleID(), "module", next.Name())
	return next, nil
}

// Close releases the current instance without calling its shutdown entry
// point.
func (m *Manager) Close(ctx context.Context) error {
	if inst := m.current.Swap(nil); inst != nil {
		return inst.Close(ctx)
	}
	return nil
}

// Load builds a new instance from the bundle file without touching the
// current one. A missing file yields the unprovisioned instance.
func (m *Manager) Load(ctx context.Context) (*Instance, error) {
	data, ok, err := m.readBundle()
	if err != nil {
		return nil, err
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCustomSections(true))
	inst, err := m.instantiate(ctx, rt, data, ok)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return inst, nil
}

func (m *Manager) instantiate(ctx context.Context, rt wazero.Runtime, data []byte, provisioned bool) (*Instance, error) {
	name := fmt.Sprintf("bundle-%d", m.seq.Add(1))

	env := &hostfuncs.Env{
		Outbox:   m.outbox,
		Buffers:  m.buffers,
		Storage:  m.storage,
		Clock:    m.clock,
		Logger:   m.logger.With("source", "guest", "module", name),
		Console:  m.console,
		DeviceID: m.deviceID,
	}

	if !provisioned {
		m.logger.WarnContext(ctx, "no bundle file detected, running unprovisioned", "path", m.bundlePath)
		return m.stub(ctx, rt, env, name)
	}

	compiled, err := compile(ctx, rt, data, m.bundlePath)
	if err != nil {
		return nil, err
	}
	if err := inspect(compiled, wazeroadapter.ShimModuleName, wazeroadapter.MemoryName); err != nil {
		return nil, &errors.BundleError{Step: "inspect", Path: m.bundlePath, Err: err}
	}

	mem, err := wazeroadapter.RegisterWithRuntime(ctx, rt, m.registry, env, wazeroadapter.WithMemoryPages(m.memoryPages))
	if err != nil {
		return nil, err
	}
	env.Memory = bridge.NewMemory(mem)

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name).WithStartFunctions())
	if err != nil {
		return nil, &errors.BundleError{Step: "instantiate", Path: m.bundlePath, Err: err}
	}

	if err := m.configure(ctx, mod); err != nil {
		return nil, err
	}

	initFn := mod.ExportedFunction(ExportInit)
	if initFn == nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrMissingExport, ExportInit)
	}
	res, err := initFn.Call(ctx)
	if err != nil {
		return nil, errors.Fatal(ExportInit, err)
	}
	if len(res) > 0 {
		if status := api.DecodeI32(res[0]); status != 0 {
			return nil, errors.Fatal(ExportInit, errors.Status(ExportInit, status))
		}
	}

	bundleID, err := m.bundleID(mod, compiled, env.Memory)
	if err != nil {
		return nil, err
	}

	entry, err := resolveEntryPoints(mod, bundleID)
	if err != nil {
		return nil, err
	}

	return &Instance{
		runtime:  rt,
		module:   mod,
		memory:   env.Memory,
		entry:    entry,
		name:     name,
		bundleID: bundleID,
	}, nil
}

// stub builds the unprovisioned instance: an empty module next to a fresh
// host-owned memory.
func (m *Manager) stub(ctx context.Context, rt wazero.Runtime, env *hostfuncs.Env, name string) (*Instance, error) {
	mem, err := wazeroadapter.RegisterWithRuntime(ctx, rt, m.registry, env, wazeroadapter.WithMemoryPages(m.memoryPages))
	if err != nil {
		return nil, err
	}
	env.Memory = bridge.NewMemory(mem)

	mod, err := rt.InstantiateWithConfig(ctx, binary.EncodeModule(&wasm.Module{}), wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, err
	}
	return &Instance{
		runtime:  rt,
		module:   mod,
		memory:   env.Memory,
		name:     name,
		bundleID: entities.DefaultBundleID,
	}, nil
}

// configure pushes GuestConfig into the bundle. The trace level, storage size
// and storage interval setters are required.
func (m *Manager) configure(ctx context.Context, mod api.Module) error {
	required := []struct {
		name  string
		value int32
	}{
		{ExportConfigTraceLevel, m.guest.TraceLevel},
		{ExportConfigStorageSize, m.guest.StorageSize},
		{ExportConfigStorageInterval, m.guest.StorageInterval},
	}
	for _, c := range required {
		fn := mod.ExportedFunction(c.name)
		if fn == nil {
			return fmt.Errorf("%w: %s", errors.ErrMissingExport, c.name)
		}
		if err := m.callConfig(ctx, fn, api.EncodeI32(c.value)); err != nil {
			return err
		}
	}

	if fn := mod.ExportedFunction(ExportConfigDebugEnabled); fn != nil {
		var flag int32
		if m.guest.DebugEnabled {
			flag = 1
		}
		if err := m.callConfig(ctx, fn, api.EncodeI32(flag)); err != nil {
			return err
		}
	}

	if fn := mod.ExportedFunction(ExportConfigBufferLengths); fn != nil &&
		m.guest.TopicBufferLength > 0 && m.guest.PayloadBufferLength > 0 {
		if err := m.callConfig(ctx, fn, api.EncodeI32(m.guest.TopicBufferLength), api.EncodeI32(m.guest.PayloadBufferLength)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) callConfig(ctx context.Context, fn api.Function, params ...uint64) error {
	name := fn.Definition().Name()
	res, err := fn.Call(ctx, params...)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if len(res) > 0 {
		if status := api.DecodeI32(res[0]); status != 0 {
			m.logger.WarnContext(ctx, "bundle rejected configuration", "export", name, "status", status)
		}
	}
	return nil
}

// bundleID reads the identifier through the BUNDLE_IDENTIFIER globals and
// falls back to the bundleIdentifier custom section.
func (m *Manager) bundleID(mod api.Module, compiled wazero.CompiledModule, mem *bridge.Memory) (string, error) {
	ptr := mod.ExportedGlobal(GlobalBundleID)
	lenPtr := mod.ExportedGlobal(GlobalBundleIDLength)
	if ptr != nil && lenPtr != nil {
		return bridge.DecodeBundleID(mem, api.DecodeU32(ptr.Get()), api.DecodeU32(lenPtr.Get()))
	}
	if id, ok := customSection(compiled, sectionBundleID); ok && len(id) > 0 {
		return string(id), nil
	}
	return "", fmt.Errorf("%w: %s", errors.ErrMissingExport, GlobalBundleID)
}
