// Package wazero provides adapters for registering host functions with the wazero runtime.
package wazero

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/edge-agent/hostfuncs"
	"github.com/tetratelabs/wabin/binary"
	"github.com/tetratelabs/wabin/wasm"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Module and export names shared by the host and every guest.
const (
	HostModuleName = "eea_host"
	ShimModuleName = "env"
	MemoryName     = "memory"
)

// DefaultMemoryPages is the initial size of the shared memory.
const DefaultMemoryPages = 5

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// MemoryPages is the initial size of the shared memory in 64KiB pages.
	MemoryPages uint32
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithMemoryPages sets the initial size of the shared memory.
func WithMemoryPages(pages uint32) AdapterOption {
	return func(c *AdapterConfig) {
		if pages > 0 {
			c.MemoryPages = pages
		}
	}
}

func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{MemoryPages: DefaultMemoryPages}
}

// RegisterWithRuntime registers every function in registry with runtime and
// creates the host-owned linear memory guests must import.
//
// Two modules are instantiated:
//   - a Go host module "eea_host" exporting each function with i32
//     parameters and one i32 result, bound to env
//   - a generated shim module "env" that re-exports those functions and
//     defines and exports the shared memory
//
// The returned memory is the one guests import as env.memory. The caller
// usually wraps it in a bridge.Memory and stores it in env.Memory before
// running guest code.
//
// A handler error aborts the guest call: the error is raised as a panic,
// which wazero converts into an error returned from the guest's Call.
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, registry *hostfuncs.Registry, env *hostfuncs.Env, opts ...AdapterOption) (api.Memory, error) {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	builder := runtime.NewHostModuleBuilder(HostModuleName)
	shim := &wasm.Module{MemorySection: &wasm.Memory{Min: cfg.MemoryPages}}

	for _, name := range registry.Names() {
		fn, _ := registry.Lookup(name)
		funcName := name // capture for closure
		params := make([]api.ValueType, fn.Params)
		for i := range params {
			params[i] = api.ValueTypeI32
		}
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
				handleRegistryCall(ctx, stack, registry, env, funcName, len(params))
			}), params, []api.ValueType{api.ValueTypeI32}).
			Export(funcName)

		reexport(shim, funcName, params)
	}

	if _, err := builder.Instantiate(ctx); err != nil {
		return nil, fmt.Errorf("instantiating host module %q: %w", HostModuleName, err)
	}

	shim.ExportSection = append(shim.ExportSection, &wasm.Export{Type: wasm.ExternTypeMemory, Name: MemoryName, Index: 0})
	mod, err := runtime.InstantiateWithConfig(ctx, binary.EncodeModule(shim), wazero.NewModuleConfig().WithName(ShimModuleName))
	if err != nil {
		return nil, fmt.Errorf("instantiating shim module %q: %w", ShimModuleName, err)
	}

	mem := mod.ExportedMemory(MemoryName)
	if mem == nil {
		return nil, fmt.Errorf("shim module %q does not export %q", ShimModuleName, MemoryName)
	}
	return mem, nil
}

// reexport adds an import of name from the host module to shim and exports
// it again under the same name. Imported functions take the lowest indices,
// so the import's position is its function index.
func reexport(shim *wasm.Module, name string, params []api.ValueType) {
	typeIdx := uint32(len(shim.TypeSection))
	for i, t := range shim.TypeSection {
		if t.EqualsSignature(params, []api.ValueType{api.ValueTypeI32}) {
			typeIdx = uint32(i)
			break
		}
	}
	if typeIdx == uint32(len(shim.TypeSection)) {
		shim.TypeSection = append(shim.TypeSection, &wasm.FunctionType{Params: params, Results: []api.ValueType{api.ValueTypeI32}})
	}

	idx := uint32(len(shim.ImportSection))
	shim.ImportSection = append(shim.ImportSection, &wasm.Import{
		Type:     wasm.ExternTypeFunc,
		Module:   HostModuleName,
		Name:     name,
		DescFunc: typeIdx,
	})
	shim.ExportSection = append(shim.ExportSection, &wasm.Export{Type: wasm.ExternTypeFunc, Name: name, Index: idx})
}

// handleRegistryCall handles a host function call from WASM.
func handleRegistryCall(ctx context.Context, stack []uint64, registry *hostfuncs.Registry, env *hostfuncs.Env, name string, nparams int) {
	args := make([]uint32, nparams)
	for i := range args {
		args[i] = api.DecodeU32(stack[i])
	}

	status, err := registry.Invoke(ctx, name, env, args)
	if err != nil {
		slog.DebugContext(ctx, "wazero: host function trapped", "function", name, "bundle", BundleIDFromContext(ctx), "error", err)
		panic(err)
	}

	stack[0] = api.EncodeI32(status)
}
