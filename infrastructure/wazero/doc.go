// Package wazero adapts hostfuncs to the wazero WebAssembly runtime.
//
// It handles:
//
//   - Exporting every registered function as an i32 host function
//   - Generating the "env" shim module that owns the shared linear memory
//   - Turning handler errors into guest traps
//
// # Basic Usage
//
//	registry, err := hostfuncs.NewRegistry(
//	    hostfuncs.WithBundle(hostfuncs.AllBundles()),
//	)
//	if err != nil {
//	    return err
//	}
//
//	runtime := wazero.NewRuntime(ctx)
//	env := &hostfuncs.Env{Outbox: outbox, Buffers: buffers}
//	mem, err := wazeroadapter.RegisterWithRuntime(ctx, runtime, registry, env,
//	    wazeroadapter.WithMemoryPages(5),
//	)
//	env.Memory = bridge.NewMemory(mem)
//
// Guests then import their functions and memory from "env".
package wazero
