package host

import (
	"context"

	"github.com/reglet-dev/edge-agent/bridge"
	"github.com/reglet-dev/edge-agent/domain/entities"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Instance is one loaded bundle: its runtime, module, memory and entry
// points. Closing it releases all of them.
type Instance struct {
	runtime  wazero.Runtime
	module   api.Module
	memory   *bridge.Memory
	entry    *EntryPoints
	name     string
	bundleID string
}

// BundleID returns the identifier the bundle reported, or
// entities.DefaultBundleID for the unprovisioned instance.
func (i *Instance) BundleID() string {
	return i.bundleID
}

// Name returns the sandbox module name of this instance.
func (i *Instance) Name() string {
	return i.name
}

// Unprovisioned reports whether the bundle carries the default bundle id,
// meaning no real bundle has been delivered yet.
func (i *Instance) Unprovisioned() bool {
	return i.bundleID == entities.DefaultBundleID
}

// Memory returns the host view of the instance's linear memory.
func (i *Instance) Memory() *bridge.Memory {
	return i.memory
}

// Entry returns the instance's entry points. It is nil while unprovisioned.
func (i *Instance) Entry() *EntryPoints {
	return i.entry
}

// Shutdown calls the bundle's shutdown entry point. The unprovisioned
// instance has nothing to shut down and reports success.
func (i *Instance) Shutdown(ctx context.Context) (int32, error) {
	if i.entry == nil {
		return 0, nil
	}
	return i.entry.Shutdown(ctx)
}

// Close releases the instance's runtime.
func (i *Instance) Close(ctx context.Context) error {
	if i.runtime == nil {
		return nil
	}
	return i.runtime.Close(ctx)
}
