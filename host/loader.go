package host

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/reglet-dev/edge-agent/domain/errors"
	"github.com/tetratelabs/wazero"
)

// Custom sections a bundle may carry.
const (
	sectionBundleID         = "bundleIdentifier"
	sectionInterfaceVersion = "interfaceVersion"

	// SupportedInterfaceVersion is the only bundle interface this host speaks.
	SupportedInterfaceVersion = "1.0.0"
)

// readBundle returns the bundle bytes, decompressed when a decompressor is
// configured. ok is false when no bundle file exists.
func (m *Manager) readBundle() (data []byte, ok bool, err error) {
	raw, err := os.ReadFile(m.bundlePath)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &errors.BundleError{Step: "read", Path: m.bundlePath, Err: err}
	}
	if m.decompressor == nil {
		return raw, true, nil
	}
	out, err := m.decompressor.Decompress(raw)
	if err != nil {
		return nil, false, &errors.BundleError{Step: "decompress", Path: m.bundlePath, Err: err}
	}
	return out, true, nil
}

// inspect checks a compiled bundle before it is instantiated: it must import
// the host-owned memory and, when it declares an interface version, speak
// the supported one.
func inspect(compiled wazero.CompiledModule, memoryModule, memoryName string) error {
	if len(compiled.ExportedMemories()) > 0 {
		return errors.ErrMemoryNotImported
	}
	imported := false
	for _, def := range compiled.ImportedMemories() {
		if mod, name, ok := def.Import(); ok && mod == memoryModule && name == memoryName {
			imported = true
		}
	}
	if !imported {
		return errors.ErrMemoryNotImported
	}

	if v, ok := customSection(compiled, sectionInterfaceVersion); ok && string(v) != SupportedInterfaceVersion {
		return fmt.Errorf("unsupported bundle interface version %q, want %q", v, SupportedInterfaceVersion)
	}
	return nil
}

func customSection(compiled wazero.CompiledModule, name string) ([]byte, bool) {
	for _, s := range compiled.CustomSections() {
		if s.Name() == name {
			return s.Data(), true
		}
	}
	return nil, false
}

func compile(ctx context.Context, rt wazero.Runtime, data []byte, path string) (wazero.CompiledModule, error) {
	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		return nil, &errors.BundleError{Step: "compile", Path: path, Err: err}
	}
	return compiled, nil
}
