package hostfuncs

import (
	"context"
	"fmt"
)

// Bundle is a pre-configured set of related host functions.
// Bundles allow registering multiple functions at once.
type Bundle interface {
	Functions() []Function
}

type staticBundle struct {
	functions []Function
}

func (b *staticBundle) Functions() []Function {
	return b.functions
}

// CoreBundle returns the host API every sandbox may import:
// eea_trace, eea_send_message, eea_get_time, eea_set_message_buffers,
// eea_sleep, eea_storage_save, eea_storage_read, eea_get_device_id.
func CoreBundle() Bundle {
	return &staticBundle{
		functions: []Function{
			{Name: FuncTrace, Params: 3, Handler: Trace},
			{Name: FuncSendMessage, Params: 5, Handler: SendMessage},
			{Name: FuncGetTime, Params: 1, Handler: GetTime},
			{Name: FuncSetMessageBuffers, Params: 4, Handler: SetMessageBuffers},
			{Name: FuncSleep, Params: 1, Handler: Sleep},
			{Name: FuncStorageSave, Params: 2, Handler: StorageSave},
			{Name: FuncStorageRead, Params: 3, Handler: StorageRead},
			{Name: FuncGetDeviceID, Params: 3, Handler: GetDeviceID},
		},
	}
}

// FuncTerminalPrint prints a guest string on the agent's console.
const FuncTerminalPrint = "eea_fn_terminal_print"

// TerminalBundle returns the registered functions available to workflows:
// eea_fn_terminal_print.
func TerminalBundle() Bundle {
	return &staticBundle{
		functions: []Function{
			{Name: FuncTerminalPrint, Params: 2, Handler: TerminalPrint},
		},
	}
}

// TerminalPrint writes a line to env.Console.
// Args: ptr, len.
func TerminalPrint(_ context.Context, env *Env, args []uint32) (int32, error) {
	msg, err := env.Memory.ReadString(args[0], args[1])
	if err != nil {
		return 0, err
	}
	if env.Console == nil {
		return 0, nil
	}
	if _, err := fmt.Fprintln(env.Console, msg); err != nil {
		return 0, err
	}
	return 0, nil
}

type compositeBundle struct {
	bundles []Bundle
}

func (b *compositeBundle) Functions() []Function {
	var result []Function
	for _, bundle := range b.bundles {
		result = append(result, bundle.Functions()...)
	}
	return result
}

// AllBundles returns a bundle containing all built-in host functions.
func AllBundles() Bundle {
	return &compositeBundle{
		bundles: []Bundle{
			CoreBundle(),
			TerminalBundle(),
		},
	}
}

// WithBundle registers all functions from a bundle.
func WithBundle(bundle Bundle) RegistryOption {
	return func(b *registryBuilder) {
		for _, fn := range bundle.Functions() {
			if err := b.add(fn); err != nil {
				b.errors = append(b.errors, err)
			}
		}
	}
}
