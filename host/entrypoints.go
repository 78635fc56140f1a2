package host

import (
	"context"
	"fmt"

	"github.com/reglet-dev/edge-agent/domain/errors"
	wazeroadapter "github.com/reglet-dev/edge-agent/infrastructure/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Entry point export names.
const (
	ExportInit                = "eea_init"
	ExportLoop                = "eea_loop"
	ExportShutdown            = "eea_shutdown"
	ExportSetConnectionStatus = "eea_set_connection_status"
	ExportMessageReceived     = "eea_message_received"
	ExportDirectTrigger       = "eea_direct_trigger"

	ExportConfigTraceLevel      = "eea_config_set_trace_level"
	ExportConfigStorageSize     = "eea_config_set_storage_size"
	ExportConfigStorageInterval = "eea_config_set_storage_interval"
	ExportConfigDebugEnabled    = "eea_config_set_debug_enabled"
	ExportConfigBufferLengths   = "eea_config_set_message_buffer_lengths"

	GlobalBundleID       = "BUNDLE_IDENTIFIER"
	GlobalBundleIDLength = "BUNDLE_IDENTIFIER_LENGTH"
)

// EntryPoints are the functions the agent calls on one bundle instance.
// A fresh set is resolved for every load and never outlives its instance.
type EntryPoints struct {
	loop                api.Function
	shutdown            api.Function
	setConnectionStatus api.Function
	messageReceived     api.Function
	directTrigger       api.Function
	bundleID            string
	// modules names the instance each entry point was resolved from, in
	// Modules order.
	modules []string
}

func resolveEntryPoints(mod api.Module, bundleID string) (*EntryPoints, error) {
	e := &EntryPoints{bundleID: bundleID}
	for _, ep := range []struct {
		name string
		dst  *api.Function
	}{
		{ExportLoop, &e.loop},
		{ExportShutdown, &e.shutdown},
		{ExportSetConnectionStatus, &e.setConnectionStatus},
		{ExportMessageReceived, &e.messageReceived},
		{ExportDirectTrigger, &e.directTrigger},
	} {
		fn := mod.ExportedFunction(ep.name)
		if fn == nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrMissingExport, ep.name)
		}
		*ep.dst = fn
		e.modules = append(e.modules, mod.Name())
	}
	return e, nil
}

func (e *EntryPoints) call(ctx context.Context, fn api.Function, params ...uint64) (int32, error) {
	res, err := fn.Call(wazeroadapter.WithBundleID(ctx, e.bundleID), params...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", fn.Definition().Name(), err)
	}
	if len(res) == 0 {
		return 0, nil
	}
	return api.DecodeI32(res[0]), nil
}

// Loop runs one tick with the current Unix time in milliseconds.
func (e *EntryPoints) Loop(ctx context.Context, nowMillis int64) (int32, error) {
	return e.call(ctx, e.loop, api.EncodeI64(nowMillis))
}

// Shutdown asks the bundle to stop.
func (e *EntryPoints) Shutdown(ctx context.Context) (int32, error) {
	return e.call(ctx, e.shutdown)
}

// SetConnectionStatus reports broker connectivity to the bundle.
func (e *EntryPoints) SetConnectionStatus(ctx context.Context, connected bool) (int32, error) {
	var flag int32
	if connected {
		flag = 1
	}
	return e.call(ctx, e.setConnectionStatus, api.EncodeI32(flag))
}

// MessageReceived tells the bundle a message sits in its message buffers.
func (e *EntryPoints) MessageReceived(ctx context.Context, topicLen, payloadLen uint32) (int32, error) {
	return e.call(ctx, e.messageReceived, api.EncodeU32(topicLen), api.EncodeU32(payloadLen))
}

// DirectTrigger fires a direct trigger whose id and payload sit in the
// bundle's message buffers.
func (e *EntryPoints) DirectTrigger(ctx context.Context, idLen, payloadLen uint32) (int32, error) {
	return e.call(ctx, e.directTrigger, api.EncodeU32(idLen), api.EncodeU32(payloadLen))
}

// Modules returns the name of the instance each entry point was resolved
// from, in the order loop, shutdown, set-connection-status,
// message-received, direct-trigger.
func (e *EntryPoints) Modules() []string {
	return append([]string(nil), e.modules...)
}
