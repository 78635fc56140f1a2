package testutil

import (
	"github.com/reglet-dev/edge-agent/bridge"
	"github.com/reglet-dev/edge-agent/internal/wasmbin"
)

// Memory layout of generated guests.
const (
	BundleIDAddr    = 0x400
	BundleIDLenAddr = 0x3f0
	CountersAddr    = 0x500
	ConnFlagAddr    = 0x580
	MsgLensAddr     = 0x581 // topic len, payload len
	DirectLensAddr  = 0x583 // id len, payload len
	ConfigAddr      = 0x590 // trace, size, interval, debug, topic len, payload len
	LoopTimeAddr    = 0x5a0
	TopicBufAddr    = 0x600
	PayloadBufAddr  = 0x700
	BufCap          = 0x100
	sendTopicAddr   = 0x900
	sendPayloadAddr = 0xa00
)

// counterIndex assigns each export a call counter byte at CountersAddr.
var counterIndex = map[string]uint32{
	"eea_init":                              0,
	"eea_loop":                              1,
	"eea_shutdown":                          2,
	"eea_set_connection_status":             3,
	"eea_message_received":                  4,
	"eea_direct_trigger":                    5,
	"eea_config_set_trace_level":            6,
	"eea_config_set_storage_size":           7,
	"eea_config_set_storage_interval":       8,
	"eea_config_set_debug_enabled":          9,
	"eea_config_set_message_buffer_lengths": 10,
}

// Message is a publish a guest performs on every tick.
type Message struct {
	Topic   string
	Payload string
	QoS     int32
}

// Guest describes a generated workflow bundle. Every export counts its calls
// in linear memory and records its arguments; see the layout constants.
type Guest struct {
	// Status maps an export name to the status it returns (default 0).
	Status map[string]int32
	// Send, when set, makes eea_loop call eea_send_message.
	Send *Message
	// BundleID is exposed through the BUNDLE_IDENTIFIER globals, or through
	// the bundleIdentifier custom section when IDInSection is set.
	BundleID         string
	InterfaceVersion string
	// Omit lists exports to leave out; Trap lists exports that trap.
	Omit        []string
	Trap        []string
	IDInSection bool
	// OwnMemory makes the guest define and export its memory instead of
	// importing env.memory.
	OwnMemory bool
	// RegisterBuffers makes eea_init register TopicBufAddr and
	// PayloadBufAddr as its message buffers.
	RegisterBuffers bool
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Build encodes the guest.
func (g Guest) Build() []byte {
	m := wasmbin.New()

	var setBuffers, sendMessage uint32
	if g.RegisterBuffers {
		setBuffers = m.ImportFunc("env", "eea_set_message_buffers", wasmbin.Sig(4))
	}
	if g.Send != nil {
		sendMessage = m.ImportFunc("env", "eea_send_message", wasmbin.Sig(5))
	}

	if g.OwnMemory {
		m.ExportMemory("memory", m.Memory(1))
	} else {
		m.ImportMemory("env", "memory", 1)
	}

	i64 := wasmbin.FuncType{Params: []wasmbin.ValType{wasmbin.I64}, Results: []wasmbin.ValType{wasmbin.I32}}

	g.export(m, "eea_init", wasmbin.Sig(0), g.initBody(setBuffers))
	g.export(m, "eea_loop", i64, g.loopBody(sendMessage))
	g.export(m, "eea_shutdown", wasmbin.Sig(0), nil)
	g.export(m, "eea_set_connection_status", wasmbin.Sig(1), storeArgs(ConnFlagAddr, 1))
	g.export(m, "eea_message_received", wasmbin.Sig(2), storeArgs(MsgLensAddr, 2))
	g.export(m, "eea_direct_trigger", wasmbin.Sig(2), storeArgs(DirectLensAddr, 2))
	g.export(m, "eea_config_set_trace_level", wasmbin.Sig(1), storeArgs(ConfigAddr, 1))
	g.export(m, "eea_config_set_storage_size", wasmbin.Sig(1), storeArgs(ConfigAddr+1, 1))
	g.export(m, "eea_config_set_storage_interval", wasmbin.Sig(1), storeArgs(ConfigAddr+2, 1))
	g.export(m, "eea_config_set_debug_enabled", wasmbin.Sig(1), storeArgs(ConfigAddr+3, 1))
	g.export(m, "eea_config_set_message_buffer_lengths", wasmbin.Sig(2), storeArgs(ConfigAddr+4, 2))

	if g.BundleID != "" {
		if g.IDInSection {
			m.Custom("bundleIdentifier", []byte(g.BundleID))
		} else {
			m.Data(BundleIDAddr, []byte(g.BundleID))
			m.Data(BundleIDLenAddr, []byte{byte(len(g.BundleID))})
			m.ExportGlobal("BUNDLE_IDENTIFIER", m.GlobalI32(BundleIDAddr))
			m.ExportGlobal("BUNDLE_IDENTIFIER_LENGTH", m.GlobalI32(BundleIDLenAddr))
		}
	}
	if g.Send != nil {
		m.Data(sendTopicAddr, []byte(g.Send.Topic))
		m.Data(sendPayloadAddr, []byte(g.Send.Payload))
	}
	if g.InterfaceVersion != "" {
		m.Custom("interfaceVersion", []byte(g.InterfaceVersion))
	}
	return m.Encode()
}

func (g Guest) export(m *wasmbin.Module, name string, ft wasmbin.FuncType, body [][]byte) {
	if contains(g.Omit, name) {
		return
	}
	code := [][]byte{increment(CountersAddr + counterIndex[name])}
	code = append(code, body...)
	if contains(g.Trap, name) {
		code = append(code, wasmbin.Unreachable())
	} else {
		code = append(code, wasmbin.I32Const(g.Status[name]))
	}
	m.ExportFunc(name, m.Func(ft, nil, code...))
}

func (g Guest) initBody(setBuffers uint32) [][]byte {
	if !g.RegisterBuffers {
		return nil
	}
	return [][]byte{
		wasmbin.I32Const(TopicBufAddr), wasmbin.I32Const(BufCap),
		wasmbin.I32Const(PayloadBufAddr), wasmbin.I32Const(BufCap),
		wasmbin.Call(setBuffers), wasmbin.Drop(),
	}
}

func (g Guest) loopBody(sendMessage uint32) [][]byte {
	body := [][]byte{wasmbin.I32Const(LoopTimeAddr), wasmbin.LocalGet(0), wasmbin.I64Store()}
	if g.Send != nil {
		body = append(body,
			wasmbin.I32Const(sendTopicAddr), wasmbin.I32Const(int32(len(g.Send.Topic))),
			wasmbin.I32Const(sendPayloadAddr), wasmbin.I32Const(int32(len(g.Send.Payload))),
			wasmbin.I32Const(g.Send.QoS),
			wasmbin.Call(sendMessage), wasmbin.Drop(),
		)
	}
	return body
}

// increment adds one to the byte at addr.
func increment(addr uint32) []byte {
	var b []byte
	b = append(b, wasmbin.I32Const(int32(addr))...)
	b = append(b, wasmbin.I32Const(int32(addr))...)
	b = append(b, wasmbin.I32Load8U()...)
	b = append(b, wasmbin.I32Const(1)...)
	b = append(b, wasmbin.I32Add()...)
	b = append(b, wasmbin.I32Store8()...)
	return b
}

// storeArgs stores the low byte of each of the first n params from addr on.
func storeArgs(addr uint32, n int) [][]byte {
	var out [][]byte
	for i := 0; i < n; i++ {
		out = append(out, wasmbin.I32Const(int32(addr)+int32(i)), wasmbin.LocalGet(uint32(i)), wasmbin.I32Store8())
	}
	return out
}

// Calls returns how many times export was called, as counted by the guest.
func Calls(mem *bridge.Memory, export string) int {
	idx, ok := counterIndex[export]
	if !ok {
		return -1
	}
	b, err := mem.ReadBytes(CountersAddr+idx, 1)
	if err != nil {
		return -1
	}
	return int(b[0])
}

// Byte returns the byte at addr, or -1 when addr is out of range.
func Byte(mem *bridge.Memory, addr uint32) int {
	b, err := mem.ReadBytes(addr, 1)
	if err != nil {
		return -1
	}
	return int(b[0])
}
