package wasmbin

import (
	"github.com/tetratelabs/wabin/leb128"
	"github.com/tetratelabs/wabin/wasm"
)

// I32Const encodes "i32.const v".
func I32Const(v int32) []byte {
	return append([]byte{wasm.OpcodeI32Const}, leb128.EncodeInt32(v)...)
}

// I64Const encodes "i64.const v".
func I64Const(v int64) []byte {
	return append([]byte{wasm.OpcodeI64Const}, leb128.EncodeInt64(v)...)
}

// LocalGet encodes "local.get idx".
func LocalGet(idx uint32) []byte {
	return append([]byte{wasm.OpcodeLocalGet}, leb128.EncodeUint32(idx)...)
}

// Call encodes "call idx".
func Call(idx uint32) []byte {
	return append([]byte{wasm.OpcodeCall}, leb128.EncodeUint32(idx)...)
}

// Drop encodes "drop".
func Drop() []byte {
	return []byte{wasm.OpcodeDrop}
}

// Unreachable encodes "unreachable".
func Unreachable() []byte {
	return []byte{wasm.OpcodeUnreachable}
}

// I32Store8 encodes "i32.store8 align=0 offset=0". The address and value must
// already be on the stack.
func I32Store8() []byte {
	return []byte{wasm.OpcodeI32Store8, 0x00, 0x00}
}

// I64Store encodes "i64.store align=0 offset=0".
func I64Store() []byte {
	return []byte{wasm.OpcodeI64Store, 0x00, 0x00}
}

// I32Load8U encodes "i32.load8_u align=0 offset=0".
func I32Load8U() []byte {
	return []byte{wasm.OpcodeI32Load8U, 0x00, 0x00}
}

// I32Add encodes "i32.add".
func I32Add() []byte {
	return []byte{wasm.OpcodeI32Add}
}
