// Package wasmbin builds small WebAssembly modules for test fixtures on top
// of wabin's module model and binary encoder.
package wasmbin

import (
	"bytes"

	"github.com/tetratelabs/wabin/binary"
	"github.com/tetratelabs/wabin/leb128"
	"github.com/tetratelabs/wabin/wasm"
)

// ValType is a WebAssembly value type.
type ValType = wasm.ValueType

// Value types.
const (
	I32 = wasm.ValueTypeI32
	I64 = wasm.ValueTypeI64
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Sig is shorthand for a signature made only of i32 params returning one i32.
func Sig(params int) FuncType {
	ft := FuncType{Results: []ValType{I32}}
	for i := 0; i < params; i++ {
		ft.Params = append(ft.Params, I32)
	}
	return ft
}

// Module accumulates module contents. Imports must be declared before any
// function is defined so that function indices stay stable.
type Module struct {
	m             wasm.Module
	importedFuncs uint32
}

// New returns an empty module. Encoding it yields "(module)".
func New() *Module {
	return &Module{}
}

func (m *Module) typeIndex(ft FuncType) uint32 {
	for i, t := range m.m.TypeSection {
		if t.EqualsSignature(ft.Params, ft.Results) {
			return uint32(i)
		}
	}
	m.m.TypeSection = append(m.m.TypeSection, &wasm.FunctionType{Params: ft.Params, Results: ft.Results})
	return uint32(len(m.m.TypeSection) - 1)
}

// ImportFunc declares an imported function and returns its function index.
func (m *Module) ImportFunc(module, name string, ft FuncType) uint32 {
	if len(m.m.FunctionSection) > 0 {
		panic("wasmbin: imports must be declared before functions")
	}
	m.m.ImportSection = append(m.m.ImportSection, &wasm.Import{
		Type:     wasm.ExternTypeFunc,
		Module:   module,
		Name:     name,
		DescFunc: m.typeIndex(ft),
	})
	m.importedFuncs++
	return m.importedFuncs - 1
}

// ImportMemory declares an imported memory with the given minimum pages.
func (m *Module) ImportMemory(module, name string, minPages uint32) {
	m.m.ImportSection = append(m.m.ImportSection, &wasm.Import{
		Type:    wasm.ExternTypeMemory,
		Module:  module,
		Name:    name,
		DescMem: &wasm.Memory{Min: minPages},
	})
}

// Memory defines a memory owned by this module and returns its index.
func (m *Module) Memory(minPages uint32) uint32 {
	m.m.MemorySection = &wasm.Memory{Min: minPages}
	return 0
}

// Func defines a function and returns its function index. The closing end
// opcode is appended to body.
func (m *Module) Func(ft FuncType, locals []ValType, body ...[]byte) uint32 {
	m.m.FunctionSection = append(m.m.FunctionSection, m.typeIndex(ft))
	code := append(bytes.Join(body, nil), wasm.OpcodeEnd)
	m.m.CodeSection = append(m.m.CodeSection, &wasm.Code{LocalTypes: locals, Body: code})
	return m.importedFuncs + uint32(len(m.m.FunctionSection)) - 1
}

// GlobalI32 defines an immutable i32 global and returns its index.
func (m *Module) GlobalI32(v int32) uint32 {
	m.m.GlobalSection = append(m.m.GlobalSection, &wasm.Global{
		Type: &wasm.GlobalType{ValType: I32},
		Init: &wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: leb128.EncodeInt32(v)},
	})
	return uint32(len(m.m.GlobalSection) - 1)
}

func (m *Module) export(typ wasm.ExternType, name string, idx uint32) {
	m.m.ExportSection = append(m.m.ExportSection, &wasm.Export{Type: typ, Name: name, Index: idx})
}

// ExportFunc exports a function by index.
func (m *Module) ExportFunc(name string, idx uint32) {
	m.export(wasm.ExternTypeFunc, name, idx)
}

// ExportMemory exports the memory at idx.
func (m *Module) ExportMemory(name string, idx uint32) {
	m.export(wasm.ExternTypeMemory, name, idx)
}

// ExportGlobal exports a global by index.
func (m *Module) ExportGlobal(name string, idx uint32) {
	m.export(wasm.ExternTypeGlobal, name, idx)
}

// Data adds an active data segment for memory 0.
func (m *Module) Data(offset uint32, b []byte) {
	m.m.DataSection = append(m.m.DataSection, &wasm.DataSegment{
		OffsetExpression: &wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: leb128.EncodeInt32(int32(offset))},
		Init:             b,
	})
}

// Custom adds a custom section.
func (m *Module) Custom(name string, data []byte) {
	m.m.CustomSections = append(m.m.CustomSections, &wasm.CustomSection{Name: name, Data: data})
}

// Encode returns the binary module.
func (m *Module) Encode() []byte {
	return binary.EncodeModule(&m.m)
}
