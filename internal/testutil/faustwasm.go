package testutil

import (
	"encoding/binary"
	"math"
)

// GainMetadata is the JSON embedded by GainModule. The DSP struct holds the
// level slider at byte 0, the mute checkbox at byte 4 and the sample rate at
// byte 8.
const GainMetadata = `{"name":"gain","size":16,"inputs":1,"outputs":1,"ui":[` +
	`{"type":"vgroup","label":"gain","items":[` +
	`{"type":"hslider","label":"level","address":"/gain/level","index":0,"init":1,"min":0,"max":100,"step":0.01},` +
	`{"type":"checkbox","label":"mute","address":"/gain/mute","index":4}` +
	`]}]}`

// Level and mute offsets inside the GainModule DSP struct.
const (
	GainLevelIndex = 0
	GainMuteIndex  = 4
	GainRateIndex  = 8
)

// FixtureOption customizes a generated module.
type FixtureOption func(*fixture)

type fixture struct {
	metadata  string
	noExports bool
	noEnv     bool
	trap      bool
}

// WithMetadata replaces the embedded JSON document.
func WithMetadata(doc string) FixtureOption {
	return func(f *fixture) { f.metadata = doc }
}

// WithoutExports emits a module that exports only its memory.
func WithoutExports() FixtureOption {
	return func(f *fixture) { f.noExports = true }
}

// WithoutEnvImport drops the env._fmodf import.
func WithoutEnvImport() FixtureOption {
	return func(f *fixture) { f.noEnv = true }
}

// WithTrappingCompute makes compute execute unreachable.
func WithTrappingCompute() FixtureOption {
	return func(f *fixture) { f.trap = true }
}

// GainModule assembles a minimal WebAssembly module following the Faust wasm
// ABI: it exports memory, init, compute, setParamValue, getParamValue,
// getNumInputs and getNumOutputs, imports env._fmodf, and carries its JSON
// metadata in a data segment at offset 0.
//
// compute writes out[i] = in[i] * level * (1 - mute). init stores level = 1,
// mute = 0 and the sample rate, overwriting the start of the metadata.
func GainModule(opts ...FixtureOption) []byte {
	f := fixture{metadata: GainMetadata}
	for _, opt := range opts {
		opt(&f)
	}

	const (
		i32 = 0x7f
		f32 = 0x7d
	)

	var out []byte
	out = append(out, 0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00)

	types := wasmVec(
		wasmFuncType([]byte{i32, i32}, nil),
		wasmFuncType([]byte{i32, i32, i32, i32}, nil),
		wasmFuncType([]byte{i32, i32, f32}, nil),
		wasmFuncType([]byte{i32, i32}, []byte{f32}),
		wasmFuncType([]byte{f32, f32}, []byte{f32}),
		wasmFuncType([]byte{i32}, []byte{i32}),
	)
	out = append(out, wasmSection(1, types)...)

	imported := uint32(0)
	if !f.noEnv {
		imp := cat(wasmName("env"), wasmName("_fmodf"), []byte{0x00}, uleb(4))
		out = append(out, wasmSection(2, wasmVec(imp))...)
		imported = 1
	}

	out = append(out, wasmSection(3, wasmVec(uleb(0), uleb(1), uleb(2), uleb(3), uleb(5), uleb(5)))...)
	out = append(out, wasmSection(5, wasmVec([]byte{0x00, 0x01}))...)

	exports := [][]byte{cat(wasmName("memory"), []byte{0x02}, uleb(0))}
	if !f.noExports {
		for i, name := range []string{"init", "compute", "setParamValue", "getParamValue", "getNumInputs", "getNumOutputs"} {
			exports = append(exports, cat(wasmName(name), []byte{0x00}, uleb(imported+uint32(i))))
		}
	}
	out = append(out, wasmSection(7, wasmVec(exports...))...)

	one := f32Bytes(1)
	zero := f32Bytes(0)

	initBody := wasmBody(nil, cat(
		[]byte{0x20, 0x00, 0x43}, one, []byte{0x38, 0x02, GainLevelIndex},
		[]byte{0x20, 0x00, 0x43}, zero, []byte{0x38, 0x02, GainMuteIndex},
		[]byte{0x20, 0x00, 0x20, 0x01, 0x36, 0x02, GainRateIndex},
		[]byte{0x0b},
	))

	computeBody := wasmBody([]byte{0x02, 0x03, i32, 0x01, f32}, cat(
		[]byte{0x20, 0x02, 0x28, 0x02, 0x00, 0x21, 0x05},
		[]byte{0x20, 0x03, 0x28, 0x02, 0x00, 0x21, 0x06},
		[]byte{0x20, 0x00, 0x2a, 0x02, GainLevelIndex},
		[]byte{0x43}, one,
		[]byte{0x20, 0x00, 0x2a, 0x02, GainMuteIndex},
		[]byte{0x93, 0x94, 0x21, 0x07},
		[]byte{0x02, 0x40, 0x03, 0x40},
		[]byte{0x20, 0x04, 0x20, 0x01, 0x4e, 0x0d, 0x01},
		[]byte{0x20, 0x06, 0x20, 0x04, 0x41, 0x02, 0x74, 0x6a},
		[]byte{0x20, 0x05, 0x20, 0x04, 0x41, 0x02, 0x74, 0x6a, 0x2a, 0x02, 0x00},
		[]byte{0x20, 0x07, 0x94, 0x38, 0x02, 0x00},
		[]byte{0x20, 0x04, 0x41, 0x01, 0x6a, 0x21, 0x04},
		[]byte{0x0c, 0x00, 0x0b, 0x0b, 0x0b},
	))

	if f.trap {
		computeBody = wasmBody(nil, []byte{0x00, 0x0b})
	}

	setBody := wasmBody(nil, []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x20, 0x02, 0x38, 0x02, 0x00, 0x0b})
	getBody := wasmBody(nil, []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x2a, 0x02, 0x00, 0x0b})
	numBody := wasmBody(nil, []byte{0x41, 0x01, 0x0b})

	out = append(out, wasmSection(10, wasmVec(initBody, computeBody, setBody, getBody, numBody, numBody))...)

	segment := cat([]byte{0x00, 0x41, 0x00, 0x0b}, uleb(uint32(len(f.metadata))), []byte(f.metadata))
	out = append(out, wasmSection(11, wasmVec(segment))...)

	return out
}

func wasmFuncType(params, results []byte) []byte {
	return cat([]byte{0x60}, uleb(uint32(len(params))), params, uleb(uint32(len(results))), results)
}

// wasmBody prefixes code with its locals declaration and size. A nil locals
// slice declares no locals.
func wasmBody(locals, code []byte) []byte {
	if locals == nil {
		locals = []byte{0x00}
	}
	content := cat(locals, code)
	return cat(uleb(uint32(len(content))), content)
}

func wasmSection(id byte, payload []byte) []byte {
	return cat([]byte{id}, uleb(uint32(len(payload))), payload)
}

func wasmVec(items ...[]byte) []byte {
	return cat(append([][]byte{uleb(uint32(len(items)))}, items...)...)
}

func wasmName(s string) []byte {
	return cat(uleb(uint32(len(s))), []byte(s))
}

func f32Bytes(v float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
