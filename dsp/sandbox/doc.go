// Package sandbox hosts DSP modules compiled to WebAssembly with the Faust
// wasm ABI.
//
// A Runtime wraps one wazero runtime and the env module of float math
// imports that Faust output links against. Runtime.Load instantiates a
// module, captures the JSON description it carries at offset 0 of its
// memory, and returns a Host. Hosts exchange audio with the module through
// a per-block Layout placed after the DSP struct; every access goes through
// a bounds-checked arena over the module memory.
//
// Host.Prepare is not real-time safe. Host.Compute, Host.SetParam and
// Host.GetParam do not allocate.
package sandbox
