// Package param discovers the controls of a sandboxed DSP module and exposes
// them as host parameters.
//
// ParseMetadata turns the Faust JSON description embedded in a module's
// memory into Descriptors. A Registry owns one Parameter per descriptor,
// stores host values normalized to [0, 1] in atomic words, and pushes plain
// values into the module with Sync. Control goroutines may write parameters
// at any time; Sync runs on the audio goroutine.
package param
