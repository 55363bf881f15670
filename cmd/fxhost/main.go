// Command fxhost runs audio through a sandboxed wasm DSP module and the
// native pitch shifter.
//
// Usage:
//
//	fxhost params --module ts9.wasm
//	fxhost render --module ts9.wasm --input guitar.wav --out out.wav
//	fxhost play   --module ts9.wasm --input guitar.wav --set wasm_drive=80
//
// Every flag can also come from a YAML/TOML/JSON file given with --config
// or from FXHOST_* environment variables (FXHOST_SAMPLE_RATE, FXHOST_MIX, ...).
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
