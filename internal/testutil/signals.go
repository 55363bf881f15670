package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// DeterministicSine32 is DeterministicSine rendered as host float32 samples.
func DeterministicSine32(freqHz, sampleRate, amplitude float64, length int) []float32 {
	src := DeterministicSine(freqHz, sampleRate, amplitude, length)
	out := make([]float32, length)
	for i, v := range src {
		out[i] = float32(v)
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Planar allocates channels x length float32 host buffers.
func Planar(channels, length int) [][]float32 {
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, length)
	}
	return out
}
