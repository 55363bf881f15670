package core

import "math"

// SampleLimit is the largest magnitude a sandboxed module may hand back to
// the host. Anything beyond it, or non-finite, is replaced by silence.
const SampleLimit = 10.0

// Clamp limits value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// SafeSample returns x when it is finite and |x| <= SampleLimit, else 0.
// The second result reports whether a substitution happened.
func SafeSample(x float64) (float64, bool) {
	if x != x || x > SampleLimit || x < -SampleLimit {
		return 0, true
	}
	return x, false
}

// SemitonesToRatio converts a pitch offset in semitones to a frequency ratio.
func SemitonesToRatio(semitones float64) float64 {
	return math.Exp2(semitones / 12)
}

// LinearPowerToDB converts linear power to dB (10*log10 convention).
// Returns -Inf for zero and NaN for negative values.
func LinearPowerToDB(power float64) float64 {
	if power < 0 {
		return math.NaN()
	}

	if power == 0 {
		return math.Inf(-1)
	}

	return 10 * math.Log10(power)
}
