package tone

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-fxhost/dsp/core"
	"github.com/cwbudde/algo-fxhost/dsp/window"
)

// ErrTooShort is returned when a signal holds too few samples to analyze.
var ErrTooShort = errors.New("tone: signal too short")

const minAnalysisLen = 8

// DominantFrequency returns the frequency of the strongest spectral peak of
// x, excluding DC. The signal is Hann-windowed and zero-padded to the next
// power of two; the peak bin is refined by parabolic interpolation on the
// log power of its neighbors.
func DominantFrequency(x []float64, sampleRate float64) (float64, error) {
	if len(x) < minAnalysisLen {
		return 0, fmt.Errorf("%w: %d samples", ErrTooShort, len(x))
	}
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return 0, fmt.Errorf("tone: sample rate must be positive and finite: %f", sampleRate)
	}

	coeffs, err := window.Hann(len(x))
	if err != nil {
		return 0, fmt.Errorf("tone: %w", err)
	}
	windowed := make([]float64, len(x))
	copy(windowed, x)
	if err := window.ApplyCoefficientsInPlace(windowed, coeffs); err != nil {
		return 0, fmt.Errorf("tone: %w", err)
	}

	fftSize := nextPow2(len(x))
	in := make([]complex128, fftSize)
	for i, v := range windowed {
		in[i] = complex(v, 0)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return 0, fmt.Errorf("tone: fft plan: %w", err)
	}

	out := make([]complex128, fftSize)
	if err := plan.Forward(out, in); err != nil {
		return 0, fmt.Errorf("tone: forward fft: %w", err)
	}

	half := fftSize/2 + 1
	re := make([]float64, half)
	im := make([]float64, half)
	for k := range half {
		re[k] = real(out[k])
		im[k] = imag(out[k])
	}
	power := make([]float64, half)
	vecmath.Power(power, re, im)

	peak := 1
	for k := 2; k < half; k++ {
		if power[k] > power[peak] {
			peak = k
		}
	}

	bin := float64(peak)
	if peak > 1 && peak < half-1 {
		a := math.Log(power[peak-1] + 1e-300)
		b := math.Log(power[peak] + 1e-300)
		c := math.Log(power[peak+1] + 1e-300)
		if den := a - 2*b + c; math.Abs(den) > 1e-12 {
			bin += 0.5 * (a - c) / den
		}
	}

	return bin * sampleRate / float64(fftSize), nil
}

// AutocorrelationFrequency estimates the fundamental of x by picking the lag
// with the highest normalized autocorrelation within [sampleRate/maxHz,
// sampleRate/minHz]. Returns 0 when the range is empty.
func AutocorrelationFrequency(x []float64, sampleRate, minHz, maxHz float64) float64 {
	if len(x) < minAnalysisLen || sampleRate <= 0 || minHz <= 0 || maxHz <= minHz {
		return 0
	}

	lagMin := max(int(math.Floor(sampleRate/maxHz)), 1)
	lagMax := int(math.Ceil(sampleRate / minHz))
	if lagMax >= len(x)-2 {
		lagMax = len(x) - 2
	}
	if lagMax <= lagMin {
		return 0
	}

	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))

	centered := make([]float64, len(x))
	for i, v := range x {
		centered[i] = v - mean
	}

	bestLag := lagMin
	bestScore := math.Inf(-1)
	for lag := lagMin; lag <= lagMax; lag++ {
		if score := normalizedAutocorrelation(centered, lag); score > bestScore {
			bestScore = score
			bestLag = lag
		}
	}

	lag := float64(bestLag)
	if bestLag > lagMin && bestLag < lagMax {
		s0 := normalizedAutocorrelation(centered, bestLag-1)
		s1 := normalizedAutocorrelation(centered, bestLag)
		s2 := normalizedAutocorrelation(centered, bestLag+1)
		if den := s0 - 2*s1 + s2; math.Abs(den) > 1e-12 {
			lag += 0.5 * (s0 - s2) / den
		}
	}

	if lag <= 0 {
		return 0
	}
	return sampleRate / lag
}

// ResidualDB returns 10*log10(sum((got-want)^2) / sum(want^2)).
// Identical signals yield -Inf.
func ResidualDB(got, want []float64) (float64, error) {
	if len(got) != len(want) {
		return 0, fmt.Errorf("tone: length mismatch: %d vs %d", len(got), len(want))
	}
	if len(want) == 0 {
		return 0, fmt.Errorf("%w: 0 samples", ErrTooShort)
	}

	var errEnergy, refEnergy float64
	for i := range want {
		d := got[i] - want[i]
		errEnergy += d * d
		refEnergy += want[i] * want[i]
	}
	if refEnergy == 0 {
		return 0, errors.New("tone: reference signal is silent")
	}

	return core.LinearPowerToDB(errEnergy / refEnergy), nil
}

func normalizedAutocorrelation(x []float64, lag int) float64 {
	var num, e0, e1 float64
	for i := 0; i+lag < len(x); i++ {
		a := x[i]
		b := x[i+lag]
		num += a * b
		e0 += a * a
		e1 += b * b
	}
	if e0 <= 0 || e1 <= 0 {
		return 0
	}
	return num / math.Sqrt(e0*e1)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
