package pitch

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-fxhost/dsp/core"
	"github.com/cwbudde/algo-fxhost/dsp/delay"
)

const (
	// HistoryCapacity is the fixed delay-line size of every DelayShifter.
	HistoryCapacity = 1 << 17

	DefaultWindow    = 1000.0
	DefaultCrossfade = 10.0
	DefaultShift     = 0.0

	MinWindow    = 50.0
	MaxWindow    = 10000.0
	MinCrossfade = 1.0
	MaxCrossfade = 10000.0
	MinShift     = -12.0
	MaxShift     = 12.0
)

// DelayShifter is a mono, sample-by-sample pitch shifter built on a circular
// delay line read by two fractional taps one window apart.
//
// A phase accumulator sweeps the read delay through one window at a rate of
// 1 - ratio samples per sample. The near tap sits at the phase, the far tap a
// full window further back; when the phase wraps, the output has already
// been crossfaded onto the far tap, which hides the jump.
//
// Controls are latched once per Process call. A DelayShifter holds about
// 1 MiB of history and is not safe for concurrent use.
type DelayShifter struct {
	line *delay.Line

	window    float64
	crossfade float64
	shift     float64

	phase float64
}

// NewDelayShifter returns a shifter with default controls
// (window 1000, crossfade 10, shift 0).
func NewDelayShifter() (*DelayShifter, error) {
	line, err := delay.New(HistoryCapacity)
	if err != nil {
		return nil, fmt.Errorf("pitch: %w", err)
	}
	return &DelayShifter{
		line:      line,
		window:    DefaultWindow,
		crossfade: DefaultCrossfade,
		shift:     DefaultShift,
	}, nil
}

// Window returns the analysis window in samples.
func (s *DelayShifter) Window() float64 { return s.window }

// Crossfade returns the crossfade length in samples.
func (s *DelayShifter) Crossfade() float64 { return s.crossfade }

// Shift returns the pitch offset in semitones.
func (s *DelayShifter) Shift() float64 { return s.shift }

// Ratio returns the frequency ratio implied by Shift.
func (s *DelayShifter) Ratio() float64 { return core.SemitonesToRatio(s.shift) }

// Phase returns the current phase accumulator value.
func (s *DelayShifter) Phase() float64 { return s.phase }

// Latency returns the delay, in samples, of the unshifted signal path.
func (s *DelayShifter) Latency() int { return int(s.window) }

// SetWindow sets the window length, clamped to [MinWindow, MaxWindow].
// Non-finite values are ignored.
func (s *DelayShifter) SetWindow(samples float64) {
	if core.IsFinite(samples) {
		s.window = core.Clamp(samples, MinWindow, MaxWindow)
	}
}

// SetCrossfade sets the crossfade length, clamped to [MinCrossfade, MaxCrossfade].
// Non-finite values are ignored.
func (s *DelayShifter) SetCrossfade(samples float64) {
	if core.IsFinite(samples) {
		s.crossfade = core.Clamp(samples, MinCrossfade, MaxCrossfade)
	}
}

// SetShift sets the pitch offset, clamped to [MinShift, MaxShift].
// Non-finite values are ignored.
func (s *DelayShifter) SetShift(semitones float64) {
	if core.IsFinite(semitones) {
		s.shift = core.Clamp(semitones, MinShift, MaxShift)
	}
}

// Reset clears the history, the write cursor and the phase.
func (s *DelayShifter) Reset() {
	s.line.Reset()
	s.phase = 0
}

// Process pitch-shifts block in place.
func (s *DelayShifter) Process(block []float64) {
	w := s.window
	step := 1 - core.SemitonesToRatio(s.shift)
	invX := 1 / s.crossfade
	phase := s.phase

	for i, x := range block {
		phase = math.Mod(w+phase+step, w)
		if phase < 0 {
			phase += w
		}

		near := s.line.ReadLinear(phase)
		far := s.line.ReadLinear(phase + w)
		fade := math.Min(phase*invX, 1)

		s.line.Write(x)
		block[i] = near*fade + far*(1-fade)
	}

	s.phase = phase
}

// ProcessSample pitch-shifts a single sample.
func (s *DelayShifter) ProcessSample(x float64) float64 {
	buf := [1]float64{x}
	s.Process(buf[:])
	return buf[0]
}
