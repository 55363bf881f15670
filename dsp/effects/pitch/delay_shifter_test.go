package pitch

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-fxhost/internal/testutil"
	"github.com/cwbudde/algo-fxhost/measure/tone"
)

const testSampleRate = 48000.0

func newShifter(t *testing.T) *DelayShifter {
	t.Helper()

	s, err := NewDelayShifter()
	if err != nil {
		t.Fatalf("NewDelayShifter() error = %v", err)
	}

	return s
}

func TestNewDelayShifterDefaults(t *testing.T) {
	s := newShifter(t)

	if s.Window() != DefaultWindow {
		t.Fatalf("Window() = %v, want %v", s.Window(), DefaultWindow)
	}
	if s.Crossfade() != DefaultCrossfade {
		t.Fatalf("Crossfade() = %v, want %v", s.Crossfade(), DefaultCrossfade)
	}
	if s.Shift() != DefaultShift {
		t.Fatalf("Shift() = %v, want %v", s.Shift(), DefaultShift)
	}
	if s.Ratio() != 1 {
		t.Fatalf("Ratio() = %v, want 1", s.Ratio())
	}
	if s.Latency() != int(DefaultWindow) {
		t.Fatalf("Latency() = %d, want %d", s.Latency(), int(DefaultWindow))
	}
}

func TestDelayShifterSettersClamp(t *testing.T) {
	tests := []struct {
		name string
		set  func(*DelayShifter, float64)
		get  func(*DelayShifter) float64
		in   float64
		want float64
	}{
		{name: "window low", set: (*DelayShifter).SetWindow, get: (*DelayShifter).Window, in: 1, want: MinWindow},
		{name: "window high", set: (*DelayShifter).SetWindow, get: (*DelayShifter).Window, in: 1e6, want: MaxWindow},
		{name: "window inside", set: (*DelayShifter).SetWindow, get: (*DelayShifter).Window, in: 2048, want: 2048},
		{name: "crossfade low", set: (*DelayShifter).SetCrossfade, get: (*DelayShifter).Crossfade, in: 0, want: MinCrossfade},
		{name: "crossfade high", set: (*DelayShifter).SetCrossfade, get: (*DelayShifter).Crossfade, in: 20000, want: MaxCrossfade},
		{name: "shift low", set: (*DelayShifter).SetShift, get: (*DelayShifter).Shift, in: -24, want: MinShift},
		{name: "shift high", set: (*DelayShifter).SetShift, get: (*DelayShifter).Shift, in: 13, want: MaxShift},
		{name: "shift inside", set: (*DelayShifter).SetShift, get: (*DelayShifter).Shift, in: 7, want: 7},
		{name: "window NaN ignored", set: (*DelayShifter).SetWindow, get: (*DelayShifter).Window, in: math.NaN(), want: DefaultWindow},
		{name: "shift Inf ignored", set: (*DelayShifter).SetShift, get: (*DelayShifter).Shift, in: math.Inf(1), want: DefaultShift},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newShifter(t)
			tt.set(s, tt.in)

			if got := tt.get(s); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDelayShifterZeroShiftIsPureDelay(t *testing.T) {
	for _, window := range []float64{50, 1000, 4096} {
		s := newShifter(t)
		s.SetWindow(window)
		s.SetShift(0)

		in := testutil.DeterministicNoise(7, 0.5, 16384)
		got := append([]float64(nil), in...)

		// Uneven blocks exercise control latching across calls.
		for start := 0; start < len(got); {
			end := min(start+333, len(got))
			s.Process(got[start:end])
			start = end
		}

		w := int(window)
		want := make([]float64, len(in))
		copy(want[w:], in[:len(in)-w])

		residual, err := tone.ResidualDB(got[w:], want[w:])
		if err != nil {
			t.Fatalf("ResidualDB() error = %v", err)
		}
		if residual > -40 {
			t.Fatalf("window %v: residual = %.1f dB, want <= -40 dB", window, residual)
		}
	}
}

func TestDelayShifterOctaveUp(t *testing.T) {
	s := newShifter(t)
	s.SetWindow(1000)
	s.SetCrossfade(10)
	s.SetShift(12)

	const settle = 4096

	buf := testutil.DeterministicSine(100, testSampleRate, 0.5, settle+16384)
	for start := 0; start < len(buf); start += 512 {
		s.Process(buf[start:min(start+512, len(buf))])
	}

	testutil.RequireFinite(t, buf)
	out := buf[settle:]

	peak, err := tone.DominantFrequency(out, testSampleRate)
	if err != nil {
		t.Fatalf("DominantFrequency() error = %v", err)
	}
	if math.Abs(peak-200) > 5 {
		t.Fatalf("FFT peak = %.2f Hz, want 200 +/- 5 Hz", peak)
	}

	acf := tone.AutocorrelationFrequency(out, testSampleRate, 150, 300)
	if math.Abs(acf-200) > 5 {
		t.Fatalf("autocorrelation estimate = %.2f Hz, want 200 +/- 5 Hz", acf)
	}
}

func TestDelayShifterOctaveDownLowersPitch(t *testing.T) {
	s := newShifter(t)
	s.SetShift(-12)

	const settle = 4096

	buf := testutil.DeterministicSine(400, testSampleRate, 0.5, settle+16384)
	s.Process(buf)

	peak, err := tone.DominantFrequency(buf[settle:], testSampleRate)
	if err != nil {
		t.Fatalf("DominantFrequency() error = %v", err)
	}
	if math.Abs(peak-200) > 10 {
		t.Fatalf("FFT peak = %.2f Hz, want about 200 Hz", peak)
	}
}

func TestDelayShifterPhaseStaysInWindow(t *testing.T) {
	for _, shift := range []float64{-12, -5, 0, 3, 12} {
		s := newShifter(t)
		s.SetWindow(MinWindow)
		s.SetShift(shift)

		buf := testutil.DeterministicNoise(3, 1, 4096)
		for i := range buf {
			s.ProcessSample(buf[i])
			if p := s.Phase(); p < 0 || p >= MinWindow {
				t.Fatalf("shift %v sample %d: phase %v outside [0, %v)", shift, i, p, MinWindow)
			}
		}
	}
}

func TestDelayShifterCrossfadeLongerThanWindow(t *testing.T) {
	s := newShifter(t)
	s.SetWindow(MinWindow)
	s.SetCrossfade(MaxCrossfade)
	s.SetShift(5)

	buf := testutil.DeterministicSine(440, testSampleRate, 1, 8192)
	s.Process(buf)

	testutil.RequireFinite(t, buf)
	for i, v := range buf {
		if math.Abs(v) > 1+1e-9 {
			t.Fatalf("sample %d = %v exceeds input peak", i, v)
		}
	}
}

func TestDelayShifterResetIsDeterministic(t *testing.T) {
	s := newShifter(t)
	s.SetShift(7)

	in := testutil.DeterministicNoise(11, 0.5, 4096)

	first := append([]float64(nil), in...)
	s.Process(first)

	s.Reset()
	if s.Phase() != 0 {
		t.Fatalf("Phase() after Reset = %v, want 0", s.Phase())
	}

	second := append([]float64(nil), in...)
	s.Process(second)

	testutil.RequireSliceNearlyEqual(t, second, first, 0)
}

func TestDelayShifterChannelsAreIndependent(t *testing.T) {
	left := newShifter(t)
	right := newShifter(t)
	left.SetShift(-12)
	right.SetShift(12)

	in := testutil.DeterministicSine(220, testSampleRate, 0.5, 2048)

	solo := newShifter(t)
	solo.SetShift(-12)
	want := append([]float64(nil), in...)
	solo.Process(want)

	l := append([]float64(nil), in...)
	r := append([]float64(nil), in...)
	for start := 0; start < len(in); start += 128 {
		left.Process(l[start : start+128])
		right.Process(r[start : start+128])
	}

	testutil.RequireSliceNearlyEqual(t, l, want, 1e-12)
}
