package pitch

import "testing"

func BenchmarkDelayShifterProcess512(b *testing.B) {
	s, _ := NewDelayShifter()
	s.SetShift(7)

	buf := make([]float64, 512)
	for i := range buf {
		buf[i] = 0.25
	}

	b.ResetTimer()

	for range b.N {
		s.Process(buf)
	}
}

func BenchmarkDelayShifterProcess4096(b *testing.B) {
	s, _ := NewDelayShifter()
	s.SetShift(-7)
	s.SetWindow(4000)

	buf := make([]float64, 4096)
	for i := range buf {
		buf[i] = 0.25
	}

	b.ResetTimer()

	for range b.N {
		s.Process(buf)
	}
}
