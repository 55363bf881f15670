package pitch_test

import (
	"fmt"

	"github.com/cwbudde/algo-fxhost/dsp/effects/pitch"
)

func ExampleDelayShifter() {
	s, err := pitch.NewDelayShifter()
	if err != nil {
		panic(err)
	}

	s.SetShift(12)
	s.SetWindow(1000)

	buf := make([]float64, 256)
	buf[0] = 1
	s.Process(buf)

	fmt.Printf("Ratio: %.1f Latency: %d\n", s.Ratio(), s.Latency())
	// Output: Ratio: 2.0 Latency: 1000
}
