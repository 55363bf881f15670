package core

import "testing"

func TestWidenZero(t *testing.T) {
	src := []float32{0.5, -0.25, 1}
	wide := make([]float64, 2)
	if n := Widen(wide, src); n != 2 {
		t.Fatalf("Widen copied %d, want 2", n)
	}
	if wide[0] != 0.5 || wide[1] != -0.25 {
		t.Fatalf("Widen = %v", wide)
	}

	Zero(wide)
	if wide[0] != 0 || wide[1] != 0 {
		t.Fatalf("Zero left %v", wide)
	}

	Zero32(src)
	for i, v := range src {
		if v != 0 {
			t.Fatalf("Zero32 left %v at %d", v, i)
		}
	}
}
