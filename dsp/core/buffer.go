package core

// Zero sets all values in buf to 0.
func Zero(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}

// Zero32 sets all values in buf to 0.
func Zero32(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}

// Widen copies float32 host samples into dst and returns the number copied.
func Widen(dst []float64, src []float32) int {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = float64(src[i])
	}
	return n
}
