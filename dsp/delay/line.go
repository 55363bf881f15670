package delay

import (
	"fmt"
	"math"
)

// Line is a circular delay line whose capacity is a power of two, so the
// write cursor wraps with a mask instead of a modulo.
//
// Reads are expressed as delays behind the write cursor: delay 1 is the most
// recently written sample. Delays are clamped to [1, MaxDelay()], which keeps
// a read from ever seeing the slot that is about to be overwritten and from
// reaching back into data older than half the capacity.
type Line struct {
	buffer   []float64
	mask     int
	writePos int
	maxDelay int
}

// New returns a delay line with the given capacity.
// capacity must be a power of two >= 4.
func New(capacity int) (*Line, error) {
	if capacity < 4 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("delay capacity must be a power of two >= 4: %d", capacity)
	}
	return &Line{
		buffer:   make([]float64, capacity),
		mask:     capacity - 1,
		maxDelay: capacity/2 + 1,
	}, nil
}

// Len returns the capacity in samples.
func (d *Line) Len() int {
	return len(d.buffer)
}

// MaxDelay returns the largest delay Read will honor.
func (d *Line) MaxDelay() int {
	return d.maxDelay
}

// Cursor returns the current write position.
func (d *Line) Cursor() int {
	return d.writePos
}

// Write stores one sample at the cursor and advances it by one.
func (d *Line) Write(sample float64) {
	d.buffer[d.writePos] = sample
	d.writePos = (d.writePos + 1) & d.mask
}

// Read reads an integer delay in samples.
func (d *Line) Read(delay int) float64 {
	if delay < 1 {
		delay = 1
	} else if delay > d.maxDelay {
		delay = d.maxDelay
	}
	return d.buffer[(d.writePos-delay)&d.mask]
}

// ReadLinear reads a fractional delay, interpolating linearly between the
// two neighboring integer delays. Each integer index is clamped on its own.
func (d *Line) ReadLinear(delay float64) float64 {
	base := math.Floor(delay)
	frac := delay - base
	i := int(base)
	return d.Read(i)*(1-frac) + d.Read(i+1)*frac
}

// Reset clears line state.
func (d *Line) Reset() {
	for i := range d.buffer {
		d.buffer[i] = 0
	}
	d.writePos = 0
}
