package sandbox

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	sampleBytes = 4
	pointerSize = 4
	alignment   = 16

	// DefaultArenaBase is used when the module does not report its DSP
	// struct size.
	DefaultArenaBase = 1024
)

// Layout places one block of audio in module memory: input buffers, output
// buffers, then the input and output pointer tables. Offsets are byte
// addresses.
type Layout struct {
	Frames   int
	Inputs   int
	Outputs  int
	InBuf    uint32
	OutBuf   uint32
	InTable  uint32
	OutTable uint32
	End      uint32
}

// PlanLayout computes the layout for frames samples per channel starting at
// base. It fails with ErrResourceExhausted when the regions would not be
// addressable or would end past capacity.
func PlanLayout(base uint32, inputs, outputs, frames int, capacity uint32) (Layout, error) {
	if inputs < 0 || outputs < 0 || frames < 0 {
		return Layout{}, fmt.Errorf("sandbox: invalid layout request: %d in, %d out, %d frames", inputs, outputs, frames)
	}

	off := uint64(alignUp(base))
	l := Layout{Frames: frames, Inputs: inputs, Outputs: outputs}

	l.InBuf = uint32(min(off, math.MaxUint32))
	off += uint64(inputs) * uint64(frames) * sampleBytes
	off = alignUp64(off)

	l.OutBuf = uint32(min(off, math.MaxUint32))
	off += uint64(outputs) * uint64(frames) * sampleBytes
	off = alignUp64(off)

	l.InTable = uint32(min(off, math.MaxUint32))
	off += uint64(inputs) * pointerSize

	l.OutTable = uint32(min(off, math.MaxUint32))
	off += uint64(outputs) * pointerSize

	if off > uint64(capacity) {
		return Layout{}, fmt.Errorf("%w: %d frames need %d bytes, memory holds %d", ErrResourceExhausted, frames, off, capacity)
	}
	l.End = uint32(off)
	return l, nil
}

// InChannel returns the address of input channel c.
func (l Layout) InChannel(c int) uint32 {
	return l.InBuf + uint32(c*l.Frames*sampleBytes)
}

// OutChannel returns the address of output channel c.
func (l Layout) OutChannel(c int) uint32 {
	return l.OutBuf + uint32(c*l.Frames*sampleBytes)
}

func alignUp(v uint32) uint32 {
	return uint32(alignUp64(uint64(v)))
}

func alignUp64(v uint64) uint64 {
	return (v + alignment - 1) &^ (alignment - 1)
}

// arena is a bounds-checked view of module memory. The view is only valid
// until the memory grows, so it is rebuilt for every block.
type arena struct {
	mem []byte
}

func (a arena) span(off uint32, n int) ([]byte, error) {
	end := uint64(off) + uint64(n)
	if n < 0 || end > uint64(len(a.mem)) {
		return nil, ErrResourceExhausted
	}
	return a.mem[off:end], nil
}

// putSamples stores src as little-endian float32 at off.
func (a arena) putSamples(off uint32, src []float64) error {
	b, err := a.span(off, len(src)*sampleBytes)
	if err != nil {
		return err
	}
	for i, v := range src {
		binary.LittleEndian.PutUint32(b[i*sampleBytes:], math.Float32bits(float32(v)))
	}
	return nil
}

// zeroSamples clears n samples at off.
func (a arena) zeroSamples(off uint32, n int) error {
	b, err := a.span(off, n*sampleBytes)
	if err != nil {
		return err
	}
	clear(b)
	return nil
}

// getSamples loads len(dst) float32 samples from off.
func (a arena) getSamples(dst []float64, off uint32) error {
	b, err := a.span(off, len(dst)*sampleBytes)
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*sampleBytes:])))
	}
	return nil
}

func (a arena) putPointer(off, ptr uint32) error {
	b, err := a.span(off, pointerSize)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, ptr)
	return nil
}

func (a arena) pointer(off uint32) (uint32, error) {
	b, err := a.span(off, pointerSize)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}
