package main

import (
	"encoding/binary"
	"math"

	"github.com/cwbudde/algo-fxhost/engine"
)

const bytesPerSample = 4

// engineReader streams engine output as interleaved little-endian float32
// frames for an oto player. Buffers are sized once; Read does not
// allocate. Only the player goroutine calls Read.
type engineReader struct {
	engine   *engine.Engine
	channels int
	planar   [][]float32
	views    [][]float32
}

func newEngineReader(e *engine.Engine) *engineReader {
	channels := e.Channels()
	r := &engineReader{
		engine:   e,
		channels: channels,
		planar:   make([][]float32, channels),
		views:    make([][]float32, channels),
	}
	for ch := range r.planar {
		r.planar[ch] = make([]float32, e.BlockSize())
	}
	return r
}

// Read fills p with whole frames. It always reports at least one frame when
// p can hold one, so the player never sees EOF.
func (r *engineReader) Read(p []byte) (int, error) {
	frameBytes := r.channels * bytesPerSample
	frames := len(p) / frameBytes
	block := r.engine.BlockSize()

	written := 0
	for frames > 0 {
		n := min(frames, block)
		for ch := range r.views {
			r.views[ch] = r.planar[ch][:n]
		}
		r.engine.Process(r.views, nil)

		for i := 0; i < n; i++ {
			for ch := 0; ch < r.channels; ch++ {
				binary.LittleEndian.PutUint32(p[written:], math.Float32bits(r.views[ch][i]))
				written += bytesPerSample
			}
		}
		frames -= n
	}
	return written, nil
}
