// Package source provides looping playback of a static sample buffer, the
// input of the effect chain when no live input exists.
package source

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-vecmath"
)

// ErrEmpty is returned for buffers without frames.
var ErrEmpty = errors.New("source: empty buffer")

// Cursor is a position into a buffer of fixed length. It advances by block
// size and wraps modulo the length.
type Cursor struct {
	pos    int
	length int
}

// NewCursor returns a cursor at 0 over length frames.
func NewCursor(length int) (Cursor, error) {
	if length <= 0 {
		return Cursor{}, fmt.Errorf("%w: length %d", ErrEmpty, length)
	}
	return Cursor{length: length}, nil
}

// Position returns the current frame index in [0, Len).
func (c Cursor) Position() int { return c.pos }

// Len returns the buffer length.
func (c Cursor) Len() int { return c.length }

// Advance moves the cursor n frames forward. Negative n moves backward.
func (c *Cursor) Advance(n int) {
	if c.length == 0 {
		return
	}
	c.pos = (c.pos + n%c.length + c.length) % c.length
}

// Seek places the cursor at frame pos modulo the length.
func (c *Cursor) Seek(pos int) {
	c.pos = 0
	c.Advance(pos)
}

// Loop plays a multichannel buffer forever as a mono stream.
type Loop struct {
	channels [][]float64
	cursor   Cursor
	gain     float64
}

// NewLoop wraps channels, which must share one non-zero length. The slices
// are retained, not copied.
func NewLoop(channels [][]float64) (*Loop, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("%w: no channels", ErrEmpty)
	}
	length := len(channels[0])
	for i, ch := range channels[1:] {
		if len(ch) != length {
			return nil, fmt.Errorf("source: channel %d has %d frames, channel 0 has %d", i+1, len(ch), length)
		}
	}

	cursor, err := NewCursor(length)
	if err != nil {
		return nil, err
	}
	return &Loop{
		channels: channels,
		cursor:   cursor,
		gain:     1 / float64(len(channels)),
	}, nil
}

// Len returns the loop length in frames.
func (l *Loop) Len() int { return l.cursor.Len() }

// NumChannels returns the number of source channels.
func (l *Loop) NumChannels() int { return len(l.channels) }

// Channel returns channel i of the underlying buffer.
func (l *Loop) Channel(i int) []float64 { return l.channels[i] }

// Position returns the cursor position.
func (l *Loop) Position() int { return l.cursor.Position() }

// Reset rewinds to frame 0.
func (l *Loop) Reset() { l.cursor.Seek(0) }

// Read fills dst with the channel average starting at the cursor, wrapping
// at the end of the buffer, and advances the cursor by len(dst). It does
// not allocate.
func (l *Loop) Read(dst []float64) {
	length := l.cursor.Len()
	pos := l.cursor.Position()

	for filled := 0; filled < len(dst); {
		n := min(len(dst)-filled, length-pos)
		seg := dst[filled : filled+n]

		copy(seg, l.channels[0][pos:pos+n])
		for _, ch := range l.channels[1:] {
			vecmath.AddBlockInPlace(seg, ch[pos:pos+n])
		}
		if len(l.channels) > 1 {
			vecmath.ScaleBlock(seg, seg, l.gain)
		}

		filled += n
		pos += n
		if pos == length {
			pos = 0
		}
	}

	l.cursor.Advance(len(dst))
}
