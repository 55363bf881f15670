package source

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWAVRoundTrip(t *testing.T) {
	const frames = 480

	left := make([]float64, frames)
	right := make([]float64, frames)
	for i := range frames {
		left[i] = 0.5 * math.Sin(2*math.Pi*float64(i)/48)
		right[i] = -0.25
	}
	right[0] = 2 // clipped on write

	path := filepath.Join(t.TempDir(), "loop.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteWAV(f, 44100, [][]float64{left, right}))
	require.NoError(t, f.Close())

	f, err = os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	loop, rate, err := LoadWAV(f)
	require.NoError(t, err)
	require.Equal(t, 44100, rate)
	require.Equal(t, frames, loop.Len())
	require.Equal(t, 2, loop.NumChannels())

	const eps = 2.0 / 32768
	require.InDelta(t, 32767.0/32768, loop.Channel(1)[0], eps)
	for i := 1; i < frames; i++ {
		require.InDelta(t, left[i], loop.Channel(0)[i], eps)
		require.InDelta(t, right[i], loop.Channel(1)[i], eps)
	}
}

func TestDecodeWAVInvalid(t *testing.T) {
	_, _, err := DecodeWAV(bytes.NewReader([]byte("RIFF but not really")))
	require.ErrorIs(t, err, ErrInvalidWAV)
}

func TestWriteWAVEmpty(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "empty.wav"))
	require.NoError(t, err)
	defer f.Close()
	require.ErrorIs(t, WriteWAV(f, 48000, nil), ErrEmpty)
}
