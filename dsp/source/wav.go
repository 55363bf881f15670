package source

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV reports an unreadable WAV stream.
var ErrInvalidWAV = errors.New("source: invalid WAV data")

// DecodeWAV reads a PCM WAV stream into planar float64 channels scaled to
// [-1, 1) and returns them with the sample rate.
func DecodeWAV(r io.ReadSeeker) ([][]float64, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, ErrInvalidWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, 0, fmt.Errorf("%w: missing format", ErrInvalidWAV)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 {
		return nil, 0, fmt.Errorf("%w: unknown bit depth", ErrInvalidWAV)
	}
	scale := 1 / math.Pow(2, float64(bitDepth-1))

	nch := buf.Format.NumChannels
	frames := len(buf.Data) / nch
	channels := make([][]float64, nch)
	for c := range channels {
		channels[c] = make([]float64, frames)
	}
	for i := range frames {
		for c := range nch {
			channels[c][i] = float64(buf.Data[i*nch+c]) * scale
		}
	}
	return channels, buf.Format.SampleRate, nil
}

// LoadWAV decodes a WAV stream into a Loop.
func LoadWAV(r io.ReadSeeker) (*Loop, int, error) {
	channels, sampleRate, err := DecodeWAV(r)
	if err != nil {
		return nil, 0, err
	}
	loop, err := NewLoop(channels)
	if err != nil {
		return nil, 0, err
	}
	return loop, sampleRate, nil
}

// WriteWAV encodes planar channels as 16-bit PCM. Samples are clipped to
// [-1, 1].
func WriteWAV(w io.WriteSeeker, sampleRate int, channels [][]float64) error {
	if len(channels) == 0 {
		return fmt.Errorf("%w: no channels", ErrEmpty)
	}
	frames := len(channels[0])
	nch := len(channels)

	enc := wav.NewEncoder(w, sampleRate, 16, nch, 1)
	data := make([]int, frames*nch)
	for i := range frames {
		for c, ch := range channels {
			v := 0.0
			if i < len(ch) {
				v = math.Max(-1, math.Min(1, ch[i]))
			}
			data[i*nch+c] = int(math.Round(v * 32767))
		}
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: nch, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return fmt.Errorf("source: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("source: finish wav: %w", err)
	}
	return nil
}
