package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-fxhost/dsp/source"
	"github.com/cwbudde/algo-fxhost/engine"
	"github.com/cwbudde/algo-fxhost/internal/testutil"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func writeModule(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "gain.wasm")
	require.NoError(t, os.WriteFile(path, testutil.GainModule(), 0o600))
	return path
}

func writeSine(t *testing.T, frames, rate int) (string, []float64) {
	t.Helper()

	sig := make([]float64, frames)
	for i := range sig {
		sig[i] = 0.5 * math.Sin(2*math.Pi*100*float64(i)/float64(rate))
	}

	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, source.WriteWAV(f, rate, [][]float64{sig}))
	require.NoError(t, f.Close())
	return path, sig
}

func TestParseOverrides(t *testing.T) {
	got, err := parseOverrides([]string{"wasm_level=0.5", "pitch_shift_0=-7"})
	require.NoError(t, err)
	require.Equal(t, []override{{"wasm_level", 0.5}, {"pitch_shift_0", -7}}, got)

	for _, bad := range []string{"wasm_level", "=1", "wasm_level=loud"} {
		_, err := parseOverrides([]string{bad})
		require.Error(t, err, bad)
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("warn")
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = newLogger("chatty")
	require.Error(t, err)
}

func TestRenderAppliesModuleGain(t *testing.T) {
	const (
		rate   = 48000
		frames = 4800
	)
	in, sig := writeSine(t, frames, rate)
	mod := writeModule(t)
	outPath := filepath.Join(t.TempDir(), "out.wav")

	out := execute(t, "render",
		"--input", in,
		"--out", outPath,
		"--module", mod,
		"--mix", "pass-through",
		"--pitch=false",
		"--channels", "2",
		"--block-size", "256",
		"--log-level", "error",
		"--set", "wasm_level=0.5",
		"--report")
	require.Contains(t, out, "channel 0: dominant")
	require.Contains(t, out, "channel 1: dominant")

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()

	channels, gotRate, err := source.DecodeWAV(f)
	require.NoError(t, err)
	require.Equal(t, rate, gotRate)
	require.Len(t, channels, 2)

	for _, ch := range channels {
		require.Len(t, ch, frames)
		for i, v := range ch {
			require.InDelta(t, 0.5*sig[i], v, 1e-3, "frame %d", i)
		}
	}
}

func TestDominantFrequencies(t *testing.T) {
	const rate = 48000
	channels := [][]float64{
		testutil.DeterministicSine(100, rate, 0.5, 16384),
		testutil.DeterministicSine(440, rate, 0.5, 16384),
	}

	freqs, err := dominantFrequencies(channels, rate)
	require.NoError(t, err)
	require.Len(t, freqs, 2)
	require.InDelta(t, 100, freqs[0], 1)
	require.InDelta(t, 440, freqs[1], 1)

	_, err = dominantFrequencies([][]float64{{0, 1}}, rate)
	require.Error(t, err)
}

func TestLoadConfigLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fxhost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`mix: replace
channels: 3
block_size: 256
degraded: pass-through
pitch_channels:
  - shift: -7
    window: 500
  - shift: 5
    crossfade: 20
`), 0o600))

	// Environment beats the file; flags beat both.
	t.Setenv("FXHOST_MIX", "sum")
	t.Setenv("FXHOST_SAMPLE_RATE", "44100")
	t.Setenv("FXHOST_BLOCK_SIZE", "512")

	cmd := &cobra.Command{Use: "fxhost"}
	addConfigFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--block-size", "128"}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	require.Equal(t, "sum", cfg.Mix)
	require.Equal(t, 44100, cfg.SampleRate)
	require.Equal(t, 128, cfg.BlockSize)
	require.Equal(t, 3, cfg.Channels)
	require.Equal(t, engine.DegradedPassThrough, cfg.Degraded)
	require.Equal(t, engine.SyncDirty, cfg.Sync)
	require.True(t, cfg.Pitch)
	require.Equal(t, []engine.PitchConfig{
		{Shift: -7, Window: 500},
		{Shift: 5, Crossfade: 20},
	}, cfg.PitchChannels)
}

func TestLoadConfigDefaults(t *testing.T) {
	cmd := &cobra.Command{Use: "fxhost"}
	addConfigFlags(cmd)
	require.NoError(t, cmd.ParseFlags(nil))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	require.Equal(t, engine.DefaultConfig(), cfg)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cmd := &cobra.Command{Use: "fxhost"}
	addConfigFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}))

	_, err := loadConfig(cmd)
	require.Error(t, err)
}

func TestParamsListsModuleAndPitchControls(t *testing.T) {
	out := execute(t, "params", "--module", writeModule(t), "--log-level", "error", "--pitch=true", "--channels", "2")

	for _, id := range []string{"wasm_level", "wasm_mute", "pitch_shift_0", "pitch_window_1", "pitch_crossfade_1"} {
		require.Contains(t, out, id)
	}
	require.Contains(t, out, "native")
}

func TestEngineReaderInterleaves(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Pitch = false
	cfg.Channels = 2
	cfg.Mix = "pass-through"

	loop, err := source.NewLoop([][]float64{{0.25, -0.5, 0.75}})
	require.NoError(t, err)

	e, err := engine.New(t.Context(), cfg, engine.WithLoop(loop))
	require.NoError(t, err)
	defer e.Close(t.Context())
	require.NoError(t, e.Prepare(48000, 2))

	r := newEngineReader(e)

	// Five frames span three blocks of two; the trailing partial frame is
	// left untouched.
	p := make([]byte, 5*2*bytesPerSample+3)
	n, err := r.Read(p)
	require.NoError(t, err)
	require.Equal(t, 5*2*bytesPerSample, n)

	want := []float32{0.25, -0.5, 0.75, 0.25, -0.5}
	for i, w := range want {
		for ch := 0; ch < 2; ch++ {
			off := (i*2 + ch) * bytesPerSample
			bits := uint32(p[off]) | uint32(p[off+1])<<8 | uint32(p[off+2])<<16 | uint32(p[off+3])<<24
			require.Equal(t, w, math.Float32frombits(bits), "frame %d channel %d", i, ch)
		}
	}
	require.Equal(t, make([]byte, 3), p[n:])
}
