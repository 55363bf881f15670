package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwbudde/algo-fxhost/dsp/core"
	"github.com/cwbudde/algo-fxhost/dsp/source"
	"github.com/cwbudde/algo-fxhost/engine"
	"github.com/cwbudde/algo-fxhost/measure/tone"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Process an input WAV offline and write the result",
	Long: `Render runs the input file through the engine block by block and writes a
16-bit WAV with one channel per engine output. The input loops when
--seconds exceeds its length.`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringP("input", "i", "", "input WAV file (required)")
	renderCmd.Flags().StringP("out", "o", "out.wav", "output WAV file")
	renderCmd.Flags().Float64("seconds", 0, "render length in seconds (0 = input length)")
	renderCmd.Flags().Bool("report", false, "print the dominant frequency of every output channel")
	_ = renderCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	input, _ := cmd.Flags().GetString("input")
	outPath, _ := cmd.Flags().GetString("out")
	seconds, _ := cmd.Flags().GetFloat64("seconds")
	report, _ := cmd.Flags().GetBool("report")

	s, err := openSession(ctx, cmd, input)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close(ctx) }()

	frames := s.loop.Len()
	if seconds > 0 {
		frames = int(seconds * float64(s.engine.SampleRate()))
	}

	rendered := renderFrames(s.engine, frames)

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := source.WriteWAV(f, s.engine.SampleRate(), rendered); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	if report {
		freqs, err := dominantFrequencies(rendered, s.engine.SampleRate())
		if err != nil {
			return err
		}
		for ch, f := range freqs {
			fmt.Fprintf(cmd.OutOrStdout(), "channel %d: dominant %.1f Hz\n", ch, f)
		}
	}

	s.logger.Info("render complete",
		zap.String("out", outPath),
		zap.Int("frames", frames),
		zap.Int("channels", len(rendered)),
		zap.Int64("sanitized", sanitized(s.engine)))
	return nil
}

// renderFrames pulls frames samples per channel from a prepared engine.
func renderFrames(e *engine.Engine, frames int) [][]float64 {
	channels := e.Channels()
	block := e.BlockSize()

	rendered := make([][]float64, channels)
	buf := make([][]float32, channels)
	for ch := range rendered {
		rendered[ch] = make([]float64, frames)
		buf[ch] = make([]float32, block)
	}

	for pos := 0; pos < frames; pos += block {
		n := min(block, frames-pos)
		out := buf
		if n < block {
			out = make([][]float32, channels)
			for ch := range out {
				out[ch] = buf[ch][:n]
			}
		}
		e.Process(out, nil)
		for ch := range out {
			core.Widen(rendered[ch][pos:], out[ch])
		}
	}
	return rendered
}

// dominantFrequencies measures the strongest spectral peak of each channel.
func dominantFrequencies(channels [][]float64, sampleRate int) ([]float64, error) {
	freqs := make([]float64, len(channels))
	for ch, x := range channels {
		f, err := tone.DominantFrequency(x, float64(sampleRate))
		if err != nil {
			return nil, fmt.Errorf("report channel %d: %w", ch, err)
		}
		freqs[ch] = f
	}
	return freqs, nil
}

func sanitized(e *engine.Engine) int64 {
	if h := e.Host(); h != nil {
		return int64(h.Sanitized())
	}
	return 0
}
