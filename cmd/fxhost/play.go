package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Loop an input WAV through the engine to the default audio device",
	Long: `Play loops the input file through the engine and streams the result to the
default output device until interrupted or --seconds elapses.`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringP("input", "i", "", "input WAV file looped as the source (empty = silence)")
	playCmd.Flags().Float64("seconds", 0, "stop after this many seconds (0 = until interrupted)")
	playCmd.Flags().Duration("buffer", 20*time.Millisecond, "device buffer duration")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, _ []string) error {
	input, _ := cmd.Flags().GetString("input")
	seconds, _ := cmd.Flags().GetFloat64("seconds")
	bufDur, _ := cmd.Flags().GetDuration("buffer")

	s, err := openSession(cmd.Context(), cmd, input)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close(context.Background()) }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if seconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(seconds*float64(time.Second)))
		defer cancel()
	}

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   s.engine.SampleRate(),
		ChannelCount: s.engine.Channels(),
		Format:       oto.FormatFloat32LE,
		BufferSize:   bufDur,
	})
	if err != nil {
		return fmt.Errorf("audio device: %w", err)
	}
	<-ready

	player := otoCtx.NewPlayer(newEngineReader(s.engine))
	player.Play()
	s.logger.Info("playing",
		zap.Int("sample_rate", s.engine.SampleRate()),
		zap.Int("channels", s.engine.Channels()),
		zap.Duration("buffer", bufDur))

	<-ctx.Done()

	player.Pause()
	player.Close()
	s.logger.Info("stopped", zap.Int64("sanitized", sanitized(s.engine)))
	return nil
}
