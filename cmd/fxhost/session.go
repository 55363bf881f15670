package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwbudde/algo-fxhost/dsp/source"
	"github.com/cwbudde/algo-fxhost/engine"
)

// session is a prepared engine plus the optional input loop feeding it.
type session struct {
	engine *engine.Engine
	loop   *source.Loop
	logger *zap.Logger
}

// openSession loads config and input, builds the engine, applies --set
// overrides and prepares it. A WAV input sets the sample rate.
func openSession(ctx context.Context, cmd *cobra.Command, input string) (*session, error) {
	logger, err := loggerFor(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	s := &session{logger: logger}
	opts := []engine.Option{engine.WithLogger(logger)}

	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		loop, rate, err := source.LoadWAV(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", input, err)
		}
		s.loop = loop
		cfg.SampleRate = rate
		opts = append(opts, engine.WithLoop(loop))
		logger.Info("input loaded",
			zap.String("path", input),
			zap.Int("frames", loop.Len()),
			zap.Int("channels", loop.NumChannels()),
			zap.Int("sample_rate", rate))
	}

	e, err := engine.New(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	s.engine = e

	if err := applyOverrides(cmd, e); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	if err := e.Prepare(cfg.SampleRate, cfg.BlockSize); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *session) Close(ctx context.Context) error {
	err := s.engine.Close(ctx)
	_ = s.logger.Sync()
	return err
}
