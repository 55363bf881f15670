// Package engine composes the module host, the parameter registry, the pitch
// shifters and the signal chain into a block-processing audio engine.
//
// One goroutine calls Process; any number of control goroutines may write
// parameters concurrently. Prepare and Close must not run concurrently with
// Process.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-fxhost/dsp/core"
	"github.com/cwbudde/algo-fxhost/dsp/effectchain"
	"github.com/cwbudde/algo-fxhost/dsp/effects/pitch"
	"github.com/cwbudde/algo-fxhost/dsp/param"
	"github.com/cwbudde/algo-fxhost/dsp/sandbox"
	"github.com/cwbudde/algo-fxhost/dsp/source"
)

// ErrUnknownParameter is returned for ids the registry does not hold.
var ErrUnknownParameter = errors.New("engine: unknown parameter")

// Native pitch parameter id prefixes; the channel number is appended.
const (
	PitchShiftID     = "pitch_shift_"
	PitchWindowID    = "pitch_window_"
	PitchCrossfadeID = "pitch_crossfade_"
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger *zap.Logger
	module []byte
	loop   *source.Loop
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithModule supplies the wasm bytes directly instead of Config.ModulePath.
func WithModule(wasm []byte) Option {
	return func(o *options) { o.module = wasm }
}

// WithLoop sets the source used when Process receives no input.
func WithLoop(loop *source.Loop) Option {
	return func(o *options) { o.loop = loop }
}

type pitchControls struct {
	shift, window, crossfade *param.Parameter
}

// Engine is a real-time effect engine.
type Engine struct {
	cfg      Config
	resolved resolved
	logger   *zap.Logger

	runtime   *sandbox.Runtime
	host      *sandbox.Host
	moduleErr error

	registry *param.Registry
	stage    *effectchain.ModuleStage
	chain    *effectchain.Chain
	shifters []*pitch.DelayShifter
	controls []pitchControls
	loop     *source.Loop

	sampleRate int
	blockSize  int
	prepared   bool

	mono    []float64
	scratch []float64
	out     [][]float64

	reportedSync  bool
	reportedBlock bool
	reportedPanic bool
}

// New builds an engine. Module failures do not fail New: the engine runs
// degraded and ModuleErr reports the cause. Invalid configuration and
// runtime creation failures are returned.
func New(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	res, err := cfg.resolve()
	if err != nil {
		return nil, err
	}

	rtOpts := []sandbox.Option{sandbox.WithLogger(o.logger)}
	if cfg.MemoryLimitPages > 0 {
		rtOpts = append(rtOpts, sandbox.WithMemoryLimitPages(cfg.MemoryLimitPages))
	}
	rt, err := sandbox.NewRuntime(ctx, rtOpts...)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		resolved: res,
		logger:   o.logger,
		runtime:  rt,
		loop:     o.loop,
		registry: param.NewRegistry(param.WithPrefix(cfg.ParamPrefix), param.WithLogger(o.logger)),
	}

	wantModule := o.module != nil || cfg.ModulePath != ""
	if wantModule {
		e.host, e.moduleErr = e.loadModule(ctx, cfg.ModulePath, o.module)
		if e.moduleErr != nil {
			e.logger.Error("module unavailable, running degraded",
				zap.String("path", cfg.ModulePath),
				zap.String("degraded", cfg.Degraded),
				zap.Error(e.moduleErr))
		}
	}

	if err := e.buildRegistry(); err != nil {
		_ = e.Close(ctx)
		return nil, err
	}

	chainOpts := []effectchain.Option{
		effectchain.WithMixPolicy(res.mix),
		effectchain.WithLogger(o.logger),
	}
	if wantModule {
		var m effectchain.ModuleComputer
		if e.host != nil {
			m = e.host
		}
		e.stage = effectchain.NewModuleStage(m, res.degraded, o.logger)
		chainOpts = append(chainOpts, effectchain.WithModule(e.stage))
	}
	if cfg.Pitch {
		stages := make([]effectchain.Stage, len(e.shifters))
		for i, s := range e.shifters {
			stages[i] = s
		}
		chainOpts = append(chainOpts, effectchain.WithPitch(stages...))
	}
	e.chain = effectchain.New(chainOpts...)

	return e, nil
}

func (e *Engine) loadModule(ctx context.Context, path string, wasm []byte) (*sandbox.Host, error) {
	if wasm == nil {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", sandbox.ErrConfiguration, err)
		}
		wasm = b
	}
	return e.runtime.Load(ctx, wasm, sandbox.WithName(path))
}

func (e *Engine) buildRegistry() error {
	if e.host != nil {
		if err := e.registry.RegisterAll(e.host.Metadata().Descriptors); err != nil {
			return fmt.Errorf("engine: register module controls: %w", err)
		}
	}

	if e.cfg.Pitch {
		for ch := range e.cfg.Channels {
			s, err := pitch.NewDelayShifter()
			if err != nil {
				return fmt.Errorf("engine: %w", err)
			}
			d := e.cfg.pitchDefaults(ch)
			n := strconv.Itoa(ch)

			var c pitchControls
			if c.shift, err = e.registry.RegisterNative(PitchShiftID+n,
				param.Slider("shift "+n, -1, pitch.MinShift, pitch.MaxShift, d.Shift)); err != nil {
				return err
			}
			if c.window, err = e.registry.RegisterNative(PitchWindowID+n,
				param.Slider("window "+n, -1, pitch.MinWindow, pitch.MaxWindow, d.Window)); err != nil {
				return err
			}
			if c.crossfade, err = e.registry.RegisterNative(PitchCrossfadeID+n,
				param.Slider("crossfade "+n, -1, pitch.MinCrossfade, pitch.MaxCrossfade, d.Crossfade)); err != nil {
				return err
			}

			e.shifters = append(e.shifters, s)
			e.controls = append(e.controls, c)
		}
	}

	e.registry.Freeze()
	return nil
}

// Prepare sizes every buffer for blocks of up to blockSize frames,
// re-initializes the module at sampleRate and pushes every parameter into
// it. It is not real-time safe.
func (e *Engine) Prepare(sampleRate, blockSize int) error {
	e.prepared = false
	if sampleRate <= 0 || blockSize <= 0 {
		return fmt.Errorf("engine: invalid sample rate %d or block size %d", sampleRate, blockSize)
	}

	if e.host != nil {
		if err := e.host.Prepare(sampleRate, blockSize); err != nil {
			// The module stage degrades on its own once Compute fails.
			e.logger.Error("module prepare failed", zap.Error(err))
		} else if err := e.registry.Sync(e.host, true); err != nil {
			e.logger.Error("parameter resync failed", zap.Error(err))
		}
	}

	ctx := effectchain.Context{SampleRate: float64(sampleRate), BlockSize: blockSize, Channels: e.cfg.Channels}
	if err := e.chain.Prepare(ctx); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	e.mono = make([]float64, blockSize)
	e.scratch = make([]float64, blockSize)
	e.out = make([][]float64, e.cfg.Channels)
	for i := range e.out {
		e.out[i] = make([]float64, blockSize)
	}

	e.sampleRate = sampleRate
	e.blockSize = blockSize
	e.reportedSync = false
	e.reportedBlock = false
	e.prepared = true

	e.logger.Info("engine prepared",
		zap.Int("sample_rate", sampleRate),
		zap.Int("block_size", blockSize),
		zap.Int("channels", e.cfg.Channels),
		zap.Stringer("mix", e.resolved.mix),
		zap.Bool("module", e.host != nil))
	return nil
}

// Process renders one block into out, one slice per host channel, all of
// equal length. in carries live input and may be empty, in which case the
// loop source, or silence, feeds the chain. Process never fails: errors
// become silence plus a one-time diagnostic.
func (e *Engine) Process(out, in [][]float32) {
	if len(out) == 0 {
		return
	}
	n := len(out[0])

	defer func() {
		if r := recover(); r != nil {
			silence(out)
			if !e.reportedPanic {
				e.reportedPanic = true
				e.logger.Error("recovered from panic in audio callback", zap.Any("panic", r))
			}
		}
	}()

	if !e.prepared || n > e.blockSize {
		silence(out)
		if e.prepared && !e.reportedBlock {
			e.reportedBlock = true
			e.logger.Warn("block exceeds prepared size, rendering silence",
				zap.Int("block", n), zap.Int("prepared", e.blockSize))
		}
		return
	}

	mono := e.mono[:n]
	e.readSource(mono, in)

	if e.host != nil && e.host.Prepared() {
		if err := e.registry.Sync(e.host, e.resolved.syncAlways); err != nil && !e.reportedSync {
			e.reportedSync = true
			e.logger.Error("parameter sync failed", zap.Error(err))
		}
	}

	for i, s := range e.shifters {
		c := e.controls[i]
		s.SetShift(c.shift.Plain())
		s.SetWindow(c.window.Plain())
		s.SetCrossfade(c.crossfade.Plain())
	}

	e.chain.Process(mono, e.out)

	last := len(e.out) - 1
	for ch, dst := range out {
		src := e.out[min(ch, last)]
		for i := range dst[:min(n, len(dst))] {
			v, _ := core.SafeSample(src[i])
			dst[i] = float32(v)
		}
	}
}

// readSource fills mono with the channel average of in, the loop, or
// silence.
func (e *Engine) readSource(mono []float64, in [][]float32) {
	live := 0
	for _, ch := range in {
		if len(ch) >= len(mono) {
			live++
		}
	}

	switch {
	case live > 0:
		clear(mono)
		scratch := e.scratch[:len(mono)]
		for _, ch := range in {
			if len(ch) < len(mono) {
				continue
			}
			core.Widen(scratch, ch)
			for i, v := range scratch {
				mono[i] += v
			}
		}
		if live > 1 {
			g := 1 / float64(live)
			for i := range mono {
				mono[i] *= g
			}
		}
	case e.loop != nil:
		e.loop.Read(mono)
	default:
		clear(mono)
	}
}

func silence(out [][]float32) {
	for _, ch := range out {
		core.Zero32(ch)
	}
}

// Parameters returns every host parameter in registration order.
func (e *Engine) Parameters() []*param.Parameter { return e.registry.Parameters() }

// Registry returns the frozen parameter registry.
func (e *Engine) Registry() *param.Registry { return e.registry }

// Parameter looks up a parameter by host id.
func (e *Engine) Parameter(id string) (*param.Parameter, bool) { return e.registry.Lookup(id) }

// SetParameter stores a normalized value. Safe from any goroutine.
func (e *Engine) SetParameter(id string, normalized float64) error {
	p, ok := e.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParameter, id)
	}
	p.SetNormalized(normalized)
	return nil
}

// SetPlain stores a value in the parameter's own range. Safe from any
// goroutine.
func (e *Engine) SetPlain(id string, v float64) error {
	p, ok := e.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParameter, id)
	}
	p.SetPlain(v)
	return nil
}

// Host returns the module host, or nil when no module is loaded.
func (e *Engine) Host() *sandbox.Host { return e.host }

// ModuleErr reports why the configured module is unavailable.
func (e *Engine) ModuleErr() error { return e.moduleErr }

// Chain returns the signal chain.
func (e *Engine) Chain() *effectchain.Chain { return e.chain }

// Channels returns the number of output channels.
func (e *Engine) Channels() int { return e.cfg.Channels }

// SampleRate returns the rate of the last Prepare.
func (e *Engine) SampleRate() int { return e.sampleRate }

// BlockSize returns the maximum block size of the last Prepare.
func (e *Engine) BlockSize() int { return e.blockSize }

// Close releases the module and the runtime.
func (e *Engine) Close(ctx context.Context) error {
	e.prepared = false
	var errs []error
	if e.host != nil {
		errs = append(errs, e.host.Close(ctx))
	}
	if e.runtime != nil {
		errs = append(errs, e.runtime.Close(ctx))
	}
	return errors.Join(errs...)
}
