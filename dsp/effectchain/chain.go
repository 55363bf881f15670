package effectchain

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// MixPolicy decides how the module output (dry) and its pitch-shifted copy
// (wet) reach the outputs.
type MixPolicy int

const (
	// MixSum outputs dry + wet without normalization.
	MixSum MixPolicy = iota
	// MixReplace outputs wet only.
	MixReplace
	// MixPassThrough outputs dry only; pitch stages are not run.
	MixPassThrough
)

func (p MixPolicy) String() string {
	switch p {
	case MixSum:
		return "sum"
	case MixReplace:
		return "replace"
	case MixPassThrough:
		return "pass-through"
	default:
		return fmt.Sprintf("MixPolicy(%d)", int(p))
	}
}

// ParseMixPolicy maps a policy name to its value.
func ParseMixPolicy(s string) (MixPolicy, error) {
	switch s {
	case "sum", "":
		return MixSum, nil
	case "replace":
		return MixReplace, nil
	case "pass-through", "passthrough", "bypass":
		return MixPassThrough, nil
	default:
		return MixSum, fmt.Errorf("effectchain: unknown mix policy %q", s)
	}
}

var errInvalidContext = errors.New("effectchain: invalid context")

// Option configures a Chain.
type Option func(*Chain)

// WithMixPolicy sets the mix policy. Default MixSum.
func WithMixPolicy(p MixPolicy) Option {
	return func(c *Chain) { c.policy = p }
}

// WithModule inserts a module stage ahead of the pitch stages.
func WithModule(s Stage) Option {
	return func(c *Chain) { c.module = s }
}

// WithPitch sets one pitch stage per output channel. Channels without a
// stage, or beyond the slice, carry the dry signal as wet.
func WithPitch(stages ...Stage) Option {
	return func(c *Chain) { c.pitch = stages }
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Chain runs source -> module -> per-channel pitch -> mix for one block.
// Buffers are sized by Prepare; Process does not allocate.
type Chain struct {
	ctx    Context
	policy MixPolicy
	module Stage
	pitch  []Stage
	logger *zap.Logger

	dry []float64
	wet [][]float64

	oversize bool
}

// New creates a Chain. It must be prepared before processing.
func New(opts ...Option) *Chain {
	c := &Chain{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Context returns the context of the last Prepare.
func (c *Chain) Context() Context { return c.ctx }

// Policy returns the mix policy.
func (c *Chain) Policy() MixPolicy { return c.policy }

// SetPolicy changes the mix policy. Not safe during Process.
func (c *Chain) SetPolicy(p MixPolicy) { c.policy = p }

// Module returns the module stage, or nil.
func (c *Chain) Module() Stage { return c.module }

// Pitch returns the pitch stage of channel ch, or nil.
func (c *Chain) Pitch(ch int) Stage {
	if ch < 0 || ch >= len(c.pitch) {
		return nil
	}
	return c.pitch[ch]
}

// Prepare sizes every buffer for ctx and resets stage history. It is not
// real-time safe.
func (c *Chain) Prepare(ctx Context) error {
	if ctx.BlockSize <= 0 || ctx.Channels <= 0 {
		return fmt.Errorf("%w: block size %d, channels %d", errInvalidContext, ctx.BlockSize, ctx.Channels)
	}
	c.ctx = ctx

	c.dry = make([]float64, ctx.BlockSize)
	c.wet = make([][]float64, ctx.Channels)
	for i := range c.wet {
		c.wet[i] = make([]float64, ctx.BlockSize)
	}

	for _, s := range c.stages() {
		if p, ok := s.(Preparer); ok {
			p.Prepare(ctx.BlockSize)
		}
		if r, ok := s.(Resetter); ok {
			r.Reset()
		}
	}

	c.oversize = false
	return nil
}

func (c *Chain) stages() []Stage {
	stages := make([]Stage, 0, len(c.pitch)+1)
	if c.module != nil {
		stages = append(stages, c.module)
	}
	for _, s := range c.pitch {
		if s != nil {
			stages = append(stages, s)
		}
	}
	return stages
}
