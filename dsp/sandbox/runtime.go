package sandbox

import (
	"context"
	"fmt"
	"math"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// EnvModule is the import namespace of the Faust math functions.
const EnvModule = "env"

// Option configures a Runtime.
type Option func(*runtimeOptions)

type runtimeOptions struct {
	logger     *zap.Logger
	limitPages uint32
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *runtimeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMemoryLimitPages caps the linear memory of every module, in 64 KiB
// pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *runtimeOptions) { o.limitPages = pages }
}

// Runtime owns one wazero runtime and its env host module. It is scoped to a
// single engine and must be closed.
type Runtime struct {
	rt     wazero.Runtime
	logger *zap.Logger
}

// NewRuntime creates a runtime and instantiates the env module.
func NewRuntime(ctx context.Context, opts ...Option) (*Runtime, error) {
	o := runtimeOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := wazero.NewRuntimeConfig()
	if o.limitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(o.limitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	if err := instantiateEnv(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("%w: env module: %v", ErrConfiguration, err)
	}

	return &Runtime{rt: rt, logger: o.logger}, nil
}

// Close releases every module loaded through r.
func (r *Runtime) Close(ctx context.Context) error {
	return r.rt.Close(ctx)
}

var (
	f32x1 = []api.ValueType{api.ValueTypeF32}
	f32x2 = []api.ValueType{api.ValueTypeF32, api.ValueTypeF32}
)

func unaryF32(f func(float64) float64) api.GoFunc {
	return func(_ context.Context, stack []uint64) {
		x := float64(api.DecodeF32(stack[0]))
		stack[0] = api.EncodeF32(float32(f(x)))
	}
}

func binaryF32(f func(float64, float64) float64) api.GoFunc {
	return func(_ context.Context, stack []uint64) {
		x := float64(api.DecodeF32(stack[0]))
		y := float64(api.DecodeF32(stack[1]))
		stack[0] = api.EncodeF32(float32(f(x, y)))
	}
}

var unaryImports = map[string]func(float64) float64{
	"_acosf":  math.Acos,
	"_asinf":  math.Asin,
	"_atanf":  math.Atan,
	"_ceilf":  math.Ceil,
	"_cosf":   math.Cos,
	"_coshf":  math.Cosh,
	"_expf":   math.Exp,
	"_exp10f": func(x float64) float64 { return math.Pow(10, x) },
	"_fabsf":  math.Abs,
	"_floorf": math.Floor,
	"_logf":   math.Log,
	"_log10f": math.Log10,
	"_rintf":  math.RoundToEven,
	"_roundf": math.Round,
	"_sinf":   math.Sin,
	"_sinhf":  math.Sinh,
	"_sqrtf":  math.Sqrt,
	"_tanf":   math.Tan,
	"_tanhf":  math.Tanh,
}

var binaryImports = map[string]func(float64, float64) float64{
	"_atan2f":     math.Atan2,
	"_fmaxf":      math.Max,
	"_fminf":      math.Min,
	"_fmodf":      math.Mod,
	"_powf":       math.Pow,
	"_remainderf": math.Remainder,
}

func instantiateEnv(ctx context.Context, rt wazero.Runtime) error {
	b := rt.NewHostModuleBuilder(EnvModule)
	for name, f := range unaryImports {
		b.NewFunctionBuilder().WithGoFunction(unaryF32(f), f32x1, f32x1).Export(name)
	}
	for name, f := range binaryImports {
		b.NewFunctionBuilder().WithGoFunction(binaryF32(f), f32x2, f32x1).Export(name)
	}
	_, err := b.Instantiate(ctx)
	return err
}
