package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/cwbudde/algo-fxhost/dsp/core"
	"github.com/cwbudde/algo-fxhost/dsp/param"
)

const (
	pageSize = 65536

	// dspPtr is the address of the DSP struct; Faust places it at 0.
	dspPtr = 0

	maxMetadataBytes = 1 << 20
)

// LoadOption configures a Host.
type LoadOption func(*loadOptions)

type loadOptions struct {
	arenaBase uint32
	name      string
}

// WithArenaBase overrides the first byte address used for audio buffers.
func WithArenaBase(base uint32) LoadOption {
	return func(o *loadOptions) { o.arenaBase = base }
}

// WithName labels the host in diagnostics.
func WithName(name string) LoadOption {
	return func(o *loadOptions) { o.name = name }
}

// Host owns one module instance and its linear memory.
//
// A Host is driven by a single audio goroutine. The context given to Load is
// retained for calls made from Compute, SetParam and GetParam.
type Host struct {
	ctx    context.Context
	logger *zap.Logger

	mod       api.Module
	mem       api.Memory
	fnInit    api.Function
	fnCompute api.Function
	fnSet     api.Function
	fnGet     api.Function

	metadata    param.Metadata
	metadataErr error
	rawMetadata []byte

	inputs  int
	outputs int
	base    uint32

	sampleRate int
	maxBlock   int
	prepared   bool

	initStack    [2]uint64
	computeStack [4]uint64
	setStack     [3]uint64
	getStack     [2]uint64

	sanitized atomic.Uint64
}

// Load compiles and instantiates a module, captures its metadata before any
// call into it and resolves the Faust entry points.
//
// Unusable metadata is not fatal: the Host is returned with no descriptors
// and MetadataErr reports why.
func (r *Runtime) Load(ctx context.Context, wasm []byte, opts ...LoadOption) (*Host, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := r.logger
	if o.name != "" {
		logger = logger.With(zap.String("module", o.name))
	}

	compiled, err := r.rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("%w: compile: %v", ErrConfiguration, err)
	}

	mod, err := r.rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("%w: instantiate: %v", ErrConfiguration, err)
	}

	h := &Host{ctx: ctx, logger: logger, mod: mod}
	if err := h.bind(); err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}

	h.captureMetadata()
	h.inputs = h.channelCount("getNumInputs", h.metadata.Inputs)
	h.outputs = h.channelCount("getNumOutputs", h.metadata.Outputs)

	switch {
	case o.arenaBase > 0:
		h.base = alignUp(o.arenaBase)
	case h.metadata.Size > 0:
		h.base = alignUp(uint32(h.metadata.Size))
	default:
		h.base = DefaultArenaBase
	}

	logger.Info("module loaded",
		zap.String("name", h.metadata.Name),
		zap.Int("inputs", h.inputs),
		zap.Int("outputs", h.outputs),
		zap.Int("controls", len(h.metadata.Descriptors)),
		zap.Uint32("arena_base", h.base))

	return h, nil
}

func (h *Host) bind() error {
	h.mem = h.mod.Memory()
	if h.mem == nil {
		return fmt.Errorf("%w: module exports no memory", ErrConfiguration)
	}

	for _, fn := range []struct {
		name string
		dst  *api.Function
	}{
		{"init", &h.fnInit},
		{"compute", &h.fnCompute},
		{"setParamValue", &h.fnSet},
		{"getParamValue", &h.fnGet},
	} {
		f := h.mod.ExportedFunction(fn.name)
		if f == nil {
			return fmt.Errorf("%w: missing export %q", ErrConfiguration, fn.name)
		}
		*fn.dst = f
	}

	for _, want := range []struct {
		f      api.Function
		name   string
		params int
	}{
		{h.fnInit, "init", 2},
		{h.fnCompute, "compute", 4},
		{h.fnSet, "setParamValue", 3},
		{h.fnGet, "getParamValue", 2},
	} {
		if got := len(want.f.Definition().ParamTypes()); got != want.params {
			return fmt.Errorf("%w: %s takes %d params, want %d", ErrConfiguration, want.name, got, want.params)
		}
	}
	return nil
}

// captureMetadata copies the NUL-terminated JSON at offset 0 and parses it.
func (h *Host) captureMetadata() {
	n := min(h.mem.Size(), maxMetadataBytes)
	view, ok := h.mem.Read(0, n)
	if !ok {
		h.metadataErr = fmt.Errorf("%w: memory unreadable", param.ErrNoControls)
		return
	}
	if i := bytes.IndexByte(view, 0); i >= 0 {
		view = view[:i]
	}
	h.rawMetadata = bytes.Clone(view)

	h.metadata, h.metadataErr = param.ParseMetadata(h.rawMetadata, h.logger)
	if h.metadataErr != nil {
		h.logger.Warn("module metadata unusable, running on compiled-in defaults", zap.Error(h.metadataErr))
	}
}

// channelCount asks the module, falling back to the metadata and then to
// mono.
func (h *Host) channelCount(export string, fromMetadata int) int {
	if f := h.mod.ExportedFunction(export); f != nil && len(f.Definition().ParamTypes()) == 1 {
		stack := []uint64{api.EncodeI32(dspPtr)}
		if err := f.CallWithStack(h.ctx, stack); err == nil {
			if n := int(api.DecodeI32(stack[0])); n >= 0 {
				return n
			}
		}
	}
	if fromMetadata > 0 {
		return fromMetadata
	}
	return 1
}

// Metadata returns the parsed module description.
func (h *Host) Metadata() param.Metadata { return h.metadata }

// MetadataErr returns the parse error, if any.
func (h *Host) MetadataErr() error { return h.metadataErr }

// RawMetadata returns the JSON captured at load time.
func (h *Host) RawMetadata() []byte { return h.rawMetadata }

// Inputs returns the number of module input channels.
func (h *Host) Inputs() int { return h.inputs }

// Outputs returns the number of module output channels.
func (h *Host) Outputs() int { return h.outputs }

// ArenaBase returns the first byte address of the audio regions.
func (h *Host) ArenaBase() uint32 { return h.base }

// Capacity returns the current size of module memory in bytes.
func (h *Host) Capacity() uint32 { return h.mem.Size() }

// MaxBlock returns the block size given to the last successful Prepare.
func (h *Host) MaxBlock() int { return h.maxBlock }

// SampleRate returns the rate given to the last successful Prepare.
func (h *Host) SampleRate() int { return h.sampleRate }

// Prepared reports whether Prepare has succeeded.
func (h *Host) Prepared() bool { return h.prepared }

// Sanitized returns how many output samples were replaced by silence.
func (h *Host) Sanitized() uint64 { return h.sanitized.Load() }

// Prepare initializes the module for sampleRate and grows memory so that
// blocks of up to maxBlock frames fit. Module state, parameters included,
// may be reset; callers resync every parameter afterwards.
func (h *Host) Prepare(sampleRate, maxBlock int) error {
	h.prepared = false
	if sampleRate <= 0 || maxBlock <= 0 {
		return fmt.Errorf("%w: invalid sample rate %d or block size %d", ErrConfiguration, sampleRate, maxBlock)
	}

	h.initStack[0] = api.EncodeI32(dspPtr)
	h.initStack[1] = api.EncodeI32(int32(sampleRate))
	if err := h.fnInit.CallWithStack(h.ctx, h.initStack[:]); err != nil {
		return fmt.Errorf("%w: init: %v", ErrTrap, err)
	}

	if err := h.reserve(maxBlock); err != nil {
		return err
	}

	h.sampleRate = sampleRate
	h.maxBlock = maxBlock
	h.prepared = true
	h.logger.Debug("module prepared",
		zap.Int("sample_rate", sampleRate),
		zap.Int("max_block", maxBlock),
		zap.Uint32("capacity", h.mem.Size()))
	return nil
}

func (h *Host) reserve(frames int) error {
	l, err := PlanLayout(h.base, h.inputs, h.outputs, frames, ^uint32(0))
	if err != nil {
		return err
	}
	size := h.mem.Size()
	if l.End <= size {
		return nil
	}
	pages := (uint64(l.End) - uint64(size) + pageSize - 1) / pageSize
	if _, ok := h.mem.Grow(uint32(pages)); !ok {
		return fmt.Errorf("%w: cannot grow memory by %d pages for %d frames", ErrResourceExhausted, pages, frames)
	}
	return nil
}

// Compute runs one block of n frames. Missing input channels read as
// silence; output channels the module does not produce are zeroed. Any
// output sample that is not finite or exceeds core.SampleLimit is replaced
// by 0.
func (h *Host) Compute(in, out [][]float64, n int) error {
	if !h.prepared {
		return fmt.Errorf("%w: compute before prepare", ErrConfiguration)
	}
	if n <= 0 {
		return nil
	}
	for _, ch := range out {
		if len(ch) < n {
			return fmt.Errorf("%w: output channel holds %d of %d frames", ErrConfiguration, len(ch), n)
		}
	}

	l, err := PlanLayout(h.base, h.inputs, h.outputs, n, h.mem.Size())
	if err != nil {
		return err
	}
	view, ok := h.mem.Read(0, l.End)
	if !ok {
		return ErrResourceExhausted
	}
	a := arena{mem: view}

	for c := range h.inputs {
		off := l.InChannel(c)
		if c < len(in) && len(in[c]) >= n {
			err = a.putSamples(off, in[c][:n])
		} else {
			err = a.zeroSamples(off, n)
		}
		if err != nil {
			return err
		}
		if err := a.putPointer(l.InTable+uint32(c*pointerSize), off); err != nil {
			return err
		}
	}
	for c := range h.outputs {
		off := l.OutChannel(c)
		if err := a.zeroSamples(off, n); err != nil {
			return err
		}
		if err := a.putPointer(l.OutTable+uint32(c*pointerSize), off); err != nil {
			return err
		}
	}

	h.computeStack[0] = api.EncodeI32(dspPtr)
	h.computeStack[1] = api.EncodeI32(int32(n))
	h.computeStack[2] = api.EncodeU32(l.InTable)
	h.computeStack[3] = api.EncodeU32(l.OutTable)
	if err := h.fnCompute.CallWithStack(h.ctx, h.computeStack[:]); err != nil {
		for _, ch := range out {
			core.Zero(ch[:n])
		}
		return errors.Join(ErrTrap, err)
	}

	// The module cannot grow memory during compute in the Faust ABI, but a
	// fresh view keeps the arena honest if it did.
	if view, ok = h.mem.Read(0, l.End); !ok {
		return ErrResourceExhausted
	}
	a = arena{mem: view}

	var replaced uint64
	for c, ch := range out {
		dst := ch[:n]
		if c >= h.outputs {
			core.Zero(dst)
			continue
		}
		if err := a.getSamples(dst, l.OutChannel(c)); err != nil {
			return err
		}
		for i, v := range dst {
			if safe, bad := core.SafeSample(v); bad {
				dst[i] = safe
				replaced++
			}
		}
	}
	if replaced > 0 {
		h.sanitized.Add(replaced)
	}
	return nil
}

// SetParam writes value into the module parameter at index.
func (h *Host) SetParam(index int, value float64) error {
	h.setStack[0] = api.EncodeI32(dspPtr)
	h.setStack[1] = api.EncodeI32(int32(index))
	h.setStack[2] = api.EncodeF32(float32(value))
	if err := h.fnSet.CallWithStack(h.ctx, h.setStack[:]); err != nil {
		return errors.Join(ErrTrap, err)
	}
	return nil
}

// GetParam reads the module parameter at index.
func (h *Host) GetParam(index int) (float64, error) {
	h.getStack[0] = api.EncodeI32(dspPtr)
	h.getStack[1] = api.EncodeI32(int32(index))
	if err := h.fnGet.CallWithStack(h.ctx, h.getStack[:]); err != nil {
		return 0, errors.Join(ErrTrap, err)
	}
	return float64(api.DecodeF32(h.getStack[0])), nil
}

// Close releases the module instance.
func (h *Host) Close(ctx context.Context) error {
	h.prepared = false
	return h.mod.Close(ctx)
}
