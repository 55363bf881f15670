package param

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultPrefix is prepended to module labels to form host ids.
const DefaultPrefix = "wasm_"

var (
	// ErrFrozen reports a registration after Freeze.
	ErrFrozen = errors.New("param: registry is frozen")
	// ErrDuplicateID reports a native id that is already taken.
	ErrDuplicateID = errors.New("param: duplicate parameter id")
)

// ModuleWriter receives plain values during Sync.
type ModuleWriter interface {
	SetParam(index int, value float64) error
}

// Parameter is one host-facing control. Values are stored normalized in an
// atomic word so control goroutines can write while the audio goroutine
// reads.
type Parameter struct {
	id     string
	desc   Descriptor
	native bool

	value atomic.Uint64
	dirty atomic.Bool
}

func newParameter(id string, d Descriptor, native bool) *Parameter {
	p := &Parameter{id: id, desc: d, native: native}
	p.value.Store(math.Float64bits(d.Default()))
	p.dirty.Store(true)
	return p
}

// ID returns the host identifier.
func (p *Parameter) ID() string { return p.id }

// Descriptor returns the control description.
func (p *Parameter) Descriptor() Descriptor { return p.desc }

// Native reports whether the parameter is owned by the host rather than a
// module.
func (p *Parameter) Native() bool { return p.native }

// Normalized returns the current value in [0, 1].
func (p *Parameter) Normalized() float64 {
	return math.Float64frombits(p.value.Load())
}

// SetNormalized stores a normalized value, clamped to [0, 1]. NaN is ignored.
func (p *Parameter) SetNormalized(v float64) {
	if math.IsNaN(v) {
		return
	}
	v = math.Min(math.Max(v, 0), 1)
	if p.desc.Kind == Boolean {
		v = p.desc.Normalize(v)
	}
	p.value.Store(math.Float64bits(v))
	p.dirty.Store(true)
}

// Plain returns the value rescaled into the module range.
func (p *Parameter) Plain() float64 {
	return p.desc.Denormalize(p.Normalized())
}

// SetPlain stores a value given in the module range.
func (p *Parameter) SetPlain(v float64) {
	if math.IsNaN(v) {
		return
	}
	p.SetNormalized(p.desc.Normalize(v))
}

// Reset restores the default value.
func (p *Parameter) Reset() {
	p.SetNormalized(p.desc.Default())
}

// Option configures a Registry.
type Option func(*Registry)

// WithPrefix sets the host id prefix for module parameters.
func WithPrefix(prefix string) Option {
	return func(r *Registry) { r.prefix = prefix }
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Registry maps host parameters to module indices. It is built once, frozen,
// and never mutated structurally afterwards.
type Registry struct {
	prefix string
	logger *zap.Logger

	params []*Parameter
	byID   map[string]*Parameter
	labels map[string]int
	frozen bool
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		prefix: DefaultPrefix,
		logger: zap.NewNop(),
		byID:   make(map[string]*Parameter),
		labels: make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prefix returns the host id prefix of module parameters.
func (r *Registry) Prefix() string { return r.prefix }

// Register adds a module parameter with id prefix+label. A repeated label
// rebinds the existing parameter to the later descriptor.
func (r *Registry) Register(d Descriptor) (*Parameter, error) {
	if r.frozen {
		return nil, ErrFrozen
	}
	if d.Index < 0 {
		return nil, fmt.Errorf("param: %q: negative module index %d", d.Label, d.Index)
	}

	id := r.prefix + d.Label
	r.labels[d.Label] = d.Index

	if prev, ok := r.byID[id]; ok {
		if prev.native {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		r.logger.Warn("duplicate control label, last occurrence wins",
			zap.String("label", d.Label),
			zap.Int("previous_index", prev.desc.Index),
			zap.Int("index", d.Index))
		p := newParameter(id, d, false)
		r.replace(prev, p)
		return p, nil
	}

	p := newParameter(id, d, false)
	r.params = append(r.params, p)
	r.byID[id] = p
	return p, nil
}

// RegisterAll registers every descriptor in order.
func (r *Registry) RegisterAll(ds []Descriptor) error {
	for _, d := range ds {
		if _, err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// RegisterNative adds a host-owned parameter that is never pushed into a
// module. The descriptor index is ignored.
func (r *Registry) RegisterNative(id string, d Descriptor) (*Parameter, error) {
	if r.frozen {
		return nil, ErrFrozen
	}
	if _, ok := r.byID[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	d.Index = -1
	p := newParameter(id, d, true)
	r.params = append(r.params, p)
	r.byID[id] = p
	return p, nil
}

func (r *Registry) replace(prev, p *Parameter) {
	for i, q := range r.params {
		if q == prev {
			r.params[i] = p
			break
		}
	}
	r.byID[p.id] = p
}

// Freeze ends registration.
func (r *Registry) Freeze() { r.frozen = true }

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool { return r.frozen }

// Len returns the number of host parameters.
func (r *Registry) Len() int { return len(r.params) }

// Parameters returns the parameters in registration order. The slice must not
// be modified.
func (r *Registry) Parameters() []*Parameter { return r.params }

// Lookup returns the parameter with the given host id.
func (r *Registry) Lookup(id string) (*Parameter, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Translate returns the module index behind a host id. Native and unknown
// ids report false.
func (r *Registry) Translate(id string) (int, bool) {
	p, ok := r.byID[id]
	if !ok || p.native {
		return 0, false
	}
	return p.desc.Index, true
}

// IndexOf returns the module index bound to a control label.
func (r *Registry) IndexOf(label string) (int, bool) {
	i, ok := r.labels[label]
	return i, ok
}

// ResetDefaults restores every parameter to its default.
func (r *Registry) ResetDefaults() {
	for _, p := range r.params {
		p.Reset()
	}
}

// Sync pushes module parameters into w. Unless force is set, only values
// written since the previous push are sent. Native parameters are skipped.
// Sync does not allocate; it returns the first write error and keeps the
// failed parameter dirty.
func (r *Registry) Sync(w ModuleWriter, force bool) error {
	var first error
	for _, p := range r.params {
		if p.native {
			continue
		}
		if !p.dirty.Swap(false) && !force {
			continue
		}
		if err := w.SetParam(p.desc.Index, p.Plain()); err != nil {
			p.dirty.Store(true)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
