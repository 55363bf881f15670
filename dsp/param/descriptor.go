package param

import (
	"fmt"
	"math"
)

// Kind tags how a control maps between host and module values.
type Kind int

const (
	// Continuous controls span [Min, Max] and are addressed normalized.
	Continuous Kind = iota
	// Boolean controls push exactly 0 or 1.
	Boolean
)

func (k Kind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Boolean:
		return "boolean"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Descriptor describes one module control. Index is the module-internal
// parameter address passed to setParamValue.
type Descriptor struct {
	Label   string
	Address string
	Kind    Kind
	Min     float64
	Max     float64
	Init    float64
	Step    float64
	Index   int
}

// Slider returns a continuous descriptor. Bounds are ordered and init is
// clamped into them.
func Slider(label string, index int, lo, hi, init float64) Descriptor {
	if lo > hi {
		lo, hi = hi, lo
	}
	return Descriptor{
		Label: label,
		Kind:  Continuous,
		Min:   lo,
		Max:   hi,
		Init:  math.Min(math.Max(init, lo), hi),
		Index: index,
	}
}

// Toggle returns a boolean descriptor defaulting to off.
func Toggle(label string, index int) Descriptor {
	return Descriptor{Label: label, Kind: Boolean, Min: 0, Max: 1, Index: index}
}

// Normalize maps a plain value into [0, 1].
func (d Descriptor) Normalize(plain float64) float64 {
	if d.Kind == Boolean {
		if plain >= 0.5 {
			return 1
		}
		return 0
	}
	if d.Max <= d.Min {
		return 0
	}
	n := (plain - d.Min) / (d.Max - d.Min)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// Denormalize maps a normalized value back to the module range. Boolean
// descriptors yield exactly 0 or 1.
func (d Descriptor) Denormalize(normalized float64) float64 {
	if d.Kind == Boolean {
		if normalized >= 0.5 {
			return 1
		}
		return 0
	}
	return d.Min + normalized*(d.Max-d.Min)
}

// Default returns the normalized default value.
func (d Descriptor) Default() float64 {
	return d.Normalize(d.Init)
}
