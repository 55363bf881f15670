package param

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

var (
	// ErrMetadata reports a module description that cannot be used.
	ErrMetadata = errors.New("param: invalid module metadata")
	// ErrNoControls reports a description without a usable ui tree. The
	// module still runs on its compiled-in defaults.
	ErrNoControls = fmt.Errorf("%w: no controls", ErrMetadata)
)

// Metadata is the parsed module description.
type Metadata struct {
	Name        string
	Size        int
	Inputs      int
	Outputs     int
	Descriptors []Descriptor
}

// number accepts JSON numbers and numeric strings; older Faust backends
// quote some values.
type number struct {
	v   float64
	set bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(bytes.Trim(b, `"`))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("number %s: %w", b, err)
	}
	n.v, n.set = v, true
	return nil
}

func (n number) or(def float64) float64 {
	if n.set {
		return n.v
	}
	return def
}

type uiNode struct {
	Type    string   `json:"type"`
	Label   string   `json:"label"`
	Address string   `json:"address"`
	Index   number   `json:"index"`
	Init    number   `json:"init"`
	Min     number   `json:"min"`
	Max     number   `json:"max"`
	Step    number   `json:"step"`
	Items   []uiNode `json:"items"`
}

type document struct {
	Name    string   `json:"name"`
	Size    number   `json:"size"`
	Inputs  number   `json:"inputs"`
	Outputs number   `json:"outputs"`
	UI      []uiNode `json:"ui"`
}

// ParseMetadata parses a Faust JSON module description. doc may carry
// trailing NUL bytes. A nil logger discards diagnostics.
//
// The returned Metadata is usable even when err wraps ErrNoControls.
func ParseMetadata(doc []byte, logger *zap.Logger) (Metadata, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if i := bytes.IndexByte(doc, 0); i >= 0 {
		doc = doc[:i]
	}

	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Metadata{}, fmt.Errorf("%w: top level is not an object", ErrNoControls)
	}

	var d document
	if err := json.Unmarshal(trimmed, &d); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrMetadata, err)
	}

	md := Metadata{
		Name:    d.Name,
		Size:    int(d.Size.or(0)),
		Inputs:  int(d.Inputs.or(0)),
		Outputs: int(d.Outputs.or(0)),
	}
	if len(d.UI) == 0 {
		return md, fmt.Errorf("%w: ui array missing or empty", ErrNoControls)
	}

	for i := range d.UI {
		md.Descriptors = collect(md.Descriptors, &d.UI[i], logger)
	}
	return md, nil
}

func collect(dst []Descriptor, n *uiNode, logger *zap.Logger) []Descriptor {
	switch n.Type {
	case "hgroup", "vgroup", "tgroup":
		for i := range n.Items {
			dst = collect(dst, &n.Items[i], logger)
		}
		return dst
	case "hbargraph", "vbargraph":
		logger.Debug("skipping output control", zap.String("label", n.Label), zap.String("type", n.Type))
		return dst
	case "hslider", "vslider", "nentry", "checkbox", "button":
	default:
		logger.Warn("skipping unknown ui node", zap.String("label", n.Label), zap.String("type", n.Type))
		return dst
	}

	if !n.Index.set || n.Index.v < 0 {
		logger.Warn("control has no index", zap.String("label", n.Label))
		return dst
	}
	index := int(n.Index.v)

	var d Descriptor
	if n.Type == "checkbox" || n.Type == "button" {
		d = Toggle(n.Label, index)
	} else {
		d = Slider(n.Label, index, n.Min.or(0), n.Max.or(1), n.Init.or(0))
		d.Step = n.Step.or(0)
	}
	d.Address = n.Address
	return append(dst, d)
}
