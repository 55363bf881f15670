package effectchain

import (
	"go.uber.org/zap"

	"github.com/cwbudde/algo-vecmath"
)

// Stage is the per-block processing contract. Process transforms a mono
// block in place and must not allocate.
type Stage interface {
	Process(block []float64)
}

// Resetter is an optional interface for stages that carry history.
type Resetter interface {
	Reset()
}

// Preparer is an optional interface for stages that size buffers for a
// maximum block length before processing.
type Preparer interface {
	Prepare(blockSize int)
}

// ModuleComputer is the block interface of a hosted module.
type ModuleComputer interface {
	Compute(in, out [][]float64, n int) error
	Inputs() int
	Outputs() int
}

// Degraded selects what a module stage emits when the module fails.
type Degraded int

const (
	// DegradedSilence outputs zeros.
	DegradedSilence Degraded = iota
	// DegradedPassThrough leaves the block untouched.
	DegradedPassThrough
)

// ModuleStage adapts a hosted module to the Stage contract. The mono block
// feeds every module input; module outputs are averaged back to mono.
type ModuleStage struct {
	module   ModuleComputer
	degraded Degraded
	logger   *zap.Logger

	in  [][]float64
	out [][]float64

	failures uint64
	reported bool
}

// NewModuleStage wraps m. A nil m yields a stage that is permanently
// degraded.
func NewModuleStage(m ModuleComputer, degraded Degraded, logger *zap.Logger) *ModuleStage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModuleStage{module: m, degraded: degraded, logger: logger}
}

// Prepare sizes the marshalling buffers for blocks of up to blockSize.
func (s *ModuleStage) Prepare(blockSize int) {
	ins, outs := 1, 1
	if s.module != nil {
		ins, outs = max(s.module.Inputs(), 0), max(s.module.Outputs(), 0)
	}

	shared := make([]float64, blockSize)
	s.in = make([][]float64, ins)
	for i := range s.in {
		s.in[i] = shared
	}
	s.out = make([][]float64, outs)
	for i := range s.out {
		s.out[i] = make([]float64, blockSize)
	}
	s.reported = false
}

// Failures returns the number of blocks that fell back to the degraded
// output.
func (s *ModuleStage) Failures() uint64 { return s.failures }

// Process runs the module over block.
func (s *ModuleStage) Process(block []float64) {
	n := len(block)
	if s.module == nil || len(s.out) == 0 || n > len(s.out[0]) {
		s.fail(block, nil)
		return
	}

	if len(s.in) > 0 {
		copy(s.in[0][:n], block)
	}
	if err := s.module.Compute(s.in, s.out, n); err != nil {
		s.fail(block, err)
		return
	}

	copy(block, s.out[0][:n])
	for _, ch := range s.out[1:] {
		vecmath.AddBlockInPlace(block, ch[:n])
	}
	if len(s.out) > 1 {
		vecmath.ScaleBlock(block, block, 1/float64(len(s.out)))
	}
}

func (s *ModuleStage) fail(block []float64, err error) {
	s.failures++
	if !s.reported {
		s.reported = true
		s.logger.Error("module stage degraded",
			zap.Error(err),
			zap.Int("block", len(block)),
			zap.Bool("pass_through", s.degraded == DegradedPassThrough))
	}
	if s.degraded == DegradedSilence {
		clear(block)
	}
}
