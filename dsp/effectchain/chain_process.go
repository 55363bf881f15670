package effectchain

import (
	"go.uber.org/zap"

	"github.com/cwbudde/algo-vecmath"
)

// Process renders one block. src is the mono source of n = len(src)
// frames; out receives one channel per prepared output, each at least n
// long. Blocks longer than the prepared size are rendered as silence.
func (c *Chain) Process(src []float64, out [][]float64) {
	n := len(src)
	if n == 0 {
		return
	}
	if n > len(c.dry) || len(out) > len(c.wet) {
		c.silence(out, n)
		return
	}

	dry := c.dry[:n]
	copy(dry, src)
	if c.module != nil {
		c.module.Process(dry)
	}

	for ch, dst := range out {
		dst = dst[:n]

		if c.policy == MixPassThrough {
			copy(dst, dry)
			continue
		}

		wet := c.wet[ch][:n]
		copy(wet, dry)
		if s := c.Pitch(ch); s != nil {
			s.Process(wet)
		} else if c.policy == MixSum {
			// No pitch stage: the channel passes the module output.
			copy(dst, dry)
			continue
		}

		copy(dst, wet)
		if c.policy == MixSum {
			vecmath.AddBlockInPlace(dst, dry)
		}
	}
}

func (c *Chain) silence(out [][]float64, n int) {
	for _, dst := range out {
		clear(dst[:min(n, len(dst))])
	}
	if !c.oversize {
		c.oversize = true
		c.logger.Warn("block exceeds prepared size, rendering silence",
			zap.Int("block", n),
			zap.Int("prepared", len(c.dry)),
			zap.Int("channels", len(out)))
	}
}
