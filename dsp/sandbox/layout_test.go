package sandbox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanLayoutRegionsDoNotOverlap(t *testing.T) {
	for _, frames := range []int{1, 7, 64, 511, 4096} {
		l, err := PlanLayout(100, 2, 3, frames, 1<<20)
		require.NoError(t, err)

		require.Zero(t, l.InBuf%alignment)
		require.Equal(t, uint32(112), l.InBuf)
		require.GreaterOrEqual(t, l.OutBuf, l.InChannel(1)+uint32(frames*sampleBytes))
		require.GreaterOrEqual(t, l.InTable, l.OutChannel(2)+uint32(frames*sampleBytes))
		require.Equal(t, l.InTable+2*pointerSize, l.OutTable)
		require.Equal(t, l.OutTable+3*pointerSize, l.End)
	}
}

func TestPlanLayoutCapacity(t *testing.T) {
	l, err := PlanLayout(16, 1, 1, 64, 1024)
	require.NoError(t, err)
	require.LessOrEqual(t, l.End, uint32(1024))

	_, err = PlanLayout(16, 1, 1, 4096, 1024)
	require.ErrorIs(t, err, ErrResourceExhausted)

	_, err = PlanLayout(16, 1<<20, 1<<20, 1<<20, ^uint32(0))
	require.ErrorIs(t, err, ErrResourceExhausted)

	_, err = PlanLayout(16, -1, 1, 4, 1024)
	require.Error(t, err)
}

func TestArenaBoundsChecked(t *testing.T) {
	a := arena{mem: make([]byte, 32)}

	require.NoError(t, a.putSamples(16, []float64{0.5, -1, 2, 3}))
	got := make([]float64, 4)
	require.NoError(t, a.getSamples(got, 16))
	require.Equal(t, []float64{0.5, -1, 2, 3}, got)

	require.ErrorIs(t, a.putSamples(20, []float64{1, 2, 3, 4}), ErrResourceExhausted)
	require.ErrorIs(t, a.getSamples(got, 30), ErrResourceExhausted)
	require.ErrorIs(t, a.zeroSamples(28, 2), ErrResourceExhausted)

	require.NoError(t, a.putPointer(28, 0xdeadbeef))
	ptr, err := a.pointer(28)
	require.NoError(t, err)
	require.Equal(t, uint32(0xdeadbeef), ptr)

	require.ErrorIs(t, a.putPointer(29, 1), ErrResourceExhausted)
}
