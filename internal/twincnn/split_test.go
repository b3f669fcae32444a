package twincnn

import (
	"math/rand/v2"
	"testing"

	"github.com/born-ml/factory/internal/backend/cpu"
	"github.com/born-ml/factory/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomCPU(shape ...int) *tensor.Tensor[*cpu.CPUBackend] {
	rng := rand.New(rand.NewPCG(uint64(len(shape)), 7))
	return tensor.Randn(tensor.Shape(shape), rng, tensor.Float32, cpu.New())
}

func TestSeparate_SplitsChannelsInOrder(t *testing.T) {
	x := randomCPU(4, 8, 8, 64)

	branches, width, err := Separate(x, 2)
	require.NoError(t, err)

	assert.Equal(t, 32, width)
	require.Len(t, branches, 2)
	for _, b := range branches {
		assert.Equal(t, tensor.Shape{4, 8, 8, 32}, b.Shape())
	}
	assert.Equal(t, x.At(1, 2, 3, 0), branches[0].At(1, 2, 3, 0))
	assert.Equal(t, x.At(1, 2, 3, 31), branches[0].At(1, 2, 3, 31))
	assert.Equal(t, x.At(1, 2, 3, 32), branches[1].At(1, 2, 3, 0))
	assert.Equal(t, x.At(1, 2, 3, 63), branches[1].At(1, 2, 3, 31))
}

func TestSeparate_RoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 3, 6} {
		x := randomCPU(2, 3, 3, 12)
		branches, width, err := Separate(x, n)
		require.NoError(t, err)
		assert.Equal(t, 12/n, width)
		assert.Equal(t, x.Data(), branches.Concat().Data(), "n=%d", n)
		assert.Equal(t, x.Shape(), branches.Concat().Shape())
	}
}

func TestSeparate_Errors(t *testing.T) {
	x := randomCPU(1, 2, 2, 6)

	_, _, err := Separate(x, 4)
	require.ErrorIs(t, err, ErrIndivisibleChannels)
	assert.Contains(t, err.Error(), "6 channels into 4 branches")

	_, _, err = Separate(x, 0)
	require.ErrorIs(t, err, ErrIndivisibleChannels)
}

func TestShortcut_InterleavesBranches(t *testing.T) {
	backend := cpu.New()
	// One pixel: fire channels [f0 f1 | f2 f3], pool channels [p0 | p1].
	fire, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 1, 4}, tensor.Float32, backend)
	require.NoError(t, err)
	pool, err := tensor.FromSlice([]float32{10, 20}, tensor.Shape{1, 1, 1, 2}, tensor.Float32, backend)
	require.NoError(t, err)

	merged, channels, err := Shortcut(fire, pool, 2)
	require.NoError(t, err)

	assert.Equal(t, 6, channels)
	assert.Equal(t, []float32{1, 2, 10, 3, 4, 20}, merged.Data())
}

func TestShortcut_ChannelCount(t *testing.T) {
	tests := []struct {
		fire, pool, n int
	}{
		{64, 32, 2},
		{8, 8, 1},
		{12, 24, 4},
	}
	for _, tt := range tests {
		fire := randomCPU(2, 4, 4, tt.fire)
		pool := randomCPU(2, 4, 4, tt.pool)

		merged, channels, err := Shortcut(fire, pool, tt.n)
		require.NoError(t, err)
		assert.Equal(t, tt.n*(tt.fire/tt.n+tt.pool/tt.n), channels)
		assert.Equal(t, channels, merged.Shape().Last())
		assert.Equal(t, tensor.Shape{2, 4, 4, channels}, merged.Shape())
	}
}

func TestShortcut_Errors(t *testing.T) {
	_, _, err := Shortcut(randomCPU(1, 4, 4, 4), randomCPU(1, 2, 2, 4), 2)
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, _, err = Shortcut(randomCPU(1, 4, 4, 4), randomCPU(1, 4, 4, 3), 2)
	require.ErrorIs(t, err, ErrIndivisibleChannels)

	_, _, err = Shortcut(randomCPU(1, 4, 4, 4), randomCPU(4, 4, 4), 2)
	require.ErrorIs(t, err, ErrShapeMismatch)
}
