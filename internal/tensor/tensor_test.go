package tensor_test

import (
	"math/rand/v2"
	"testing"

	"github.com/born-ml/factory/internal/backend/cpu"
	"github.com/born-ml/factory/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_NumElementsAndStrides(t *testing.T) {
	s := tensor.Shape{4, 8, 8, 64}
	assert.Equal(t, 4*8*8*64, s.NumElements())
	assert.Equal(t, []int{8 * 8 * 64, 8 * 64, 64, 1}, s.ComputeStrides())
	assert.Equal(t, 64, s.Last())
	assert.Equal(t, 1, tensor.Shape{}.NumElements())

	outer, inner := s.Split(3)
	assert.Equal(t, 4*8*8, outer)
	assert.Equal(t, 1, inner)

	outer, inner = s.Split(1)
	assert.Equal(t, 4, outer)
	assert.Equal(t, 8*64, inner)
}

func TestShape_Validate(t *testing.T) {
	require.NoError(t, tensor.Shape{1, 2}.Validate())
	require.Error(t, tensor.Shape{1, 0}.Validate())
	require.Error(t, tensor.Shape{-1}.Validate())
}

func TestShape_NormalizeDim(t *testing.T) {
	s := tensor.Shape{2, 3, 4}
	assert.Equal(t, 2, s.NormalizeDim(-1))
	assert.Equal(t, 0, s.NormalizeDim(0))
	assert.Panics(t, func() { s.NormalizeDim(3) })
}

func TestDataType_Float16Rounding(t *testing.T) {
	// 1/3 is not representable in half precision.
	v := float32(1.0 / 3.0)
	h := tensor.Float16.Scalar(v)
	assert.NotEqual(t, v, h)
	assert.InDelta(t, v, h, 1e-3)
	assert.Equal(t, v, tensor.Float32.Scalar(v))

	data := []float32{v, 2, 65504}
	tensor.Float16.Round(data)
	assert.Equal(t, h, data[0])
	assert.Equal(t, float32(2), data[1])
	assert.Equal(t, float32(65504), data[2])

	assert.Equal(t, tensor.Float32, tensor.Promote(tensor.Float16, tensor.Float32))
	assert.Equal(t, tensor.Float16, tensor.Promote(tensor.Float16, tensor.Float16))
}

func TestFromSlice(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, tensor.Float32, backend)
	require.NoError(t, err)
	assert.Equal(t, float32(6), x.At(1, 2))
	assert.Equal(t, float32(2), x.At(0, 1))

	_, err = tensor.FromSlice([]float32{1, 2}, tensor.Shape{3}, tensor.Float32, backend)
	require.Error(t, err)
}

func TestTensor_ReshapeInfersDimension(t *testing.T) {
	backend := cpu.New()
	x := tensor.Zeros(tensor.Shape{4, 2, 2, 8}, tensor.Float32, backend)

	flat := x.Reshape(4, -1)
	assert.Equal(t, tensor.Shape{4, 32}, flat.Shape())

	assert.Panics(t, func() { x.Reshape(-1, -1) })
	assert.Panics(t, func() { x.Reshape(5, -1) })
}

func TestTensor_ChunkCatRoundTrip(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewPCG(1, 2))
	x := tensor.Randn(tensor.Shape{2, 3, 3, 6}, rng, tensor.Float32, backend)

	parts := x.Chunk(3, 3)
	require.Len(t, parts, 3)
	for _, p := range parts {
		assert.Equal(t, tensor.Shape{2, 3, 3, 2}, p.Shape())
	}

	back := tensor.Cat(parts, 3)
	assert.Equal(t, x.Data(), back.Data())
}

func TestUniform_Deterministic(t *testing.T) {
	backend := cpu.New()
	a := tensor.Uniform(tensor.Shape{16}, -1, 1, rand.New(rand.NewPCG(7, 7)), tensor.Float32, backend)
	b := tensor.Uniform(tensor.Shape{16}, -1, 1, rand.New(rand.NewPCG(7, 7)), tensor.Float32, backend)
	assert.Equal(t, a.Data(), b.Data())
	for _, v := range a.Data() {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.Less(t, v, float32(1))
	}
}

func TestFull_Float16(t *testing.T) {
	backend := cpu.New()
	x := tensor.Full(tensor.Shape{3}, 0.1, tensor.Float16, backend)
	for _, v := range x.Data() {
		assert.Equal(t, tensor.Float16.Scalar(0.1), v)
	}
	assert.Equal(t, "Tensor[float16][3] on CPU", x.String())
}

func TestSamePoolSize(t *testing.T) {
	assert.Equal(t, 16, tensor.SamePoolSize(32, 2))
	assert.Equal(t, 3, tensor.SamePoolSize(5, 2))
	assert.Equal(t, 1, tensor.SamePoolSize(1, 2))
}
