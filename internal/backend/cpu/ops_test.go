package cpu

import (
	"testing"

	"github.com/born-ml/factory/internal/tensor"
	"github.com/stretchr/testify/assert"
)

func TestElementwise(t *testing.T) {
	backend := New()
	a := rawFrom(t, []float32{1, -2, 3}, tensor.Shape{3})
	b := rawFrom(t, []float32{4, 5, -6}, tensor.Shape{3})

	assert.Equal(t, []float32{5, 3, -3}, backend.Add(a, b).Data())
	assert.Equal(t, []float32{-3, -7, 9}, backend.Sub(a, b).Data())
	assert.Equal(t, []float32{4, -10, -18}, backend.Mul(a, b).Data())
	assert.Equal(t, []float32{2, -4, 6}, backend.MulScalar(a, 2).Data())
	assert.Equal(t, []float32{1, 0, 3}, backend.ReLU(a).Data())
	assert.Equal(t, []float32{4, 0, -6}, backend.ReLUBackward(b, a).Data())
	assert.Equal(t, []float32{2}, backend.Sum(a).Data())

	assert.Panics(t, func() { backend.Add(a, rawFrom(t, []float32{1, 2}, tensor.Shape{2})) })
}

func TestAddBiasAndSumToLast(t *testing.T) {
	backend := New()
	x := rawFrom(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2})
	bias := rawFrom(t, []float32{10, 20}, tensor.Shape{2})

	assert.Equal(t, []float32{11, 22, 13, 24, 15, 26}, backend.AddBias(x, bias).Data())
	assert.Equal(t, []float32{9, 12}, backend.SumToLast(x).Data())
}

func TestMatMulAndTranspose(t *testing.T) {
	backend := New()
	a := rawFrom(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := rawFrom(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	c := backend.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 2}, c.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, c.Data())

	at := backend.Transpose(a)
	assert.Equal(t, tensor.Shape{3, 2}, at.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, at.Data())

	assert.Panics(t, func() { backend.MatMul(a, a) })
}

func TestChunkAndCat(t *testing.T) {
	backend := New()
	// [1, 1, 2, 4]: one pixel row with two pixels of four channels.
	x := rawFrom(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{1, 1, 2, 4})

	parts := backend.Chunk(x, 2, -1)
	assert.Equal(t, []float32{1, 2, 5, 6}, parts[0].Data())
	assert.Equal(t, []float32{3, 4, 7, 8}, parts[1].Data())

	assert.Equal(t, x.Data(), backend.Cat(parts, 3).Data())

	// Interleaving order is preserved by Cat.
	swapped := backend.Cat([]*tensor.RawTensor{parts[1], parts[0]}, 3)
	assert.Equal(t, []float32{3, 4, 1, 2, 7, 8, 5, 6}, swapped.Data())

	assert.Panics(t, func() { backend.Chunk(x, 3, 3) })
}

func TestReshape(t *testing.T) {
	backend := New()
	x := rawFrom(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 2, 2, 1})
	y := backend.Reshape(x, tensor.Shape{1, 4})
	assert.Equal(t, tensor.Shape{1, 4}, y.Shape())
	assert.Equal(t, x.Data(), y.Data())
	assert.Panics(t, func() { backend.Reshape(x, tensor.Shape{3}) })
}

func TestFloat16ResultsAreRounded(t *testing.T) {
	backend := New()
	a, _ := tensor.NewRaw(tensor.Shape{1}, tensor.Float16, tensor.CPU)
	a.Data()[0] = 1
	out := backend.MulScalar(a, 1.0/3.0)
	assert.Equal(t, tensor.Float16, out.DType())
	assert.Equal(t, tensor.Float16.Scalar(1.0/3.0), out.Data()[0])
}
