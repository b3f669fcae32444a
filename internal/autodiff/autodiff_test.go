package autodiff_test

import (
	"math/rand/v2"
	"testing"

	"github.com/born-ml/factory/internal/autodiff"
	"github.com/born-ml/factory/internal/backend/cpu"
	"github.com/born-ml/factory/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() Backend {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	return backend
}

func fromSlice(t *testing.T, data []float32, shape tensor.Shape, backend Backend) *tensor.Tensor[Backend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, tensor.Float32, backend)
	require.NoError(t, err)
	return x
}

func TestBackward_Square(t *testing.T) {
	backend := newBackend()
	x := tensor.Full(tensor.Shape{1}, 2, tensor.Float32, backend)

	y := x.Mul(x)
	grads := autodiff.Backward(y, backend)

	require.Contains(t, grads, x.Raw())
	assert.Equal(t, float32(4), grads[x.Raw()].Data()[0])
}

func TestBackward_AccumulatesSharedInputs(t *testing.T) {
	backend := newBackend()
	x := fromSlice(t, []float32{1, 2, 3}, tensor.Shape{3}, backend)

	// L = sum(x + x*3) => dL/dx = 4
	y := x.Add(x.MulScalar(3)).Sum()
	grads := autodiff.Backward(y, backend)

	assert.Equal(t, []float32{4, 4, 4}, grads[x.Raw()].Data())
}

func TestBackward_SubAndSum(t *testing.T) {
	backend := newBackend()
	a := fromSlice(t, []float32{1, 2}, tensor.Shape{2}, backend)
	b := fromSlice(t, []float32{5, 7}, tensor.Shape{2}, backend)

	d := a.Sub(b)
	loss := d.Mul(d).Sum()
	grads := autodiff.Backward(loss, backend)

	assert.Equal(t, []float32{-8, -10}, grads[a.Raw()].Data())
	assert.Equal(t, []float32{8, 10}, grads[b.Raw()].Data())
}

func TestBackward_DenseLayer(t *testing.T) {
	backend := newBackend()
	x := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	w := fromSlice(t, []float32{1, 0, 0, 1}, tensor.Shape{2, 2}, backend)
	bias := fromSlice(t, []float32{0.5, -0.5}, tensor.Shape{2}, backend)

	out := x.MatMul(w).AddBias(bias).ReLU().Sum()
	grads := autodiff.Backward(out, backend)

	// All pre-activations are positive, so dL/dy = 1 everywhere.
	assert.Equal(t, []float32{4, 4, 6, 6}, grads[w.Raw()].Data())
	assert.Equal(t, []float32{2, 2}, grads[bias.Raw()].Data())
	assert.Equal(t, []float32{1, 1, 1, 1}, grads[x.Raw()].Data())
}

func TestBackward_ChunkAndCat(t *testing.T) {
	backend := newBackend()
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 4}, backend)
	weights := fromSlice(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 4}, backend)

	parts := x.Chunk(2, 1)
	swapped := tensor.Cat([]*tensor.Tensor[Backend]{parts[1], parts[0]}, 1)
	loss := swapped.Mul(weights).Sum()
	grads := autodiff.Backward(loss, backend)

	// x[:, 2:4] sits in the first half of swapped, x[:, 0:2] in the second.
	assert.Equal(t, []float32{3, 4, 1, 2, 7, 8, 5, 6}, grads[x.Raw()].Data())
}

func TestBackward_UnusedChunkGetsZeroGradient(t *testing.T) {
	backend := newBackend()
	x := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 4}, backend)

	parts := x.Chunk(2, 1)
	loss := parts[0].Sum()
	grads := autodiff.Backward(loss, backend)

	assert.Equal(t, []float32{1, 1, 0, 0}, grads[x.Raw()].Data())
}

func TestBackward_ConvPoolReshape(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewPCG(3, 4))
	x := tensor.Randn(tensor.Shape{2, 4, 4, 4}, rng, tensor.Float32, backend)
	k := tensor.Randn(tensor.Shape{3, 3, 2, 4}, rng, tensor.Float32, backend)

	objective := func() *tensor.Tensor[Backend] {
		y := tensor.New(backend.Conv2D(x.Raw(), k.Raw(), 2), backend)
		y = tensor.New(backend.MaxPool2D(y.Raw(), 2, 2), backend)
		return y.Reshape(2, -1).Sum()
	}

	grads := autodiff.Backward(objective(), backend)
	backend.Tape().Clear()
	require.Equal(t, k.Shape(), grads[k.Raw()].Shape())

	// Central differences on a few kernel entries.
	backend.Tape().StopRecording()
	const h = 1e-3
	for _, i := range []int{0, 7, 20, 35} {
		orig := k.Data()[i]
		k.Data()[i] = orig + h
		plus := objective().Item()
		k.Data()[i] = orig - h
		minus := objective().Item()
		k.Data()[i] = orig
		assert.InDelta(t, (plus-minus)/(2*h), grads[k.Raw()].Data()[i], 5e-2, "kernel[%d]", i)
	}
}

func TestBackward_BatchNormGradientsReachAffine(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewPCG(5, 6))
	x := tensor.Randn(tensor.Shape{4, 2, 2, 3}, rng, tensor.Float32, backend)
	gamma := tensor.Ones(tensor.Shape{3}, tensor.Float32, backend)
	beta := tensor.Zeros(tensor.Shape{3}, tensor.Float32, backend)

	y := tensor.New(backend.BatchNorm(x.Raw(), gamma.Raw(), beta.Raw(), 1e-3), backend)
	loss := y.Sum()
	grads := autodiff.Backward(loss, backend)

	// d/dbeta sum(y) = count per channel; d/dgamma = sum(xhat) = 0.
	assert.InDeltaSlice(t, []float32{16, 16, 16}, grads[beta.Raw()].Data(), 1e-4)
	assert.InDeltaSlice(t, []float32{0, 0, 0}, grads[gamma.Raw()].Data(), 1e-3)
	for _, v := range grads[x.Raw()].Data() {
		assert.InDelta(t, 0, v, 1e-3)
	}
}

func TestTape_RecordingControl(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := tensor.Ones(tensor.Shape{2}, tensor.Float32, backend)

	x.Add(x)
	assert.Equal(t, 0, backend.Tape().NumOps())

	backend.Tape().StartRecording()
	x.Add(x)
	assert.Equal(t, 1, backend.Tape().NumOps())

	backend.Tape().Clear()
	assert.Equal(t, 0, backend.Tape().NumOps())
	assert.True(t, backend.Tape().IsRecording())

	assert.Panics(t, func() { autodiff.Backward(x, backend) })
	assert.Equal(t, "Autodiff(CPU)", backend.Name())
}

func TestBackward_DoesNotRecordGradientOps(t *testing.T) {
	backend := newBackend()
	x := tensor.Full(tensor.Shape{1}, 3, tensor.Float32, backend)
	y := x.Mul(x)

	before := backend.Tape().NumOps()
	autodiff.Backward(y, backend)
	assert.Equal(t, before, backend.Tape().NumOps())
	assert.True(t, backend.Tape().IsRecording())
}
