package nn_test

import (
	"math/rand/v2"
	"testing"

	"github.com/born-ml/factory/internal/autodiff"
	"github.com/born-ml/factory/internal/backend/cpu"
	"github.com/born-ml/factory/internal/nn"
	"github.com/born-ml/factory/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newInit(seed uint64) nn.Init[Backend] {
	return nn.NewInit(autodiff.New(cpu.New()), tensor.Float32, seed)
}

func randn(init nn.Init[Backend], shape ...int) *tensor.Tensor[Backend] {
	return tensor.Randn(tensor.Shape(shape), init.RNG, init.DType, init.Backend)
}

func TestFireParallel_Shapes(t *testing.T) {
	init := newInit(1)
	fire := nn.NewFireParallel("conv1", 4, 8, 2, init)

	out := fire.Forward(randn(init, 2, 5, 5, 4))

	assert.Equal(t, tensor.Shape{2, 5, 5, 8}, out.Shape())
	assert.Equal(t, 8, fire.Width())
	require.Len(t, fire.Parameters(), 2)
	assert.Equal(t, tensor.Shape{3, 3, 2, 8}, fire.Parameters()[0].Tensor().Shape())
	assert.True(t, fire.Parameters()[0].Decay())
	assert.False(t, fire.Parameters()[1].Decay())
	for _, v := range out.Data() {
		assert.GreaterOrEqual(t, v, float32(0))
	}
}

func TestFireParallel_BranchesAreIndependent(t *testing.T) {
	init := newInit(2)
	fire := nn.NewFireParallel("conv", 4, 4, 2, init)
	x := randn(init, 1, 3, 3, 4)
	base := fire.Forward(x).Clone()

	// Change the second input branch only.
	for i := 2; i < len(x.Data()); i += 4 {
		x.Data()[i] += 5
	}
	out := fire.Forward(x)

	for i := 0; i < len(out.Data()); i += 4 {
		assert.Equal(t, base.Data()[i], out.Data()[i])
		assert.Equal(t, base.Data()[i+1], out.Data()[i+1])
	}
}

func TestFireParallel_PanicsOnIndivisible(t *testing.T) {
	init := newInit(3)
	assert.Panics(t, func() { nn.NewFireParallel("conv", 3, 8, 2, init) })
	assert.Panics(t, func() { nn.NewFireParallel("conv", 4, 7, 2, init) })
}

func TestFCParallel(t *testing.T) {
	init := newInit(4)
	fc := nn.NewFCParallel("fc9", 6, 4, 2, init)

	out := fc.Forward(randn(init, 3, 6))

	assert.Equal(t, tensor.Shape{3, 4}, out.Shape())
	require.Len(t, fc.Parameters(), 4)
	assert.Equal(t, tensor.Shape{3, 2}, fc.Parameters()[0].Tensor().Shape())
	assert.Equal(t, "fc9.1.weight", fc.Parameters()[2].Name())
}

func TestFCRegression(t *testing.T) {
	init := newInit(5)
	head := nn.NewFCRegression("fc10", 4, 3, init)

	x := tensor.Zeros(tensor.Shape{2, 4}, tensor.Float32, init.Backend)
	out := head.Forward(x)

	// Zero input and zero bias give zero output; no activation clips it.
	assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.Equal(t, make([]float32, 6), out.Data())
	require.Len(t, head.Parameters(), 2)
}

func TestBatchNorm_TrainAndEval(t *testing.T) {
	init := newInit(6)
	bn := nn.NewBatchNorm("bn", 2, init)
	x := randn(init, 8, 2, 2, 2)

	out := bn.Forward(x)
	mean, variance := out.Moments()
	assert.InDeltaSlice(t, []float32{0, 0}, mean.Data(), 1e-5)
	assert.InDelta(t, 1, variance.Data()[0], 1e-2)

	runMean, runVar := bn.RunningStats()
	batchMean, batchVar := x.Moments()
	for c := 0; c < 2; c++ {
		assert.InDelta(t, 0.001*batchMean.Data()[c], runMean[c], 1e-6)
		assert.InDelta(t, 0.999+0.001*batchVar.Data()[c], runVar[c], 1e-5)
	}

	bn.SetTraining(false)
	evalOut := bn.Forward(x)
	assert.Equal(t, x.Shape(), evalOut.Shape())
	assert.NotEqual(t, out.Data(), evalOut.Data())
}

func TestDropout(t *testing.T) {
	init := newInit(7)
	x := tensor.Ones(tensor.Shape{1000}, tensor.Float32, init.Backend)

	drop := nn.NewDropout[Backend](0.5, rand.New(rand.NewPCG(1, 1)))
	out := drop.Forward(x)

	kept := 0
	for _, v := range out.Data() {
		if v != 0 {
			assert.Equal(t, float32(2), v)
			kept++
		}
	}
	assert.InDelta(t, 500, kept, 60)

	drop.SetTraining(false)
	assert.Same(t, x, drop.Forward(x))

	identity := nn.NewDropout[Backend](1, rand.New(rand.NewPCG(1, 1)))
	assert.Same(t, x, identity.Forward(x))

	assert.Panics(t, func() { nn.NewDropout[Backend](0, nil) })
}

func TestMaxPool2D_OutputShape(t *testing.T) {
	init := newInit(8)
	pool := nn.NewMaxPool2D[Backend](2, 2)

	x := randn(init, 2, 5, 4, 3)
	out := pool.Forward(x)

	assert.Equal(t, tensor.Shape{2, 3, 2, 3}, out.Shape())
	assert.Equal(t, out.Shape(), pool.OutputShape(x.Shape()))
}

func TestLoss(t *testing.T) {
	backend := autodiff.New(cpu.New())
	pred, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.Float32, backend)
	require.NoError(t, err)
	target, err := tensor.FromSlice([]float32{0, 0, 0, 0}, tensor.Shape{2, 2}, tensor.Float32, backend)
	require.NoError(t, err)
	prev, err := tensor.FromSlice([]float32{1, 1, 1, 1}, tensor.Shape{2, 2}, tensor.Float32, backend)
	require.NoError(t, err)

	// sum of squares = 1+4+9+16 = 30
	assert.InDelta(t, 7.5, nn.Loss(pred, target, nil, nn.LossL2).Item(), 1e-6)
	assert.InDelta(t, 7.5, nn.Loss(pred, target, nil, nn.LossMSE).Item(), 1e-6)

	// with predPrev: 4+9+16+25 = 54
	assert.InDelta(t, 13.5, nn.Loss(pred, target, prev, nn.LossL2).Item(), 1e-6)

	assert.Panics(t, func() { nn.Loss(pred, prev.Reshape(4), nil, nn.LossL2) })
	assert.Panics(t, func() { nn.Loss(pred, target, nil, "huber") })
	assert.True(t, nn.LossMSE.Valid())
	assert.False(t, nn.LossFunction("huber").Valid())
}

func TestLoss_GradientsReachParameters(t *testing.T) {
	init := newInit(9)
	init.Backend.Tape().StartRecording()
	layer := nn.NewLinear("fc", 3, 2, init)

	x := randn(init, 4, 3)
	target := tensor.Zeros(tensor.Shape{4, 2}, tensor.Float32, init.Backend)
	loss := nn.Loss(layer.Forward(x), target, nil, nn.LossL2)

	grads := autodiff.Backward(loss, init.Backend)
	for _, p := range layer.Parameters() {
		require.Contains(t, grads, p.Raw(), p.Name())
		assert.Equal(t, p.Tensor().Shape(), grads[p.Raw()].Shape())
	}
}

func TestInit_Deterministic(t *testing.T) {
	a := nn.NewLinear("fc", 8, 4, newInit(42))
	b := nn.NewLinear("fc", 8, 4, newInit(42))
	c := nn.NewLinear("fc", 8, 4, newInit(43))

	assert.Equal(t, a.Weight().Tensor().Data(), b.Weight().Tensor().Data())
	assert.NotEqual(t, a.Weight().Tensor().Data(), c.Weight().Tensor().Data())
	assert.Equal(t, 8*4+4, nn.CountParameters(a.Parameters()))
}
