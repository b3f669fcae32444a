package cpu

import (
	"math/rand/v2"
	"testing"

	"github.com/born-ml/factory/internal/tensor"
	"github.com/stretchr/testify/require"
)

func randomRaw(t *testing.T, shape tensor.Shape, seed uint64) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(seed, seed+1))
	for i := range r.Data() {
		r.Data()[i] = float32(rng.NormFloat64())
	}
	return r
}

func rawFrom(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.Data(), data)
	return r
}

// dot returns sum(a*b), used to build scalar objectives for gradient checks.
func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// numericGrad estimates d/dx[i] of f by central differences.
func numericGrad(x *tensor.RawTensor, i int, f func() float64) float64 {
	const h = 1e-2
	orig := x.Data()[i]
	x.Data()[i] = orig + h
	plus := f()
	x.Data()[i] = orig - h
	minus := f()
	x.Data()[i] = orig
	return (plus - minus) / (2 * h)
}
