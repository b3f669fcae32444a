package nn

import (
	"math"
	"math/rand/v2"

	"github.com/born-ml/factory/internal/tensor"
)

// Init carries what every layer constructor needs to allocate its weights.
//
// All layers of a model share one Init so that a fixed seed reproduces the
// exact same weights.
type Init[B tensor.Backend] struct {
	Backend B
	DType   tensor.DataType
	RNG     *rand.Rand
}

// NewInit creates an Init with a PCG generator seeded with seed.
func NewInit[B tensor.Backend](backend B, dtype tensor.DataType, seed uint64) Init[B] {
	return Init[B]{
		Backend: backend,
		DType:   dtype,
		RNG:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Xavier (Glorot) initialization for weights.
//
// Values are drawn from U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
func (in Init[B]) Xavier(fanIn, fanOut int, shape tensor.Shape) *tensor.Tensor[B] {
	bound := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))
	return tensor.Uniform(shape, -bound, bound, in.RNG, in.DType, in.Backend)
}

// Zeros creates a zero tensor, used for biases.
func (in Init[B]) Zeros(shape tensor.Shape) *tensor.Tensor[B] {
	return tensor.Zeros(shape, in.DType, in.Backend)
}

// Full creates a constant tensor.
func (in Init[B]) Full(shape tensor.Shape, value float32) *tensor.Tensor[B] {
	return tensor.Full(shape, value, in.DType, in.Backend)
}
