package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/factory/internal/tensor"
)

// Dropout implements inverted dropout: each element is kept with probability
// keep and scaled by 1/keep, otherwise zeroed.
//
// With keep == 1 or outside training, Forward returns its input unchanged.
type Dropout[B tensor.Backend] struct {
	keep     float32
	rng      *rand.Rand
	training bool
}

// NewDropout creates a dropout layer in training mode.
// Panics unless 0 < keep <= 1.
func NewDropout[B tensor.Backend](keep float32, rng *rand.Rand) *Dropout[B] {
	if keep <= 0 || keep > 1 {
		panic(fmt.Sprintf("dropout: keep probability %v out of (0, 1]", keep))
	}
	return &Dropout[B]{keep: keep, rng: rng, training: true}
}

// SetTraining enables or disables dropout.
func (d *Dropout[B]) SetTraining(training bool) {
	d.training = training
}

// Keep returns the keep probability.
func (d *Dropout[B]) Keep() float32 {
	return d.keep
}

// Forward applies a fresh random mask.
func (d *Dropout[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	if !d.training || d.keep >= 1 {
		return x
	}

	mask := tensor.Zeros(x.Shape(), x.DType(), x.Backend())
	scale := x.DType().Scalar(1 / d.keep)
	md := mask.Data()
	for i := range md {
		if d.rng.Float32() < d.keep {
			md[i] = scale
		}
	}
	return x.Mul(mask)
}

// Parameters returns nil; dropout has no weights.
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return nil
}
