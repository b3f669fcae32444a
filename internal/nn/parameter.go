package nn

import (
	"github.com/born-ml/factory/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Gradients returned by autodiff.Backward are keyed by the parameter's
// RawTensor, so a Parameter must never replace its tensor: optimizers update
// the data in place.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[B]
	decay  bool // weight decay applies
	grad   *tensor.RawTensor
}

// NewParameter creates a trainable parameter exempt from weight decay (biases,
// batch-norm scale and offset).
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t}
}

// NewWeight creates a trainable parameter subject to weight decay.
func NewWeight[B tensor.Backend](name string, t *tensor.Tensor[B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t, decay: true}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[B] {
	return p.tensor
}

// Raw returns the underlying RawTensor, the key of this parameter in a
// gradient map.
func (p *Parameter[B]) Raw() *tensor.RawTensor {
	return p.tensor.Raw()
}

// Decay reports whether weight decay applies to this parameter.
func (p *Parameter[B]) Decay() bool {
	return p.decay
}

// Grad returns the gradient from the last backward pass, or nil.
func (p *Parameter[B]) Grad() *tensor.RawTensor {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.RawTensor) {
	p.grad = grad
}

// ZeroGrad clears the gradient.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}

// CountParameters returns the number of scalar weights in params.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	n := 0
	for _, p := range params {
		n += p.tensor.NumElements()
	}
	return n
}
