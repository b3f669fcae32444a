package nn

import (
	"fmt"

	"github.com/born-ml/factory/internal/tensor"
)

// Linear implements a fully connected layer: y = x @ W + b.
//
//   - x has shape [batch, inFeatures]
//   - W has shape [inFeatures, outFeatures]
//   - b has shape [outFeatures]
//
// Weights use Xavier initialization, biases start at zero.
type Linear[B tensor.Backend] struct {
	name        string
	inFeatures  int
	outFeatures int
	weight      *Parameter[B]
	bias        *Parameter[B]
}

// NewLinear creates a new Linear layer.
func NewLinear[B tensor.Backend](name string, inFeatures, outFeatures int, init Init[B]) *Linear[B] {
	weight := init.Xavier(inFeatures, outFeatures, tensor.Shape{inFeatures, outFeatures})
	return &Linear[B]{
		name:        name,
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewWeight(name+".weight", weight),
		bias:        NewParameter(name+".bias", init.Zeros(tensor.Shape{outFeatures})),
	}
}

// Forward computes x @ W + b.
func (l *Linear[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	shape := x.Shape()
	if len(shape) != 2 || shape[1] != l.inFeatures {
		panic(fmt.Sprintf("%s: expected input [batch, %d], got %v", l.name, l.inFeatures, shape))
	}
	return x.MatMul(l.weight.Tensor()).AddBias(l.bias.Tensor())
}

// Parameters returns [weight, bias].
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// FCParallel is a parallel fully connected block: the features are split into
// n contiguous groups, each mapped to width/n outputs by its own Linear + ReLU,
// and the results are concatenated in group order.
//
// Input shape: [batch, inFeatures]
// Output shape: [batch, width]
type FCParallel[B tensor.Backend] struct {
	name     string
	width    int
	branches []*Linear[B]
}

// NewFCParallel creates a parallel dense block.
// Panics if inFeatures or width is not divisible by groups.
func NewFCParallel[B tensor.Backend](name string, inFeatures, width, groups int, init Init[B]) *FCParallel[B] {
	if groups <= 0 || inFeatures%groups != 0 || width%groups != 0 {
		panic(fmt.Sprintf("%s: features %d -> %d not divisible into %d branches", name, inFeatures, width, groups))
	}

	branches := make([]*Linear[B], groups)
	for g := range branches {
		branches[g] = NewLinear(fmt.Sprintf("%s.%d", name, g), inFeatures/groups, width/groups, init)
	}
	return &FCParallel[B]{name: name, width: width, branches: branches}
}

// Forward applies each branch to its feature group.
func (f *FCParallel[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	if len(f.branches) == 1 {
		return f.branches[0].Forward(x).ReLU()
	}

	groups := x.Chunk(len(f.branches), 1)
	outs := make([]*tensor.Tensor[B], len(groups))
	for g, in := range groups {
		outs[g] = f.branches[g].Forward(in).ReLU()
	}
	return tensor.Cat(outs, 1)
}

// Parameters returns the weights of every branch in order.
func (f *FCParallel[B]) Parameters() []*Parameter[B] {
	params := make([]*Parameter[B], 0, 2*len(f.branches))
	for _, b := range f.branches {
		params = append(params, b.Parameters()...)
	}
	return params
}

// Width returns the number of output features.
func (f *FCParallel[B]) Width() int {
	return f.width
}

// FCRegression is the linear output head: a dense layer without activation.
type FCRegression[B tensor.Backend] struct {
	*Linear[B]
}

// NewFCRegression creates the regression head.
func NewFCRegression[B tensor.Backend](name string, inFeatures, outputs int, init Init[B]) *FCRegression[B] {
	return &FCRegression[B]{NewLinear(name, inFeatures, outputs, init)}
}
