package nn

import (
	"fmt"

	"github.com/born-ml/factory/internal/tensor"
)

// FireKernelSize is the spatial size of every FireParallel kernel.
const FireKernelSize = 3

// FireParallel is a parallel convolution block: the input channels are split
// into n contiguous groups and each group is convolved by its own 3x3 SAME
// kernel producing width/n maps, followed by a bias and ReLU.
//
// It runs as one grouped convolution, so output group g only sees input group
// g and the branch layout of the channel axis is preserved.
//
// Input shape: [batch, rows, cols, inChannels]
// Output shape: [batch, rows, cols, width]
type FireParallel[B tensor.Backend] struct {
	name       string
	inChannels int
	width      int
	groups     int
	kernel     *Parameter[B] // [3, 3, inChannels/groups, width]
	bias       *Parameter[B] // [width]
}

// NewFireParallel creates a FireParallel block.
// Panics if inChannels or width is not divisible by groups.
func NewFireParallel[B tensor.Backend](name string, inChannels, width, groups int, init Init[B]) *FireParallel[B] {
	if groups <= 0 || inChannels%groups != 0 || width%groups != 0 {
		panic(fmt.Sprintf("%s: channels %d -> %d not divisible into %d branches", name, inChannels, width, groups))
	}

	cinG, coutG := inChannels/groups, width/groups
	k := FireKernelSize
	kernel := init.Xavier(k*k*cinG, k*k*coutG, tensor.Shape{k, k, cinG, width})

	return &FireParallel[B]{
		name:       name,
		inChannels: inChannels,
		width:      width,
		groups:     groups,
		kernel:     NewWeight(name+".kernel", kernel),
		bias:       NewParameter(name+".bias", init.Zeros(tensor.Shape{width})),
	}
}

// Forward applies the grouped convolution, bias and ReLU.
func (f *FireParallel[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	if c := x.Shape().Last(); c != f.inChannels {
		panic(fmt.Sprintf("%s: expected %d input channels, got %d", f.name, f.inChannels, c))
	}
	return x.Conv2D(f.kernel.Tensor(), f.groups).AddBias(f.bias.Tensor()).ReLU()
}

// Parameters returns [kernel, bias].
func (f *FireParallel[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{f.kernel, f.bias}
}

// Width returns the number of output channels.
func (f *FireParallel[B]) Width() int {
	return f.width
}

// Name returns the block name.
func (f *FireParallel[B]) Name() string {
	return f.name
}
