package ops

import "github.com/born-ml/factory/internal/tensor"

// Conv2DOp represents a grouped stride-1 SAME convolution.
//
// Forward:  output[N, H, W, Cout] = Conv2D(input[N, H, W, Cin], kernel[KH, KW, Cin/groups, Cout])
//
// Backward:
//   - input gradient: transposed convolution of outputGrad with the kernel
//   - kernel gradient: correlation of input patches with outputGrad
//
// Both are computed per group, so gradients never cross branch boundaries.
type Conv2DOp struct {
	binaryOp
	groups int
}

// NewConv2DOp creates a new Conv2DOp.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, groups int) *Conv2DOp {
	return &Conv2DOp{binaryOp: newBinaryOp(input, kernel, output), groups: groups}
}

// Backward computes gradients for input and kernel.
func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	input, kernel := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		backend.Conv2DInputBackward(outputGrad, kernel, input.Shape(), op.groups),
		backend.Conv2DKernelBackward(outputGrad, input, kernel.Shape(), op.groups),
	}
}

// MaxPool2DOp represents SAME-padded max pooling.
//
// Backward routes each output gradient to the input position that held the
// window maximum. The position is recomputed from the saved input.
type MaxPool2DOp struct {
	unaryOp
	kernelSize int
	stride     int
}

// NewMaxPool2DOp creates a new MaxPool2DOp.
func NewMaxPool2DOp(input, output *tensor.RawTensor, kernelSize, stride int) *MaxPool2DOp {
	return &MaxPool2DOp{
		unaryOp:    unaryOp{input: input, output: output},
		kernelSize: kernelSize,
		stride:     stride,
	}
}

// Backward computes the input gradient.
func (op *MaxPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MaxPool2DBackward(outputGrad, op.input, op.kernelSize, op.stride)}
}
