// Package ops defines the differentiable operations recorded on the gradient tape.
//
// Each operation keeps the RawTensors it read and produced during the forward
// pass and computes input gradients from the output gradient:
//   - AddOp, SubOp, MulOp, MulScalarOp: element-wise arithmetic
//   - SumOp: full reduction to a scalar
//   - MatMulOp, TransposeOp, AddBiasOp: dense layers
//   - ReLUOp: rectified linear unit
//   - Conv2DOp: grouped SAME convolution
//   - MaxPool2DOp: SAME max pooling
//   - BatchNormOp, NormalizeOp: batch normalization with batch or fixed statistics
//   - ReshapeOp, ChunkOp, CatOp: shape manipulation
package ops

import "github.com/born-ml/factory/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// The result has one entry per input; nil entries receive no gradient.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// MultiOutputOperation is an operation producing several outputs, such as Chunk.
//
// The tape collects gradients for all outputs (zero-filling the ones that
// received none) before calling BackwardMulti.
type MultiOutputOperation interface {
	Operation

	// Outputs returns all output tensors produced by this operation.
	Outputs() []*tensor.RawTensor

	// BackwardMulti computes input gradients given gradients for every output.
	BackwardMulti(outputGrads []*tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor
}

// binaryOp holds the bookkeeping shared by two-input operations.
type binaryOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

func newBinaryOp(a, b, output *tensor.RawTensor) binaryOp {
	return binaryOp{inputs: []*tensor.RawTensor{a, b}, output: output}
}

// Inputs returns the input tensors.
func (op *binaryOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns the output tensor.
func (op *binaryOp) Output() *tensor.RawTensor { return op.output }

// unaryOp holds the bookkeeping shared by single-input operations.
type unaryOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns the input tensor.
func (op *unaryOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the output tensor.
func (op *unaryOp) Output() *tensor.RawTensor { return op.output }
