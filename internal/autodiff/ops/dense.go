package ops

import "github.com/born-ml/factory/internal/tensor"

// MatMulOp represents matrix multiplication: output = a @ b.
//
// Backward:
//
//	da = outputGrad @ b^T
//	db = a^T @ outputGrad
type MatMulOp struct{ binaryOp }

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{newBinaryOp(a, b, output)}
}

// Backward computes input gradients for matrix multiplication.
func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		backend.MatMul(outputGrad, backend.Transpose(b)),
		backend.MatMul(backend.Transpose(a), outputGrad),
	}
}

// TransposeOp represents a 2-D transpose.
type TransposeOp struct{ unaryOp }

// NewTransposeOp creates a new TransposeOp.
func NewTransposeOp(x, output *tensor.RawTensor) *TransposeOp {
	return &TransposeOp{unaryOp{input: x, output: output}}
}

// Backward transposes the gradient back.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Transpose(outputGrad)}
}

// AddBiasOp represents output = x + bias broadcast over the last axis.
//
// Backward: dx = outputGrad, dbias = sum of outputGrad over all but the last axis.
type AddBiasOp struct{ binaryOp }

// NewAddBiasOp creates a new AddBiasOp.
func NewAddBiasOp(x, bias, output *tensor.RawTensor) *AddBiasOp {
	return &AddBiasOp{newBinaryOp(x, bias, output)}
}

// Backward computes input gradients for the bias addition.
func (op *AddBiasOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad, backend.SumToLast(outputGrad)}
}
