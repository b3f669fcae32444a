package ops

import "github.com/born-ml/factory/internal/tensor"

// AddOp represents element-wise addition: output = a + b.
//
// Backward: both inputs receive outputGrad unchanged.
type AddOp struct{ binaryOp }

// NewAddOp creates a new AddOp.
func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{newBinaryOp(a, b, output)}
}

// Backward computes input gradients for addition.
func (op *AddOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad, outputGrad}
}

// SubOp represents element-wise subtraction: output = a - b.
//
// Backward: da = outputGrad, db = -outputGrad.
type SubOp struct{ binaryOp }

// NewSubOp creates a new SubOp.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{newBinaryOp(a, b, output)}
}

// Backward computes input gradients for subtraction.
func (op *SubOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad, backend.MulScalar(outputGrad, -1)}
}

// MulOp represents element-wise multiplication: output = a * b.
//
// Backward: da = outputGrad * b, db = outputGrad * a.
type MulOp struct{ binaryOp }

// NewMulOp creates a new MulOp.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{newBinaryOp(a, b, output)}
}

// Backward computes input gradients for multiplication.
func (op *MulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		backend.Mul(outputGrad, b),
		backend.Mul(outputGrad, a),
	}
}

// MulScalarOp represents output = x * scalar.
type MulScalarOp struct {
	unaryOp
	scalar float32
}

// NewMulScalarOp creates a new MulScalarOp.
func NewMulScalarOp(x *tensor.RawTensor, scalar float32, output *tensor.RawTensor) *MulScalarOp {
	return &MulScalarOp{unaryOp: unaryOp{input: x, output: output}, scalar: scalar}
}

// Backward computes dx = outputGrad * scalar.
func (op *MulScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(outputGrad, op.scalar)}
}

// SumOp represents the full reduction output = sum(x), with output shape [1].
//
// Backward: every element of x receives the scalar output gradient.
type SumOp struct{ unaryOp }

// NewSumOp creates a new SumOp.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{unaryOp{input: x, output: output}}
}

// Backward broadcasts the scalar gradient to the input shape.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := tensor.MustRaw(op.input.Shape(), outputGrad.DType(), backend.Device())
	grad.Fill(outputGrad.Data()[0])
	return []*tensor.RawTensor{grad}
}

// ReLUOp represents output = max(0, x).
type ReLUOp struct{ unaryOp }

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(x, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{unaryOp{input: x, output: output}}
}

// Backward passes the gradient where x was positive.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.ReLUBackward(outputGrad, op.input)}
}
