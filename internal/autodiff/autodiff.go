// Package autodiff implements automatic differentiation using the decorator pattern.
//
// AutodiffBackend wraps any tensor.Backend and records every differentiable
// kernel on a GradientTape while recording is enabled. Gradients are keyed by
// RawTensor identity, so parameters are looked up by their Raw() pointer.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := model.Loss(...)
//	grads := autodiff.Backward(loss, backend)
//	optimizer.Step(grads)
//	backend.Tape().Clear()
package autodiff

import (
	"github.com/born-ml/factory/internal/autodiff/ops"
	"github.com/born-ml/factory/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

func (b *AutodiffBackend[B]) record(op ops.Operation) {
	if b.tape.IsRecording() {
		b.tape.Record(op)
	}
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(x, y)
	b.record(ops.NewAddOp(x, y, result))
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(x, y)
	b.record(ops.NewSubOp(x, y, result))
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(x, y)
	b.record(ops.NewMulOp(x, y, result))
	return result
}

// MulScalar multiplies by a constant and records the operation.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	result := b.inner.MulScalar(x, s)
	b.record(ops.NewMulScalarOp(x, s, result))
	return result
}

// Sum reduces to a scalar and records the operation.
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sum(x)
	b.record(ops.NewSumOp(x, result))
	return result
}

// SumToLast is not differentiated; it only serves backward passes.
func (b *AutodiffBackend[B]) SumToLast(x *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.SumToLast(x)
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(x, y)
	b.record(ops.NewMatMulOp(x, y, result))
	return result
}

// Transpose transposes a 2-D tensor and records the operation.
//
// The CPU backend copies on transpose, so the result is a new RawTensor and
// must be on the tape for gradients to reach the original.
func (b *AutodiffBackend[B]) Transpose(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Transpose(x)
	b.record(ops.NewTransposeOp(x, result))
	return result
}

// AddBias adds a per-channel bias and records the operation.
func (b *AutodiffBackend[B]) AddBias(x, bias *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.AddBias(x, bias)
	b.record(ops.NewAddBiasOp(x, bias, result))
	return result
}

// ReLU applies max(0, x) and records the operation.
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.ReLU(x)
	b.record(ops.NewReLUOp(x, result))
	return result
}

// ReLUBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) ReLUBackward(grad, x *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.ReLUBackward(grad, x)
}

// Conv2D performs a grouped convolution and records the operation.
func (b *AutodiffBackend[B]) Conv2D(input, kernel *tensor.RawTensor, groups int) *tensor.RawTensor {
	result := b.inner.Conv2D(input, kernel, groups)
	b.record(ops.NewConv2DOp(input, kernel, result, groups))
	return result
}

// Conv2DInputBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) Conv2DInputBackward(grad, kernel *tensor.RawTensor, inputShape tensor.Shape, groups int) *tensor.RawTensor {
	return b.inner.Conv2DInputBackward(grad, kernel, inputShape, groups)
}

// Conv2DKernelBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) Conv2DKernelBackward(grad, input *tensor.RawTensor, kernelShape tensor.Shape, groups int) *tensor.RawTensor {
	return b.inner.Conv2DKernelBackward(grad, input, kernelShape, groups)
}

// MaxPool2D performs max pooling and records the operation.
func (b *AutodiffBackend[B]) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	result := b.inner.MaxPool2D(input, kernelSize, stride)
	b.record(ops.NewMaxPool2DOp(input, result, kernelSize, stride))
	return result
}

// MaxPool2DBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) MaxPool2DBackward(grad, input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	return b.inner.MaxPool2DBackward(grad, input, kernelSize, stride)
}

// Moments is not differentiated. Batch statistics used for running averages
// are treated as constants.
func (b *AutodiffBackend[B]) Moments(x *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	return b.inner.Moments(x)
}

// BatchNorm normalizes with batch statistics and records the operation.
func (b *AutodiffBackend[B]) BatchNorm(x, gamma, beta *tensor.RawTensor, eps float32) *tensor.RawTensor {
	result := b.inner.BatchNorm(x, gamma, beta, eps)
	b.record(ops.NewBatchNormOp(x, gamma, beta, result, eps))
	return result
}

// BatchNormBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) BatchNormBackward(grad, x, gamma *tensor.RawTensor, eps float32) (dx, dgamma, dbeta *tensor.RawTensor) {
	return b.inner.BatchNormBackward(grad, x, gamma, eps)
}

// Normalize normalizes with fixed statistics and records the operation.
func (b *AutodiffBackend[B]) Normalize(x, mean, variance, gamma, beta *tensor.RawTensor, eps float32) *tensor.RawTensor {
	result := b.inner.Normalize(x, mean, variance, gamma, beta, eps)
	b.record(ops.NewNormalizeOp(x, mean, variance, gamma, beta, result, eps))
	return result
}

// NormalizeBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) NormalizeBackward(grad, x, mean, variance, gamma *tensor.RawTensor, eps float32) (dx, dgamma, dbeta *tensor.RawTensor) {
	return b.inner.NormalizeBackward(grad, x, mean, variance, gamma, eps)
}

// Reshape reshapes a tensor and records the operation.
func (b *AutodiffBackend[B]) Reshape(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(x, newShape)
	b.record(ops.NewReshapeOp(x, result))
	return result
}

// Chunk splits a tensor and records a multi-output operation.
func (b *AutodiffBackend[B]) Chunk(x *tensor.RawTensor, n, dim int) []*tensor.RawTensor {
	parts := b.inner.Chunk(x, n, dim)
	b.record(ops.NewChunkOp(x, parts, dim))
	return parts
}

// Cat concatenates tensors and records the operation.
func (b *AutodiffBackend[B]) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	result := b.inner.Cat(tensors, dim)
	b.record(ops.NewCatOp(tensors, dim, result))
	return result
}
