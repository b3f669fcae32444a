package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Layout conventions:
//   - Activations are NHWC: [batch, rows, cols, channels].
//   - Convolution kernels are [kernel_h, kernel_w, in_channels/groups, out_channels].
//   - Dense weights are [in_features, out_features].
//
// Implementations:
//   - backend/cpu: pure Go kernels with gonum BLAS
//
// Decorator backends for additional functionality:
//   - autodiff: records a gradient tape (wraps any backend)
//
// Kernels panic on shape errors. Callers validate shapes before dispatch.
type Backend interface {
	// Element-wise binary operations (identical shapes)
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// MulScalar multiplies every element by s.
	MulScalar(x *RawTensor, s float32) *RawTensor

	// Sum reduces all elements to a tensor of shape [1].
	Sum(x *RawTensor) *RawTensor

	// SumToLast sums over every axis but the last: [..., C] -> [C].
	SumToLast(x *RawTensor) *RawTensor

	// Matrix operations (2-D)
	MatMul(a, b *RawTensor) *RawTensor
	Transpose(x *RawTensor) *RawTensor

	// AddBias adds bias [C] to every row of x [..., C].
	AddBias(x, bias *RawTensor) *RawTensor

	// Activations
	ReLU(x *RawTensor) *RawTensor
	ReLUBackward(grad, x *RawTensor) *RawTensor

	// Conv2D performs a stride-1 SAME convolution of NHWC input with a
	// grouped kernel. Output group g only reads input channel group g.
	Conv2D(input, kernel *RawTensor, groups int) *RawTensor
	Conv2DInputBackward(grad, kernel *RawTensor, inputShape Shape, groups int) *RawTensor
	Conv2DKernelBackward(grad, input *RawTensor, kernelShape Shape, groups int) *RawTensor

	// MaxPool2D performs SAME-padded max pooling over rows and cols.
	MaxPool2D(input *RawTensor, kernelSize, stride int) *RawTensor
	MaxPool2DBackward(grad, input *RawTensor, kernelSize, stride int) *RawTensor

	// Moments returns per-channel (last axis) population mean and variance.
	Moments(x *RawTensor) (mean, variance *RawTensor)

	// BatchNorm normalizes x with its own batch statistics.
	BatchNorm(x, gamma, beta *RawTensor, eps float32) *RawTensor
	BatchNormBackward(grad, x, gamma *RawTensor, eps float32) (dx, dgamma, dbeta *RawTensor)

	// Normalize normalizes x with fixed statistics.
	Normalize(x, mean, variance, gamma, beta *RawTensor, eps float32) *RawTensor
	NormalizeBackward(grad, x, mean, variance, gamma *RawTensor, eps float32) (dx, dgamma, dbeta *RawTensor)

	// Manipulation operations
	Reshape(x *RawTensor, newShape Shape) *RawTensor
	Chunk(x *RawTensor, n, dim int) []*RawTensor // split into n equal parts
	Cat(tensors []*RawTensor, dim int) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
