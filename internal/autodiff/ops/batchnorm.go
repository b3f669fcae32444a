package ops

import "github.com/born-ml/factory/internal/tensor"

// BatchNormOp represents batch normalization with the statistics of the
// current batch. Inputs are [x, gamma, beta].
type BatchNormOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	eps    float32
}

// NewBatchNormOp creates a new BatchNormOp.
func NewBatchNormOp(x, gamma, beta, output *tensor.RawTensor, eps float32) *BatchNormOp {
	return &BatchNormOp{
		inputs: []*tensor.RawTensor{x, gamma, beta},
		output: output,
		eps:    eps,
	}
}

// Inputs returns [x, gamma, beta].
func (op *BatchNormOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns the normalized tensor.
func (op *BatchNormOp) Output() *tensor.RawTensor { return op.output }

// Backward computes gradients for x, gamma and beta.
func (op *BatchNormOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	dx, dgamma, dbeta := backend.BatchNormBackward(outputGrad, op.inputs[0], op.inputs[1], op.eps)
	return []*tensor.RawTensor{dx, dgamma, dbeta}
}

// NormalizeOp represents normalization with fixed statistics.
// Inputs are [x, gamma, beta]; mean and variance are constants.
type NormalizeOp struct {
	inputs   []*tensor.RawTensor
	mean     *tensor.RawTensor
	variance *tensor.RawTensor
	output   *tensor.RawTensor
	eps      float32
}

// NewNormalizeOp creates a new NormalizeOp.
func NewNormalizeOp(x, mean, variance, gamma, beta, output *tensor.RawTensor, eps float32) *NormalizeOp {
	return &NormalizeOp{
		inputs:   []*tensor.RawTensor{x, gamma, beta},
		mean:     mean,
		variance: variance,
		output:   output,
		eps:      eps,
	}
}

// Inputs returns [x, gamma, beta].
func (op *NormalizeOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns the normalized tensor.
func (op *NormalizeOp) Output() *tensor.RawTensor { return op.output }

// Backward computes gradients for x, gamma and beta.
func (op *NormalizeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	dx, dgamma, dbeta := backend.NormalizeBackward(outputGrad, op.inputs[0], op.mean, op.variance, op.inputs[1], op.eps)
	return []*tensor.RawTensor{dx, dgamma, dbeta}
}
