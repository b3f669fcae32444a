package nn

import (
	"fmt"

	"github.com/born-ml/factory/internal/tensor"
)

// Batch normalization defaults.
const (
	BatchNormMomentum = 0.999
	BatchNormEpsilon  = 1e-3
)

// BatchNorm normalizes every channel (last axis) of its input.
//
// In training it uses the statistics of the current batch and folds them into
// exponential running averages; in evaluation it uses the running averages.
//
//	y = gamma * (x - mean) / sqrt(var + eps) + beta
type BatchNorm[B tensor.Backend] struct {
	name        string
	channels    int
	gamma       *Parameter[B]
	beta        *Parameter[B]
	runningMean *tensor.RawTensor
	runningVar  *tensor.RawTensor
	momentum    float32
	eps         float32
	training    bool
}

// NewBatchNorm creates a batch-norm layer in training mode.
func NewBatchNorm[B tensor.Backend](name string, channels int, init Init[B]) *BatchNorm[B] {
	shape := tensor.Shape{channels}
	return &BatchNorm[B]{
		name:        name,
		channels:    channels,
		gamma:       NewParameter(name+".gamma", init.Full(shape, 1)),
		beta:        NewParameter(name+".beta", init.Zeros(shape)),
		runningMean: init.Zeros(shape).Raw(),
		runningVar:  init.Full(shape, 1).Raw(),
		momentum:    BatchNormMomentum,
		eps:         init.DType.Scalar(BatchNormEpsilon),
		training:    true,
	}
}

// SetTraining switches between batch and running statistics.
func (bn *BatchNorm[B]) SetTraining(training bool) {
	bn.training = training
}

// Forward normalizes x.
func (bn *BatchNorm[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	if c := x.Shape().Last(); c != bn.channels {
		panic(fmt.Sprintf("%s: expected %d channels, got %d", bn.name, bn.channels, c))
	}

	if !bn.training {
		return x.Normalize(bn.runningMean, bn.runningVar, bn.gamma.Tensor(), bn.beta.Tensor(), bn.eps)
	}

	mean, variance := x.Moments()
	bn.updateRunning(bn.runningMean, mean)
	bn.updateRunning(bn.runningVar, variance)
	return x.BatchNorm(bn.gamma.Tensor(), bn.beta.Tensor(), bn.eps)
}

func (bn *BatchNorm[B]) updateRunning(running, batch *tensor.RawTensor) {
	rd, bd := running.Data(), batch.Data()
	for i := range rd {
		rd[i] = bn.momentum*rd[i] + (1-bn.momentum)*bd[i]
	}
	running.Quantize()
}

// Parameters returns [gamma, beta].
func (bn *BatchNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.gamma, bn.beta}
}

// RunningStats returns the running mean and variance.
func (bn *BatchNorm[B]) RunningStats() (mean, variance []float32) {
	return bn.runningMean.Data(), bn.runningVar.Data()
}

// Buffers returns the running statistics keyed by name. They are updated in
// place, so writing to them restores saved statistics.
func (bn *BatchNorm[B]) Buffers() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		bn.name + ".running_mean": bn.runningMean,
		bn.name + ".running_var":  bn.runningVar,
	}
}
