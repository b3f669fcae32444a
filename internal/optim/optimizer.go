// Package optim implements optimization algorithms and the training step.
//
// This package provides:
//   - Optimizer interface: base interface for all optimizers
//   - SGD: stochastic gradient descent with optional momentum
//   - Adam: adaptive moment estimation
//   - Schedule: learning-rate schedules (constant, exponential decay)
//   - Trainer: one backward pass and parameter update per call
//
// Example usage:
//
//	backend := autodiff.New(cpu.New())
//	trainer, err := optim.NewTrainer(model.Parameters(), backend, optim.TrainerConfig{
//	    Optimizer: optim.Momentum,
//	    Schedule:  optim.ConstantLR(0.01),
//	})
//
//	backend.Tape().StartRecording()
//	loss := model.Loss(model.Inference(images), targets, nil)
//	result, err := trainer.Train(loss, step)
package optim

import (
	"errors"
	"fmt"

	"github.com/born-ml/factory/internal/nn"
	"github.com/born-ml/factory/internal/tensor"
)

// ErrUnknownOptimizer is returned for an unsupported optimizer name.
var ErrUnknownOptimizer = errors.New("unknown optimizer")

// Optimizer is the base interface for all optimization algorithms.
//
// Step takes the gradient map returned by autodiff.Backward and updates the
// parameters in place. Gradients are read, never modified.
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR changes the learning rate used by the next Step.
	SetLR(lr float32)
}

// Kind names an optimization algorithm.
type Kind string

// Supported optimizers.
const (
	SGDKind  Kind = "sgd"
	Momentum Kind = "momentum"
	AdamKind Kind = "adam"
)

// Config is the optimizer-independent configuration.
type Config struct {
	LR       float32 // Learning rate
	Momentum float32 // Used by Momentum only
}

// New creates an optimizer of the given kind.
func New[B tensor.Backend](kind Kind, params []*nn.Parameter[B], config Config) (Optimizer, error) {
	switch kind {
	case SGDKind:
		return NewSGD(params, SGDConfig{LR: config.LR}), nil
	case Momentum:
		return NewSGD(params, SGDConfig{LR: config.LR, Momentum: config.Momentum}), nil
	case AdamKind:
		return NewAdam(params, AdamConfig{LR: config.LR}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOptimizer, kind)
	}
}

// getGradient returns the gradient for param and records it on the parameter.
// Returns nil if param was not part of the computation graph.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	grad := grads[param.Raw()]
	if grad != nil {
		param.SetGrad(grad)
	}
	return grad
}

// zeroGrad clears the gradients of params.
func zeroGrad[B tensor.Backend](params []*nn.Parameter[B]) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
