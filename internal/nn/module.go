// Package nn implements the layer library the model definitions are built from.
//
// This package provides:
//   - Module interface: base interface for all layers
//   - Parameter: trainable tensors, keyed by RawTensor identity for gradients
//   - FireParallel: grouped 3x3 convolution + bias + ReLU, one group per branch
//   - FCParallel, FCRegression, Linear: dense layers
//   - BatchNorm, Dropout, MaxPool2D
//   - Loss: l2 and mse regression losses
//
// Layers are generic over the backend, so the same model runs on a plain CPU
// backend for inference or on an autodiff-wrapped backend for training.
package nn

import (
	"github.com/born-ml/factory/internal/tensor"
)

// Module is the base interface for all neural network components.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[B]) *tensor.Tensor[B]

	// Parameters returns all trainable parameters of this module.
	// Modules without weights return nil.
	Parameters() []*Parameter[B]
}

// Trainable is implemented by modules that behave differently in the
// training and evaluation phases (BatchNorm, Dropout).
type Trainable interface {
	SetTraining(training bool)
}
