package twincnn

import (
	"fmt"

	"github.com/born-ml/factory/internal/nn"
	"github.com/born-ml/factory/internal/optim"
	"github.com/born-ml/factory/internal/tensor"
)

// Loss computes the configured regression loss of pred + predPrev against
// target. predPrev may be nil.
func (m *Model[B]) Loss(pred, target, predPrev *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	if !pred.Shape().Equal(target.Shape()) {
		return nil, fmt.Errorf("loss: %w: prediction %v, target %v", ErrShapeMismatch, pred.Shape(), target.Shape())
	}
	if predPrev != nil && !predPrev.Shape().Equal(pred.Shape()) {
		return nil, fmt.Errorf("loss: %w: prediction %v, previous prediction %v", ErrShapeMismatch, pred.Shape(), predPrev.Shape())
	}
	return nn.Loss(pred, target, predPrev, nn.LossFunction(m.cfg.LossFunction)), nil
}

// Train runs one optimization step from loss, which must have been computed
// while the model was in the train phase on a differentiable backend.
func (m *Model[B]) Train(loss *tensor.Tensor[B], step int) (optim.StepResult, error) {
	trainer, err := m.Trainer()
	if err != nil {
		return optim.StepResult{}, err
	}
	return trainer.Train(loss, step)
}

// Test records an evaluation loss and returns its value.
func (m *Model[B]) Test(loss *tensor.Tensor[B], step int) (float32, error) {
	trainer, err := m.Trainer()
	if err != nil {
		return 0, err
	}
	return trainer.Test(loss, step)
}

// Trainer returns the trainer bound to the model parameters, creating it on
// first use from the optimizer and learning-rate options of the config.
func (m *Model[B]) Trainer() (*optim.Trainer[B], error) {
	if m.trainer != nil {
		return m.trainer, nil
	}

	cfg := m.cfg
	schedule := optim.NewExponentialDecay(
		cfg.InitialLearningRate,
		cfg.LearningRateDecayFactor,
		cfg.NumExamplesPerEpoch,
		cfg.DecayBatchSize(),
		cfg.NumEpochsPerDecay,
	)
	trainer, err := optim.NewTrainer(m.Parameters(), m.backend, optim.TrainerConfig{
		Optimizer:   optim.Kind(cfg.Optimizer),
		Momentum:    cfg.Momentum,
		Schedule:    schedule,
		WeightDecay: cfg.WeightDecay,
		Logger:      m.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("twincnn: %w", err)
	}
	m.trainer = trainer
	return trainer, nil
}
