package optim

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/born-ml/factory/internal/autodiff"
	"github.com/born-ml/factory/internal/nn"
	"github.com/born-ml/factory/internal/tensor"
	"github.com/google/uuid"
)

// Trainer errors.
var (
	ErrNotDifferentiable = errors.New("backend does not record gradients")
	ErrNotScalar         = errors.New("loss is not a single value")
)

// TrainerConfig configures a Trainer.
type TrainerConfig struct {
	Optimizer   Kind     // default Momentum
	Momentum    float32  // momentum factor for Momentum (default 0.9)
	Schedule    Schedule // default ConstantLR(0.01)
	WeightDecay float32  // L2 penalty on weights; 0 disables it
	Logger      *slog.Logger
}

// StepResult reports one training step.
type StepResult struct {
	Step int
	Loss float32
	LR   float32
}

// Trainer performs training and evaluation steps on the gradient tape of an
// autodiff backend.
//
// Train runs the backward pass from a scalar loss, adds weight decay, steps
// the optimizer with the scheduled learning rate and clears the tape. Test
// only records the loss.
type Trainer[B tensor.Backend] struct {
	params      []*nn.Parameter[B]
	backend     autodiff.BackwardCapable
	optimizer   Optimizer
	schedule    Schedule
	weightDecay float32
	logger      *slog.Logger
	runID       uuid.UUID

	testSum   float64
	testCount int
}

// NewTrainer creates a Trainer for params on backend.
// Returns ErrNotDifferentiable unless backend records a gradient tape.
func NewTrainer[B tensor.Backend](params []*nn.Parameter[B], backend B, config TrainerConfig) (*Trainer[B], error) {
	bc, ok := any(backend).(autodiff.BackwardCapable)
	if !ok {
		return nil, fmt.Errorf("trainer: %w: %s", ErrNotDifferentiable, backend.Name())
	}

	if config.Optimizer == "" {
		config.Optimizer = Momentum
	}
	if config.Momentum == 0 {
		config.Momentum = 0.9
	}
	if config.Schedule == nil {
		config.Schedule = ConstantLR(0.01)
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	opt, err := New(config.Optimizer, params, Config{LR: config.Schedule.LR(0), Momentum: config.Momentum})
	if err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}

	runID := uuid.New()
	return &Trainer[B]{
		params:      params,
		backend:     bc,
		optimizer:   opt,
		schedule:    config.Schedule,
		weightDecay: config.WeightDecay,
		logger:      config.Logger.With("run", runID.String()),
		runID:       runID,
	}, nil
}

// RunID identifies this training run in logs.
func (t *Trainer[B]) RunID() uuid.UUID {
	return t.runID
}

// Optimizer returns the underlying optimizer.
func (t *Trainer[B]) Optimizer() Optimizer {
	return t.optimizer
}

// Train performs one optimization step from loss.
func (t *Trainer[B]) Train(loss *tensor.Tensor[B], step int) (StepResult, error) {
	if loss.NumElements() != 1 {
		return StepResult{}, fmt.Errorf("train: %w: shape %v", ErrNotScalar, loss.Shape())
	}
	tape := t.backend.GetTape()
	defer tape.Clear()

	if tape.NumOps() == 0 {
		return StepResult{}, fmt.Errorf("train: %w: tape is empty", ErrNotDifferentiable)
	}

	t.optimizer.ZeroGrad()
	grads := autodiff.Gradients(loss.Raw(), t.backend)
	if t.weightDecay > 0 {
		t.applyWeightDecay(grads)
	}

	lr := t.schedule.LR(step)
	t.optimizer.SetLR(lr)
	t.optimizer.Step(grads)

	result := StepResult{Step: step, Loss: loss.Item(), LR: lr}
	t.logger.Debug("train step", "step", step, "loss", result.Loss, "lr", lr, "ops", len(grads))
	return result, nil
}

// applyWeightDecay replaces the gradient of every decayed weight w with
// grad + wd*w. Gradient tensors may be shared, so new tensors are allocated.
func (t *Trainer[B]) applyWeightDecay(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, p := range t.params {
		if !p.Decay() {
			continue
		}
		grad, ok := grads[p.Raw()]
		if !ok {
			continue
		}
		decayed := grad.Clone()
		dd, wd := decayed.Data(), p.Raw().Data()
		for i := range dd {
			dd[i] += t.weightDecay * wd[i]
		}
		grads[p.Raw()] = decayed.Quantize()
	}
}

// Test records an evaluation loss without touching the parameters and
// returns its value.
func (t *Trainer[B]) Test(loss *tensor.Tensor[B], step int) (float32, error) {
	if loss.NumElements() != 1 {
		return 0, fmt.Errorf("test: %w: shape %v", ErrNotScalar, loss.Shape())
	}
	t.backend.GetTape().Clear()

	value := loss.Item()
	t.testSum += float64(value)
	t.testCount++
	t.logger.Debug("test step", "step", step, "loss", value, "mean", t.MeanTestLoss())
	return value, nil
}

// MeanTestLoss returns the mean of the losses passed to Test since the last
// ResetTestLoss.
func (t *Trainer[B]) MeanTestLoss() float32 {
	if t.testCount == 0 {
		return 0
	}
	return float32(t.testSum / float64(t.testCount))
}

// ResetTestLoss clears the evaluation running mean.
func (t *Trainer[B]) ResetTestLoss() {
	t.testSum = 0
	t.testCount = 0
}
