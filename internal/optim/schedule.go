package optim

import "math"

// Schedule maps a global step to a learning rate.
type Schedule interface {
	LR(step int) float32
}

// ConstantLR is a schedule that never changes.
type ConstantLR float32

// LR returns the constant rate.
func (c ConstantLR) LR(int) float32 {
	return float32(c)
}

// ExponentialDecay decays the learning rate by Factor every DecaySteps steps:
//
//	lr = Initial * Factor^floor(step / DecaySteps)
//
// Without Staircase the exponent is step / DecaySteps, unrounded.
type ExponentialDecay struct {
	Initial    float32
	Factor     float32
	DecaySteps int
	Staircase  bool
}

// NewExponentialDecay derives the decay interval from the epoch geometry:
// DecaySteps = examplesPerEpoch / batchSize * epochsPerDecay, at least 1.
func NewExponentialDecay(initial, factor float32, examplesPerEpoch, batchSize int, epochsPerDecay float32) ExponentialDecay {
	steps := 1
	if batchSize > 0 {
		steps = int(float32(examplesPerEpoch/batchSize) * epochsPerDecay)
	}
	return ExponentialDecay{
		Initial:    initial,
		Factor:     factor,
		DecaySteps: max(steps, 1),
		Staircase:  true,
	}
}

// LR returns the decayed rate at step.
func (e ExponentialDecay) LR(step int) float32 {
	p := float64(step) / float64(max(e.DecaySteps, 1))
	if e.Staircase {
		p = math.Floor(p)
	}
	return e.Initial * float32(math.Pow(float64(e.Factor), p))
}
