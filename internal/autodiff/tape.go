package autodiff

import (
	"github.com/born-ml/factory/internal/autodiff/ops"
	"github.com/born-ml/factory/internal/tensor"
)

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode automatic differentiation.
//
// Usage:
//
//	tape := NewGradientTape()
//	tape.StartRecording()
//	// ... perform operations ...
//	gradients := tape.Backward(outputGrad, backend)
type GradientTape struct {
	operations []ops.Operation // recorded in execution order
	recording  bool
}

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 64),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record adds an operation to the tape if it is recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Clear removes all recorded operations. Recording state is preserved.
func (t *GradientTape) Clear() {
	clear(t.operations)
	t.operations = t.operations[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// Backward computes gradients by walking the tape in reverse.
//
// output is the tensor outputGrad belongs to. Gradients of tensors used more
// than once are accumulated. Returns a map from RawTensor to its gradient.
func (t *GradientTape) Backward(output, outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	if len(t.operations) == 0 {
		return grads
	}

	// Gradient computations must not land on the tape.
	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	grads[output] = outputGrad

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		inputGrads := t.computeInputGrads(op, grads, backend)
		if inputGrads == nil {
			continue
		}
		accumulateGrads(op.Inputs(), inputGrads, grads, backend)
	}

	return grads
}

// computeInputGrads returns nil if no gradient reaches op.
func (t *GradientTape) computeInputGrads(
	op ops.Operation,
	grads map[*tensor.RawTensor]*tensor.RawTensor,
	backend tensor.Backend,
) []*tensor.RawTensor {
	if multiOp, ok := op.(ops.MultiOutputOperation); ok {
		outputs := multiOp.Outputs()
		outputGrads := make([]*tensor.RawTensor, len(outputs))
		hasAny := false
		for j, out := range outputs {
			if g, exists := grads[out]; exists {
				outputGrads[j] = g
				hasAny = true
			}
		}
		if !hasAny {
			return nil
		}
		for j, out := range outputs {
			if outputGrads[j] == nil {
				outputGrads[j] = tensor.MustRaw(out.Shape(), out.DType(), backend.Device())
			}
		}
		return multiOp.BackwardMulti(outputGrads, backend)
	}

	outputGrad, ok := grads[op.Output()]
	if !ok {
		return nil
	}
	return op.Backward(outputGrad, backend)
}

func accumulateGrads(
	inputs, inputGrads []*tensor.RawTensor,
	grads map[*tensor.RawTensor]*tensor.RawTensor,
	backend tensor.Backend,
) {
	for j, input := range inputs {
		if j >= len(inputGrads) || inputGrads[j] == nil {
			continue
		}
		if existing, ok := grads[input]; ok {
			grads[input] = backend.Add(existing, inputGrads[j])
		} else {
			grads[input] = inputGrads[j]
		}
	}
}
