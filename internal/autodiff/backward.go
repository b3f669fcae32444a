package autodiff

import (
	"github.com/born-ml/factory/internal/tensor"
)

// BackwardCapable is implemented by backends that can run a backward pass.
// AutodiffBackend implements this interface.
type BackwardCapable interface {
	tensor.Backend
	// GetTape returns the gradient tape for backward computation.
	GetTape() *GradientTape
}

// GetTape returns the gradient tape (implements BackwardCapable).
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward computes gradients of t with respect to every recorded tensor,
// seeding the output gradient with ones.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x := tensor.Full(tensor.Shape{1}, 2, tensor.Float32, backend)
//	y := x.Mul(x) // y = x²
//	gradients := autodiff.Backward(y, backend)
//	grad := gradients[x.Raw()] // dy/dx = 4
func Backward[B BackwardCapable](t *tensor.Tensor[B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return Gradients(t.Raw(), backend)
}

// Gradients is Backward for callers holding only the raw output and a
// backend known through the BackwardCapable interface.
func Gradients(output *tensor.RawTensor, backend BackwardCapable) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}

	outputGrad := tensor.MustRaw(output.Shape(), output.DType(), backend.Device())
	outputGrad.Fill(1)

	return tape.Backward(output, outputGrad, backend)
}
