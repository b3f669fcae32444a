package nn

import (
	"fmt"

	"github.com/born-ml/factory/internal/tensor"
)

// LossFunction names a regression loss.
type LossFunction string

// Supported loss functions.
const (
	// LossL2 is half the summed squared error averaged over the batch.
	LossL2 LossFunction = "l2"
	// LossMSE is the mean squared error over all elements.
	LossMSE LossFunction = "mse"
)

// Valid reports whether fn is a supported loss.
func (fn LossFunction) Valid() bool {
	return fn == LossL2 || fn == LossMSE
}

// Loss computes the regression loss of pred + predPrev against target.
//
// predPrev carries the prediction of an earlier iteration when the network
// regresses a residual; nil means zero.
//
//	l2:  sum((pred + predPrev - target)²) / 2 / batch
//	mse: mean((pred + predPrev - target)²)
//
// Returns a tensor of shape [1]. Panics if shapes differ.
func Loss[B tensor.Backend](pred, target, predPrev *tensor.Tensor[B], fn LossFunction) *tensor.Tensor[B] {
	if !pred.Shape().Equal(target.Shape()) {
		panic(fmt.Sprintf("loss: prediction %v and target %v shapes differ", pred.Shape(), target.Shape()))
	}

	total := pred
	if predPrev != nil {
		if !predPrev.Shape().Equal(pred.Shape()) {
			panic(fmt.Sprintf("loss: previous prediction %v and prediction %v shapes differ", predPrev.Shape(), pred.Shape()))
		}
		total = pred.Add(predPrev)
	}

	diff := total.Sub(target)
	squared := diff.Mul(diff).Sum()

	switch fn {
	case LossL2:
		return squared.MulScalar(0.5 / float32(pred.Shape()[0]))
	case LossMSE:
		return squared.MulScalar(1 / float32(pred.NumElements()))
	default:
		panic(fmt.Sprintf("loss: unknown loss function %q", fn))
	}
}
