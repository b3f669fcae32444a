package twincnn

import (
	"fmt"

	"github.com/born-ml/factory/internal/tensor"
)

// Branches is an ordered sequence of per-branch tensors. Branch i holds the
// i-th contiguous group of channels of the tensor it was split from.
type Branches[B tensor.Backend] []*tensor.Tensor[B]

// Separate splits the last axis of x into n equal contiguous groups, in order,
// and returns them with the per-branch channel count.
//
// Example: a [4, 8, 8, 64] tensor with n = 2 gives two [4, 8, 8, 32] branches
// and 32.
func Separate[B tensor.Backend](x *tensor.Tensor[B], n int) (Branches[B], int, error) {
	shape := x.Shape()
	if len(shape) == 0 {
		return nil, 0, fmt.Errorf("separate: %w: scalar input", ErrInputRank)
	}
	channels := shape.Last()
	if n < 1 || channels%n != 0 {
		return nil, 0, fmt.Errorf("separate: %w: %d channels into %d branches", ErrIndivisibleChannels, channels, n)
	}
	if n == 1 {
		return Branches[B]{x}, channels, nil
	}
	return Branches[B](x.Chunk(n, len(shape)-1)), channels / n, nil
}

// Concat joins the branches along the last axis in order. It inverts Separate.
func (b Branches[B]) Concat() *tensor.Tensor[B] {
	if len(b) == 1 {
		return b[0]
	}
	return tensor.Cat(b, len(b[0].Shape())-1)
}

// Shortcut merges a later stage with an earlier pooled stage branch by branch:
// the result holds fire[0], pool[0], fire[1], pool[1], ... along the channel
// axis, so every branch keeps its own channels contiguous.
//
// Returns the merged tensor and its channel count,
// n * (fire channels per branch + pool channels per branch).
func Shortcut[B tensor.Backend](fire, pool *tensor.Tensor[B], n int) (*tensor.Tensor[B], int, error) {
	fs, ps := fire.Shape(), pool.Shape()
	if len(fs) != len(ps) {
		return nil, 0, fmt.Errorf("shortcut: %w: %v and %v", ErrShapeMismatch, fs, ps)
	}
	for d := 0; d < len(fs)-1; d++ {
		if fs[d] != ps[d] {
			return nil, 0, fmt.Errorf("shortcut: %w: %v and %v differ outside the channel axis", ErrShapeMismatch, fs, ps)
		}
	}

	fireBranches, fireWidth, err := Separate(fire, n)
	if err != nil {
		return nil, 0, fmt.Errorf("shortcut: %w", err)
	}
	poolBranches, poolWidth, err := Separate(pool, n)
	if err != nil {
		return nil, 0, fmt.Errorf("shortcut: %w", err)
	}

	merged := make(Branches[B], 0, 2*n)
	for i := 0; i < n; i++ {
		merged = append(merged, fireBranches[i], poolBranches[i])
	}
	return merged.Concat(), n * (fireWidth + poolWidth), nil
}
