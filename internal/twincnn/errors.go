package twincnn

import "errors"

// Errors returned by the topology. They are wrapped with context; test with
// errors.Is.
var (
	// ErrIndivisibleChannels reports a channel count that cannot be split
	// evenly across the parallel branches.
	ErrIndivisibleChannels = errors.New("channels not divisible by parallel modules")

	// ErrShapeMismatch reports tensors whose shapes do not agree.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInputRank reports an input with the wrong number of dimensions.
	ErrInputRank = errors.New("unexpected input rank")
)
