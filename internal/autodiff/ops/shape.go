package ops

import "github.com/born-ml/factory/internal/tensor"

// ReshapeOp represents a reshape. Backward reshapes the gradient back.
type ReshapeOp struct{ unaryOp }

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(x, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{unaryOp{input: x, output: output}}
}

// Backward restores the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.input.Shape())}
}

// ChunkOp splits its input into equal parts along a dimension.
//
// Backward concatenates the part gradients along the same dimension.
type ChunkOp struct {
	input   *tensor.RawTensor
	outputs []*tensor.RawTensor
	dim     int
}

// NewChunkOp creates a new ChunkOp.
func NewChunkOp(input *tensor.RawTensor, outputs []*tensor.RawTensor, dim int) *ChunkOp {
	return &ChunkOp{input: input, outputs: outputs, dim: dim}
}

// Inputs returns the chunked tensor.
func (op *ChunkOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the first part. Use Outputs for all of them.
func (op *ChunkOp) Output() *tensor.RawTensor { return op.outputs[0] }

// Outputs returns all parts.
func (op *ChunkOp) Outputs() []*tensor.RawTensor { return op.outputs }

// Backward is not used for multi-output operations.
func (op *ChunkOp) Backward(_ *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	panic("chunk: use BackwardMulti")
}

// BackwardMulti concatenates the part gradients.
func (op *ChunkOp) BackwardMulti(outputGrads []*tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Cat(outputGrads, op.dim)}
}

// CatOp represents concatenation along a dimension.
//
// Backward splits the gradient at the input boundaries:
//
//	inputs: [N, H, W, 3] and [N, H, W, 5] along dim 3
//	gradInput1 = grad[..., 0:3]
//	gradInput2 = grad[..., 3:8]
type CatOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	dim    int
}

// NewCatOp creates a new CatOp.
func NewCatOp(inputs []*tensor.RawTensor, dim int, output *tensor.RawTensor) *CatOp {
	return &CatOp{inputs: inputs, output: output, dim: dim}
}

// Inputs returns the concatenated tensors.
func (op *CatOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns the concatenation.
func (op *CatOp) Output() *tensor.RawTensor { return op.output }

// Backward slices the gradient for each input.
func (op *CatOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := outputGrad.Shape()
	dim := shape.NormalizeDim(op.dim)

	grads := make([]*tensor.RawTensor, len(op.inputs))
	offset := 0
	for i, in := range op.inputs {
		size := in.Shape()[dim]
		grads[i] = sliceAlongDim(outputGrad, dim, offset, size, backend.Device())
		offset += size
	}
	return grads
}

// sliceAlongDim copies src[..., offset:offset+size, ...] along dim.
func sliceAlongDim(src *tensor.RawTensor, dim, offset, size int, device tensor.Device) *tensor.RawTensor {
	shape := src.Shape()
	outShape := shape.Clone()
	outShape[dim] = size
	dst := tensor.MustRaw(outShape, src.DType(), device)

	outer, inner := shape.Split(dim)
	srcRow := shape[dim] * inner
	block := size * inner
	sd, dd := src.Data(), dst.Data()
	for o := 0; o < outer; o++ {
		start := o*srcRow + offset*inner
		copy(dd[o*block:(o+1)*block], sd[start:start+block])
	}
	return dst
}
