package cpu

import (
	"fmt"

	"github.com/born-ml/factory/internal/tensor"
)

// Reshape returns a copy of x with a new shape of the same size.
func (cpu *CPUBackend) Reshape(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if newShape.NumElements() != x.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v (%d elements) to %v", x.Shape(), x.NumElements(), newShape))
	}
	out := cpu.result("reshape", newShape, x.DType())
	copy(out.Data(), x.Data())
	return out
}

// Chunk splits x into n equal contiguous parts along dim.
//
// Example: [4, 8, 8, 64] split into 2 along dim 3 gives two [4, 8, 8, 32].
func (cpu *CPUBackend) Chunk(x *tensor.RawTensor, n, dim int) []*tensor.RawTensor {
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)
	if n <= 0 || shape[dim]%n != 0 {
		panic(fmt.Sprintf("chunk: dimension %d of %v is not divisible into %d parts", dim, shape, n))
	}

	size := shape[dim] / n
	outer, inner := shape.Split(dim)
	block := size * inner
	row := shape[dim] * inner
	xd := x.Data()

	parts := make([]*tensor.RawTensor, n)
	for p := 0; p < n; p++ {
		partShape := shape.Clone()
		partShape[dim] = size
		part := cpu.result("chunk", partShape, x.DType())
		pd := part.Data()
		for o := 0; o < outer; o++ {
			copy(pd[o*block:(o+1)*block], xd[o*row+p*block:o*row+(p+1)*block])
		}
		parts[p] = part
	}
	return parts
}

// Cat concatenates tensors along dim. All other dimensions must match.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: no tensors")
	}
	first := tensors[0].Shape()
	dim = first.NormalizeDim(dim)

	outShape := first.Clone()
	outShape[dim] = 0
	dtype := tensors[0].DType()
	for i, t := range tensors {
		s := t.Shape()
		if len(s) != len(first) {
			panic(fmt.Sprintf("cat: tensor %d has rank %d, expected %d", i, len(s), len(first)))
		}
		for d := range s {
			if d != dim && s[d] != first[d] {
				panic(fmt.Sprintf("cat: tensor %d shape %v incompatible with %v along dim %d", i, s, first, dim))
			}
		}
		outShape[dim] += s[dim]
		dtype = tensor.Promote(dtype, t.DType())
	}

	out := cpu.result("cat", outShape, dtype)
	outer, inner := outShape.Split(dim)
	row := outShape[dim] * inner
	od := out.Data()

	offset := 0
	for _, t := range tensors {
		block := t.Shape()[dim] * inner
		td := t.Data()
		for o := 0; o < outer; o++ {
			copy(od[o*row+offset:o*row+offset+block], td[o*block:(o+1)*block])
		}
		offset += block
	}
	return out
}
