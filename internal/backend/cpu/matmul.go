package cpu

import (
	"fmt"

	"github.com/born-ml/factory/internal/tensor"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// MatMul computes a @ b for a [M, K] and b [K, N].
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	requireRank("matmul", a, 2)
	requireRank("matmul", b, 2)

	m, k := a.Shape()[0], a.Shape()[1]
	k2, n := b.Shape()[0], b.Shape()[1]
	if k != k2 {
		panic(fmt.Sprintf("matmul: inner dimensions must match: %v @ %v", a.Shape(), b.Shape()))
	}

	out := cpu.result("matmul", tensor.Shape{m, n}, tensor.Promote(a.DType(), b.DType()))
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		general(a.Data(), m, k, k),
		general(b.Data(), k, n, n),
		0,
		general(out.Data(), m, n, n),
	)
	return out.Quantize()
}

// Transpose swaps the two axes of a 2-D tensor.
func (cpu *CPUBackend) Transpose(x *tensor.RawTensor) *tensor.RawTensor {
	requireRank("transpose", x, 2)

	rows, cols := x.Shape()[0], x.Shape()[1]
	out := cpu.result("transpose", tensor.Shape{cols, rows}, x.DType())
	xd, od := x.Data(), out.Data()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			od[j*rows+i] = xd[i*cols+j]
		}
	}
	return out
}

// general views data as a row-major matrix with the given leading stride.
// The slice is trimmed to the extent blas32 checks against.
func general(data []float32, rows, cols, stride int) blas32.General {
	return blas32.General{
		Rows:   rows,
		Cols:   cols,
		Stride: stride,
		Data:   data[:(rows-1)*stride+cols],
	}
}
