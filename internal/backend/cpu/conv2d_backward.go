package cpu

import (
	"fmt"

	"github.com/born-ml/factory/internal/parallel"
	"github.com/born-ml/factory/internal/tensor"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Conv2DInputBackward computes dL/dInput for Conv2D.
//
// Per (image, group):
//
//	dCols[pixels, patch] = dOut_g[pixels, coutG] @ kernel_gᵀ[coutG, patch]
//
// followed by col2im into the group's input channels.
func (cpu *CPUBackend) Conv2DInputBackward(grad, kernel *tensor.RawTensor, inputShape tensor.Shape, groups int) *tensor.RawTensor {
	g := newConvGeometry("conv2dInputBackward", inputShape, kernel.Shape(), groups)
	if !grad.Shape().Equal(tensor.Shape{g.n, g.h, g.w, g.cout}) {
		panic(fmt.Sprintf("conv2dInputBackward: grad shape %v does not match output [%d %d %d %d]",
			grad.Shape(), g.n, g.h, g.w, g.cout))
	}

	dInput := cpu.result("conv2dInputBackward", inputShape, grad.DType())
	gd, k, di := grad.Data(), kernel.Data(), dInput.Data()

	cpu.forImageGroups(g, func(img, grp int, cols []float32) {
		blas32.Gemm(blas.NoTrans, blas.Trans, 1,
			general(gd[img*g.outputStride+grp*g.coutG:(img+1)*g.outputStride], g.pixels, g.coutG, g.cout),
			general(k[grp*g.coutG:], g.patch, g.coutG, g.cout),
			0,
			general(cols, g.pixels, g.patch, g.patch),
		)
		g.col2im(cols, grp, di[img*g.inputStride:(img+1)*g.inputStride])
	})

	return dInput.Quantize()
}

// Conv2DKernelBackward computes dL/dKernel for Conv2D.
//
// Per group, accumulated over the batch:
//
//	dKernel_g[patch, coutG] += cols_{img,g}ᵀ[patch, pixels] @ dOut_{img,g}[pixels, coutG]
//
// Groups own disjoint kernel columns, so they run in parallel; images are
// accumulated sequentially inside a group.
func (cpu *CPUBackend) Conv2DKernelBackward(grad, input *tensor.RawTensor, kernelShape tensor.Shape, groups int) *tensor.RawTensor {
	g := newConvGeometry("conv2dKernelBackward", input.Shape(), kernelShape, groups)
	if !grad.Shape().Equal(tensor.Shape{g.n, g.h, g.w, g.cout}) {
		panic(fmt.Sprintf("conv2dKernelBackward: grad shape %v does not match output [%d %d %d %d]",
			grad.Shape(), g.n, g.h, g.w, g.cout))
	}

	dKernel := cpu.result("conv2dKernelBackward", kernelShape, grad.DType())
	gd, in, dk := grad.Data(), input.Data(), dKernel.Data()

	parallel.For(g.groups, func(grp int) {
		cols := make([]float32, g.pixels*g.patch)
		for img := 0; img < g.n; img++ {
			g.im2col(in[img*g.inputStride:(img+1)*g.inputStride], grp, cols)
			blas32.Gemm(blas.Trans, blas.NoTrans, 1,
				general(cols, g.pixels, g.patch, g.patch),
				general(gd[img*g.outputStride+grp*g.coutG:(img+1)*g.outputStride], g.pixels, g.coutG, g.cout),
				1,
				general(dk[grp*g.coutG:], g.patch, g.coutG, g.cout),
			)
		}
	}, cpu.par)

	return dKernel.Quantize()
}

func parallelGrid(cpu *CPUBackend, outer, inner int, f func(a, b int)) {
	parallel.ForGrid(outer, inner, f, cpu.par)
}
