package cpu

import (
	"fmt"

	"github.com/born-ml/factory/internal/tensor"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// convGeometry holds the dimensions shared by the forward and backward
// convolution kernels.
type convGeometry struct {
	n, h, w      int // batch and spatial size (output equals input under SAME)
	cin, cout    int // total input and output channels
	kh, kw       int // kernel size
	groups       int
	cinG, coutG  int // channels per group
	padT, padL   int // SAME padding before the first row/col
	patch        int // kh*kw*cinG: length of one im2col row
	pixels       int // h*w
	inputStride  int // elements per input image
	outputStride int // elements per output image
}

func newConvGeometry(op string, inputShape, kernelShape tensor.Shape, groups int) convGeometry {
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,H,W,C], got %v", op, inputShape))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [KH,KW,C/groups,COut], got %v", op, kernelShape))
	}
	if groups <= 0 {
		panic(fmt.Sprintf("%s: invalid groups %d", op, groups))
	}

	g := convGeometry{
		n: inputShape[0], h: inputShape[1], w: inputShape[2], cin: inputShape[3],
		kh: kernelShape[0], kw: kernelShape[1], cout: kernelShape[3],
		groups: groups,
	}
	if g.cin%groups != 0 || g.cout%groups != 0 {
		panic(fmt.Sprintf("%s: channels in=%d out=%d not divisible by groups=%d", op, g.cin, g.cout, groups))
	}
	g.cinG = g.cin / groups
	g.coutG = g.cout / groups
	if kernelShape[2] != g.cinG {
		panic(fmt.Sprintf("%s: kernel expects %d channels per group, input has %d", op, kernelShape[2], g.cinG))
	}

	// SAME padding for stride 1 puts the extra row/col (even kernels) after the data.
	g.padT = (g.kh - 1) / 2
	g.padL = (g.kw - 1) / 2
	g.patch = g.kh * g.kw * g.cinG
	g.pixels = g.h * g.w
	g.inputStride = g.pixels * g.cin
	g.outputStride = g.pixels * g.cout
	return g
}

// Conv2D performs a stride-1 SAME convolution with grouped kernels.
//
// Input shape:  [batch, rows, cols, in_channels]
// Kernel shape: [kernel_h, kernel_w, in_channels/groups, out_channels]
// Output shape: [batch, rows, cols, out_channels]
//
// Output channel block g (of out_channels/groups maps) is computed from input
// channel block g only, so parallel branches never mix.
//
// Algorithm: im2col per (image, group), then one GEMM
//
//	cols[pixels, patch] @ kernel_g[patch, coutG] -> out_g[pixels, coutG]
//
// where kernel_g and out_g are strided column blocks of the full kernel and
// output, so no copies are needed on either side of the GEMM.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, groups int) *tensor.RawTensor {
	g := newConvGeometry("conv2d", input.Shape(), kernel.Shape(), groups)

	output := cpu.result("conv2d", tensor.Shape{g.n, g.h, g.w, g.cout}, tensor.Promote(input.DType(), kernel.DType()))
	in, k, out := input.Data(), kernel.Data(), output.Data()

	cpu.forImageGroups(g, func(img, grp int, cols []float32) {
		g.im2col(in[img*g.inputStride:(img+1)*g.inputStride], grp, cols)

		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
			general(cols, g.pixels, g.patch, g.patch),
			general(k[grp*g.coutG:], g.patch, g.coutG, g.cout),
			0,
			general(out[img*g.outputStride+grp*g.coutG:(img+1)*g.outputStride], g.pixels, g.coutG, g.cout),
		)
	})

	return output.Quantize()
}

// forImageGroups runs f for every (image, group) pair with its own im2col buffer.
func (cpu *CPUBackend) forImageGroups(g convGeometry, f func(img, grp int, cols []float32)) {
	tasks := g.n * g.groups
	buffers := make([][]float32, tasks)
	for i := range buffers {
		buffers[i] = make([]float32, g.pixels*g.patch)
	}
	parallelGrid(cpu, g.n, g.groups, func(img, grp int) {
		f(img, grp, buffers[img*g.groups+grp])
	})
}

// im2col unrolls the receptive field of every pixel for channel group grp.
// Row p of cols holds kernel positions in (ky, kx, c) order, matching the
// row-major layout of one kernel group. Out-of-image taps stay zero.
func (g convGeometry) im2col(image []float32, grp int, cols []float32) {
	c0 := grp * g.cinG
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			row := cols[(y*g.w+x)*g.patch : (y*g.w+x+1)*g.patch]
			idx := 0
			for ky := 0; ky < g.kh; ky++ {
				iy := y + ky - g.padT
				for kx := 0; kx < g.kw; kx++ {
					ix := x + kx - g.padL
					if iy < 0 || iy >= g.h || ix < 0 || ix >= g.w {
						for c := 0; c < g.cinG; c++ {
							row[idx+c] = 0
						}
					} else {
						base := (iy*g.w+ix)*g.cin + c0
						copy(row[idx:idx+g.cinG], image[base:base+g.cinG])
					}
					idx += g.cinG
				}
			}
		}
	}
}

// col2im scatters-adds im2col rows back into channel group grp of image.
func (g convGeometry) col2im(cols []float32, grp int, image []float32) {
	c0 := grp * g.cinG
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			row := cols[(y*g.w+x)*g.patch : (y*g.w+x+1)*g.patch]
			idx := 0
			for ky := 0; ky < g.kh; ky++ {
				iy := y + ky - g.padT
				for kx := 0; kx < g.kw; kx++ {
					ix := x + kx - g.padL
					if iy >= 0 && iy < g.h && ix >= 0 && ix < g.w {
						base := (iy*g.w+ix)*g.cin + c0
						for c := 0; c < g.cinG; c++ {
							image[base+c] += row[idx+c]
						}
					}
					idx += g.cinG
				}
			}
		}
	}
}
