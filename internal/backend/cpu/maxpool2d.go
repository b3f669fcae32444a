package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/factory/internal/tensor"
)

// poolGeometry describes a SAME-padded pooling window over NHWC input.
type poolGeometry struct {
	n, h, w, c   int
	outH, outW   int
	kernel       int
	stride       int
	padT, padL   int
	inputStride  int
	outputStride int
}

func newPoolGeometry(op string, shape tensor.Shape, kernel, stride int) poolGeometry {
	if len(shape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,H,W,C], got %v", op, shape))
	}
	if kernel <= 0 || stride <= 0 {
		panic(fmt.Sprintf("%s: invalid kernel %d / stride %d", op, kernel, stride))
	}
	p := poolGeometry{n: shape[0], h: shape[1], w: shape[2], c: shape[3], kernel: kernel, stride: stride}
	p.outH = tensor.SamePoolSize(p.h, stride)
	p.outW = tensor.SamePoolSize(p.w, stride)
	// Total padding is split with the smaller half before the data.
	p.padT = max((p.outH-1)*stride+kernel-p.h, 0) / 2
	p.padL = max((p.outW-1)*stride+kernel-p.w, 0) / 2
	p.inputStride = p.h * p.w * p.c
	p.outputStride = p.outH * p.outW * p.c
	return p
}

// argmax returns the flat offset (inside one image) of the maximum element
// of the window for output (oy, ox, ch). Padding never wins.
func (p poolGeometry) argmax(image []float32, oy, ox, ch int) int {
	best := -1
	bestVal := float32(math.Inf(-1))
	for ky := 0; ky < p.kernel; ky++ {
		iy := oy*p.stride + ky - p.padT
		if iy < 0 || iy >= p.h {
			continue
		}
		for kx := 0; kx < p.kernel; kx++ {
			ix := ox*p.stride + kx - p.padL
			if ix < 0 || ix >= p.w {
				continue
			}
			idx := (iy*p.w+ix)*p.c + ch
			if best < 0 || image[idx] > bestVal {
				best = idx
				bestVal = image[idx]
			}
		}
	}
	return best
}

// MaxPool2D performs SAME-padded max pooling.
//
// Input shape:  [batch, rows, cols, channels]
// Output shape: [batch, ceil(rows/stride), ceil(cols/stride), channels]
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	p := newPoolGeometry("maxpool2d", input.Shape(), kernelSize, stride)
	output := cpu.result("maxpool2d", tensor.Shape{p.n, p.outH, p.outW, p.c}, input.DType())
	in, out := input.Data(), output.Data()

	for img := 0; img < p.n; img++ {
		image := in[img*p.inputStride : (img+1)*p.inputStride]
		dst := out[img*p.outputStride : (img+1)*p.outputStride]
		for oy := 0; oy < p.outH; oy++ {
			for ox := 0; ox < p.outW; ox++ {
				for ch := 0; ch < p.c; ch++ {
					dst[(oy*p.outW+ox)*p.c+ch] = image[p.argmax(image, oy, ox, ch)]
				}
			}
		}
	}
	return output
}

// MaxPool2DBackward routes each output gradient to the input position that
// held the window maximum. Overlapping windows accumulate.
func (cpu *CPUBackend) MaxPool2DBackward(grad, input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	p := newPoolGeometry("maxpool2dBackward", input.Shape(), kernelSize, stride)
	if !grad.Shape().Equal(tensor.Shape{p.n, p.outH, p.outW, p.c}) {
		panic(fmt.Sprintf("maxpool2dBackward: grad shape %v does not match output [%d %d %d %d]",
			grad.Shape(), p.n, p.outH, p.outW, p.c))
	}

	dInput := cpu.result("maxpool2dBackward", input.Shape(), grad.DType())
	in, gd, di := input.Data(), grad.Data(), dInput.Data()

	for img := 0; img < p.n; img++ {
		image := in[img*p.inputStride : (img+1)*p.inputStride]
		src := gd[img*p.outputStride : (img+1)*p.outputStride]
		dst := di[img*p.inputStride : (img+1)*p.inputStride]
		for oy := 0; oy < p.outH; oy++ {
			for ox := 0; ox < p.outW; ox++ {
				for ch := 0; ch < p.c; ch++ {
					dst[p.argmax(image, oy, ox, ch)] += src[(oy*p.outW+ox)*p.c+ch]
				}
			}
		}
	}
	return dInput.Quantize()
}
