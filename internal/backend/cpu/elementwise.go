package cpu

import (
	"fmt"

	"github.com/born-ml/factory/internal/tensor"
)

// Add performs element-wise addition of same-shaped tensors.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction of same-shaped tensors.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication of same-shaped tensors.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	requireSameShape(op, a, b)
	out := cpu.result(op, a.Shape(), tensor.Promote(a.DType(), b.DType()))
	ad, bd, od := a.Data(), b.Data(), out.Data()
	for i := range od {
		od[i] = f(ad[i], bd[i])
	}
	return out.Quantize()
}

// MulScalar multiplies every element by s.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	out := cpu.result("mulScalar", x.Shape(), x.DType())
	xd, od := x.Data(), out.Data()
	for i, v := range xd {
		od[i] = v * s
	}
	return out.Quantize()
}

// AddBias adds bias [C] to every position of x [..., C].
func (cpu *CPUBackend) AddBias(x, bias *tensor.RawTensor) *tensor.RawTensor {
	c := x.Shape().Last()
	if len(bias.Shape()) != 1 || bias.Shape()[0] != c {
		panic(fmt.Sprintf("addBias: bias shape %v does not match last dim of %v", bias.Shape(), x.Shape()))
	}

	out := cpu.result("addBias", x.Shape(), tensor.Promote(x.DType(), bias.DType()))
	xd, bd, od := x.Data(), bias.Data(), out.Data()
	for i := 0; i < len(xd); i += c {
		for j := 0; j < c; j++ {
			od[i+j] = xd[i+j] + bd[j]
		}
	}
	return out.Quantize()
}

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	out := cpu.result("relu", x.Shape(), x.DType())
	xd, od := x.Data(), out.Data()
	for i, v := range xd {
		if v > 0 {
			od[i] = v
		}
	}
	return out
}

// ReLUBackward passes grad where the forward input was positive.
func (cpu *CPUBackend) ReLUBackward(grad, x *tensor.RawTensor) *tensor.RawTensor {
	requireSameShape("reluBackward", grad, x)
	out := cpu.result("reluBackward", x.Shape(), grad.DType())
	gd, xd, od := grad.Data(), x.Data(), out.Data()
	for i, v := range xd {
		if v > 0 {
			od[i] = gd[i]
		}
	}
	return out
}
