package cpu

import (
	"github.com/born-ml/factory/internal/tensor"
	"gonum.org/v1/gonum/stat"
)

// Sum reduces all elements to a tensor of shape [1].
// Accumulates in float64 to keep large losses stable.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	var acc float64
	for _, v := range x.Data() {
		acc += float64(v)
	}
	out := cpu.result("sum", tensor.Shape{1}, x.DType())
	out.Data()[0] = float32(acc)
	return out.Quantize()
}

// SumToLast sums over every axis except the last: [..., C] -> [C].
func (cpu *CPUBackend) SumToLast(x *tensor.RawTensor) *tensor.RawTensor {
	c := x.Shape().Last()
	acc := make([]float64, c)
	xd := x.Data()
	for i := 0; i < len(xd); i += c {
		for j := 0; j < c; j++ {
			acc[j] += float64(xd[i+j])
		}
	}

	out := cpu.result("sumToLast", tensor.Shape{c}, x.DType())
	od := out.Data()
	for j, v := range acc {
		od[j] = float32(v)
	}
	return out.Quantize()
}

// Moments returns the population mean and variance of each channel
// (last axis) over all other axes.
func (cpu *CPUBackend) Moments(x *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	c := x.Shape().Last()
	m := x.NumElements() / c

	mean = cpu.result("moments", tensor.Shape{c}, x.DType())
	variance = cpu.result("moments", tensor.Shape{c}, x.DType())
	md, vd := mean.Data(), variance.Data()

	xd := x.Data()
	column := make([]float64, m)
	for ch := 0; ch < c; ch++ {
		for i := 0; i < m; i++ {
			column[i] = float64(xd[i*c+ch])
		}
		mu, v := stat.PopMeanVariance(column, nil)
		md[ch] = float32(mu)
		vd[ch] = float32(v)
	}

	return mean.Quantize(), variance.Quantize()
}
