package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/factory/internal/tensor"
)

// BatchNorm normalizes each channel (last axis) of x with the batch mean and
// population variance, then applies gamma and beta.
//
//	y = gamma * (x - mean) / sqrt(var + eps) + beta
func (cpu *CPUBackend) BatchNorm(x, gamma, beta *tensor.RawTensor, eps float32) *tensor.RawTensor {
	mean, variance := cpu.Moments(x)
	return cpu.Normalize(x, mean, variance, gamma, beta, eps)
}

// Normalize applies fixed per-channel statistics.
func (cpu *CPUBackend) Normalize(x, mean, variance, gamma, beta *tensor.RawTensor, eps float32) *tensor.RawTensor {
	c := x.Shape().Last()
	requireChannels("normalize", c, mean, variance, gamma, beta)

	invStd := inverseStd(variance.Data(), eps)
	out := cpu.result("normalize", x.Shape(), x.DType())
	xd, od := x.Data(), out.Data()
	md, gmd, bd := mean.Data(), gamma.Data(), beta.Data()
	for i := 0; i < len(xd); i += c {
		for j := 0; j < c; j++ {
			od[i+j] = gmd[j]*(xd[i+j]-md[j])*invStd[j] + bd[j]
		}
	}
	return out.Quantize()
}

// BatchNormBackward differentiates BatchNorm, including the dependence of the
// batch statistics on x:
//
//	dx = gamma * invStd / M * (M*g - sum(g) - xhat*sum(g*xhat))
func (cpu *CPUBackend) BatchNormBackward(grad, x, gamma *tensor.RawTensor, eps float32) (dx, dgamma, dbeta *tensor.RawTensor) {
	requireSameShape("batchNormBackward", grad, x)
	c := x.Shape().Last()
	m := float32(x.NumElements() / c)

	mean, variance := cpu.Moments(x)
	invStd := inverseStd(variance.Data(), eps)
	dgamma, dbeta = cpu.affineGrads(grad, x, mean.Data(), invStd)

	dx = cpu.result("batchNormBackward", x.Shape(), grad.DType())
	xd, gd, dd := x.Data(), grad.Data(), dx.Data()
	md, gmd := mean.Data(), gamma.Data()
	dgd, dbd := dgamma.Data(), dbeta.Data()
	for i := 0; i < len(xd); i += c {
		for j := 0; j < c; j++ {
			xhat := (xd[i+j] - md[j]) * invStd[j]
			dd[i+j] = gmd[j] * invStd[j] / m * (m*gd[i+j] - dbd[j] - xhat*dgd[j])
		}
	}
	return dx.Quantize(), dgamma, dbeta
}

// NormalizeBackward differentiates Normalize with the statistics held fixed.
func (cpu *CPUBackend) NormalizeBackward(grad, x, mean, variance, gamma *tensor.RawTensor, eps float32) (dx, dgamma, dbeta *tensor.RawTensor) {
	requireSameShape("normalizeBackward", grad, x)
	c := x.Shape().Last()
	requireChannels("normalizeBackward", c, mean, variance, gamma)

	invStd := inverseStd(variance.Data(), eps)
	dgamma, dbeta = cpu.affineGrads(grad, x, mean.Data(), invStd)

	dx = cpu.result("normalizeBackward", x.Shape(), grad.DType())
	gd, dd, gmd := grad.Data(), dx.Data(), gamma.Data()
	for i := 0; i < len(gd); i += c {
		for j := 0; j < c; j++ {
			dd[i+j] = gd[i+j] * gmd[j] * invStd[j]
		}
	}
	return dx.Quantize(), dgamma, dbeta
}

// affineGrads returns sum(g*xhat) and sum(g) per channel.
func (cpu *CPUBackend) affineGrads(grad, x *tensor.RawTensor, mean, invStd []float32) (dgamma, dbeta *tensor.RawTensor) {
	c := x.Shape().Last()
	dgamma = cpu.result("batchNormBackward", tensor.Shape{c}, grad.DType())
	dbeta = cpu.result("batchNormBackward", tensor.Shape{c}, grad.DType())

	sg := make([]float64, c)
	sgx := make([]float64, c)
	xd, gd := x.Data(), grad.Data()
	for i := 0; i < len(xd); i += c {
		for j := 0; j < c; j++ {
			xhat := (xd[i+j] - mean[j]) * invStd[j]
			sg[j] += float64(gd[i+j])
			sgx[j] += float64(gd[i+j] * xhat)
		}
	}

	dgd, dbd := dgamma.Data(), dbeta.Data()
	for j := 0; j < c; j++ {
		dgd[j] = float32(sgx[j])
		dbd[j] = float32(sg[j])
	}
	return dgamma.Quantize(), dbeta.Quantize()
}

func inverseStd(variance []float32, eps float32) []float32 {
	out := make([]float32, len(variance))
	for i, v := range variance {
		out[i] = float32(1 / math.Sqrt(float64(v+eps)))
	}
	return out
}

func requireChannels(op string, c int, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if len(t.Shape()) != 1 || t.Shape()[0] != c {
			panic(fmt.Sprintf("%s: expected per-channel tensor [%d], got %v", op, c, t.Shape()))
		}
	}
}
