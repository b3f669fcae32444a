// Package cpu implements the CPU backend on top of gonum BLAS.
package cpu

import (
	"fmt"

	"github.com/born-ml/factory/internal/parallel"
	"github.com/born-ml/factory/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
//
// Dense products go through gonum's blas32 GEMM. Convolutions are lowered
// to GEMM with im2col, one task per (image, branch) pair.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend using all available cores.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with an explicit parallelism config.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// result allocates a zero-filled output tensor.
func (cpu *CPUBackend) result(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	r, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return r
}

func requireSameShape(op string, a, b *tensor.RawTensor) {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("%s: shape mismatch %v vs %v", op, a.Shape(), b.Shape()))
	}
}

func requireRank(op string, x *tensor.RawTensor, rank int) {
	if len(x.Shape()) != rank {
		panic(fmt.Sprintf("%s: expected %dD tensor, got shape %v", op, rank, x.Shape()))
	}
}
