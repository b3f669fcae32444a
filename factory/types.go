// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package factory

import (
	"math/rand/v2"

	"github.com/born-ml/factory/internal/autodiff"
	"github.com/born-ml/factory/internal/backend/cpu"
	"github.com/born-ml/factory/internal/checkpoint"
	"github.com/born-ml/factory/internal/config"
	"github.com/born-ml/factory/internal/nn"
	"github.com/born-ml/factory/internal/optim"
	"github.com/born-ml/factory/internal/parallel"
	"github.com/born-ml/factory/internal/tensor"
	"github.com/born-ml/factory/internal/twincnn"
)

// Backend is the differentiable CPU backend every registered model runs on.
type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Tensor is a tensor on Backend.
type Tensor = tensor.Tensor[Backend]

// RawTensor is the backend-independent storage of a tensor.
type RawTensor = tensor.RawTensor

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// DataType is the element precision of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float16 DataType = tensor.Float16
)

// Config enumerates every model option.
type Config = config.Config

// Phase selects training or evaluation behavior.
type Phase = config.Phase

// Phases.
const (
	PhaseTrain Phase = config.PhaseTrain
	PhaseTest  Phase = config.PhaseTest
)

// Parameter is a trainable weight of a model.
type Parameter = nn.Parameter[Backend]

// StepResult reports one training step.
type StepResult = optim.StepResult

// CheckpointMeta is the training progress stored in a checkpoint.
type CheckpointMeta = checkpoint.Meta

// StageInfo describes the output of one stage of a model.
type StageInfo = twincnn.StageInfo

// Errors reported by models and configs.
var (
	ErrInvalidConfig       = config.ErrInvalidConfig
	ErrIndivisibleChannels = twincnn.ErrIndivisibleChannels
	ErrShapeMismatch       = twincnn.ErrShapeMismatch
	ErrInputRank           = twincnn.ErrInputRank
	ErrNotDifferentiable   = optim.ErrNotDifferentiable
	ErrChecksumMismatch    = checkpoint.ErrChecksumMismatch
)

// NewBackend creates a differentiable CPU backend using all cores.
func NewBackend() Backend {
	return autodiff.New(cpu.New())
}

// NewBackendWithWorkers creates a differentiable CPU backend limited to
// workers goroutines per kernel. Results do not depend on the worker count.
func NewBackendWithWorkers(workers int) Backend {
	cfg := parallel.DefaultConfig()
	cfg.Workers = workers
	return autodiff.New(cpu.NewWithConfig(cfg))
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads and validates a YAML or JSON configuration file.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// ParseConfig decodes and validates YAML or JSON configuration data.
func ParseConfig(data []byte) (Config, error) {
	return config.Parse(data)
}

// FromSlice creates a tensor from data.
func FromSlice(data []float32, shape Shape, dtype DataType, backend Backend) (*Tensor, error) {
	return tensor.FromSlice(data, shape, dtype, backend)
}

// Zeros creates a zero tensor.
func Zeros(shape Shape, dtype DataType, backend Backend) *Tensor {
	return tensor.Zeros(shape, dtype, backend)
}

// Randn creates a tensor of standard normal values drawn from a generator
// seeded with seed.
func Randn(shape Shape, seed uint64, backend Backend) *Tensor {
	return tensor.Randn(shape, rand.New(rand.NewPCG(seed, seed)), tensor.Float32, backend)
}

// WriteSummary prints stages as an aligned table.
var WriteSummary = twincnn.WriteSummary
