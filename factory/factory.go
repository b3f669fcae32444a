// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package factory

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/born-ml/factory/internal/twincnn"
)

// ErrUnknownModel is returned by Build for an unregistered name.
var ErrUnknownModel = errors.New("unknown model")

// Model is a built network with its loss and training steps.
type Model interface {
	// Inference runs the network on an NHWC image batch.
	Inference(images *Tensor) (*Tensor, error)

	// Loss computes the configured loss of pred + predPrev against target.
	// predPrev may be nil.
	Loss(pred, target, predPrev *Tensor) (*Tensor, error)

	// Train runs one optimization step from loss.
	Train(loss *Tensor, step int) (StepResult, error)

	// Test records an evaluation loss.
	Test(loss *Tensor, step int) (float32, error)

	// SetPhase switches between training and evaluation.
	SetPhase(phase Phase)

	// Summary lists the output shape of every stage.
	Summary() []StageInfo

	// Parameters lists every trainable parameter.
	Parameters() []*Parameter

	// Config returns the configuration the model was built with.
	Config() Config

	// State returns every parameter and running statistic keyed by name.
	State() map[string]*RawTensor
}

// Builder constructs a model definition. logger may be nil.
type Builder func(cfg Config, backend Backend, logger *slog.Logger) (Model, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Builder{}
)

func init() {
	Register(twincnn.Name, func(cfg Config, backend Backend, logger *slog.Logger) (Model, error) {
		var opts []twincnn.Option
		if logger != nil {
			opts = append(opts, twincnn.WithLogger(logger))
		}
		return twincnn.New(cfg, backend, opts...)
	})
}

// Register makes a model definition available under name.
// Panics if name is empty, builder is nil or name is already registered.
func Register(name string, builder Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if name == "" || builder == nil {
		panic("factory: Register with empty name or nil builder")
	}
	if _, dup := registry[name]; dup {
		panic("factory: Register called twice for model " + name)
	}
	registry[name] = builder
}

// Lookup returns the builder registered under name.
func Lookup(name string) (Builder, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	b, ok := registry[name]
	return b, ok
}

// Names returns the registered model names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	return slices.Sorted(maps.Keys(registry))
}

// Build constructs the model registered under name.
func Build(name string, cfg Config, backend Backend, logger *slog.Logger) (Model, error) {
	builder, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("factory: %w: %q (known: %v)", ErrUnknownModel, name, Names())
	}
	return builder(cfg, backend, logger)
}
