// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package factory

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/born-ml/factory/internal/checkpoint"
)

// ErrWrongModel reports a checkpoint written by another model definition.
var ErrWrongModel = errors.New("checkpoint belongs to another model")

// SaveCheckpoint writes the parameters and running statistics of model to a
// .born file at path. meta records the training progress; an empty
// meta.Optimizer is taken from the model config.
func SaveCheckpoint(path string, model Model, meta CheckpointMeta) error {
	cfg := model.Config()
	if meta.Optimizer == "" {
		meta.Optimizer = cfg.Optimizer
	}

	err := checkpoint.Save(path, model.State(), checkpoint.Header{
		ModelType: cfg.ModelName,
		Metadata: map[string]string{
			"branches": strconv.Itoa(cfg.NumParallelModules),
			"dtype":    cfg.DType().String(),
		},
		Checkpoint: &meta,
	})
	if err != nil {
		return fmt.Errorf("factory: save %s: %w", path, err)
	}
	return nil
}

// LoadCheckpoint restores the state of model from the .born file at path.
// The file must have been written by a model with the same name and
// topology. Nothing is modified when an error is returned.
func LoadCheckpoint(path string, model Model) (CheckpointMeta, error) {
	f, err := checkpoint.Open(path)
	if err != nil {
		return CheckpointMeta{}, fmt.Errorf("factory: load %s: %w", path, err)
	}

	header := f.Header()
	if name := model.Config().ModelName; header.ModelType != name {
		return CheckpointMeta{}, fmt.Errorf("factory: load %s: %w: %q, want %q", path, ErrWrongModel, header.ModelType, name)
	}
	if err := f.Restore(model.State()); err != nil {
		return CheckpointMeta{}, fmt.Errorf("factory: load %s: %w", path, err)
	}

	var meta CheckpointMeta
	if header.Checkpoint != nil {
		meta = *header.Checkpoint
	}
	return meta, nil
}
