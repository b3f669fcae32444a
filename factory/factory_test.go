// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package factory_test

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/born-ml/factory/factory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twin = "twin_cnn_8p1fp1f_sct"

func smallConfig(t *testing.T) factory.Config {
	t.Helper()
	cfg, err := factory.ParseConfig([]byte(`
modelShape: [4, 4, 8, 8, 8, 8, 16, 16, 32]
imageDepthRows: 16
imageDepthCols: 16
networkOutputSize: 8
phase: test
`))
	require.NoError(t, err)
	return cfg
}

func TestNames(t *testing.T) {
	assert.Contains(t, factory.Names(), twin)

	builder, ok := factory.Lookup(twin)
	assert.True(t, ok)
	assert.NotNil(t, builder)

	_, ok = factory.Lookup("resnet")
	assert.False(t, ok)
}

func TestBuild_Inference(t *testing.T) {
	backend := factory.NewBackendWithWorkers(2)
	model, err := factory.Build(twin, smallConfig(t), backend, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	out, err := model.Inference(factory.Randn(factory.Shape{2, 16, 16, 2}, 1, backend))
	require.NoError(t, err)
	assert.Equal(t, factory.Shape{2, 8}, out.Shape())
	assert.NotEmpty(t, model.Parameters())
	assert.Equal(t, "fc1", model.Summary()[len(model.Summary())-1].Name)
}

func TestBuild_Errors(t *testing.T) {
	backend := factory.NewBackend()

	_, err := factory.Build("resnet", factory.DefaultConfig(), backend, nil)
	require.ErrorIs(t, err, factory.ErrUnknownModel)

	cfg := smallConfig(t)
	cfg.ModelShape = cfg.ModelShape[:3]
	_, err = factory.Build(twin, cfg, backend, nil)
	require.ErrorIs(t, err, factory.ErrInvalidConfig)
}

func TestRegister(t *testing.T) {
	assert.Panics(t, func() { factory.Register(twin, nil) })
	assert.Panics(t, func() {
		factory.Register(twin, func(factory.Config, factory.Backend, *slog.Logger) (factory.Model, error) { return nil, nil })
	})

	factory.Register("test_model", func(factory.Config, factory.Backend, *slog.Logger) (factory.Model, error) {
		return nil, nil
	})
	assert.Contains(t, factory.Names(), "test_model")
}

func TestCheckpoint_RoundTrip(t *testing.T) {
	backend := factory.NewBackend()
	model, err := factory.Build(twin, smallConfig(t), backend, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.born")
	require.NoError(t, factory.SaveCheckpoint(path, model, factory.CheckpointMeta{Step: 7, Loss: 0.25}))

	cfg := smallConfig(t)
	cfg.Seed = 5
	other, err := factory.Build(twin, cfg, backend, nil)
	require.NoError(t, err)
	meta, err := factory.LoadCheckpoint(path, other)
	require.NoError(t, err)
	assert.Equal(t, 7, meta.Step)
	assert.Equal(t, "momentum", meta.Optimizer)

	for name, raw := range model.State() {
		assert.Equal(t, raw.Data(), other.State()[name].Data(), name)
	}
}

func TestCheckpoint_RestoresTrainedPredictions(t *testing.T) {
	cfg := smallConfig(t)
	cfg.BatchNorm = true
	cfg.Phase = factory.PhaseTrain
	cfg.DropOutKeepRate = 1
	cfg.Optimizer = "adam"
	cfg.InitialLearningRate = 1e-3

	backend := factory.NewBackend()
	trained, err := factory.Build(twin, cfg, backend, nil)
	require.NoError(t, err)

	x := factory.Randn(factory.Shape{2, 16, 16, 2}, 3, backend)
	target := factory.Randn(factory.Shape{2, 8}, 4, backend)
	var last factory.StepResult
	for step := range 3 {
		pred, err := trained.Inference(x)
		require.NoError(t, err)
		loss, err := trained.Loss(pred, target, nil)
		require.NoError(t, err)
		last, err = trained.Train(loss, step)
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "twin.born")
	require.NoError(t, factory.SaveCheckpoint(path, trained, factory.CheckpointMeta{Step: last.Step, Loss: last.Loss}))

	cfg.Seed = 99
	cfg.Phase = factory.PhaseTest
	evalBackend := factory.NewBackend()
	fresh, err := factory.Build(twin, cfg, evalBackend, nil)
	require.NoError(t, err)
	meta, err := factory.LoadCheckpoint(path, fresh)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.Step)
	assert.Equal(t, "adam", meta.Optimizer)

	trained.SetPhase(factory.PhaseTest)
	want, err := trained.Inference(x)
	require.NoError(t, err)
	got, err := fresh.Inference(factory.Randn(factory.Shape{2, 16, 16, 2}, 3, evalBackend))
	require.NoError(t, err)
	assert.Equal(t, want.Data(), got.Data())
}

func TestCheckpoint_RejectsOtherTopology(t *testing.T) {
	backend := factory.NewBackend()
	model, err := factory.Build(twin, smallConfig(t), backend, nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "twin.born")
	require.NoError(t, factory.SaveCheckpoint(path, model, factory.CheckpointMeta{}))

	cfg := smallConfig(t)
	cfg.BatchNorm = true
	withBN, err := factory.Build(twin, cfg, backend, nil)
	require.NoError(t, err)
	_, err = factory.LoadCheckpoint(path, withBN)
	require.Error(t, err)

	renamed := smallConfig(t)
	renamed.ModelName = "twin_v2"
	other, err := factory.Build(twin, renamed, backend, nil)
	require.NoError(t, err)
	_, err = factory.LoadCheckpoint(path, other)
	require.ErrorIs(t, err, factory.ErrWrongModel)

	_, err = factory.LoadCheckpoint(filepath.Join(t.TempDir(), "missing.born"), model)
	require.Error(t, err)
}
