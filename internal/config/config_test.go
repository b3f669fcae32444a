package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/factory/internal/config"
	"github.com/born-ml/factory/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2, cfg.NumParallelModules)
	assert.Equal(t, float32(0.5), cfg.DropOutKeepRate)
	assert.Equal(t, config.PhaseTrain, cfg.Phase)
	assert.Equal(t, tensor.Float32, cfg.DType())
	assert.Equal(t, float32(0.5), cfg.KeepProb())
}

func TestKeepProb_TestPhase(t *testing.T) {
	cfg := config.Default()
	cfg.Phase = config.PhaseTest
	assert.Equal(t, float32(1), cfg.KeepProb())
	assert.False(t, cfg.Training())

	cfg.UseFP16 = true
	assert.Equal(t, tensor.Float16, cfg.DType())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"short model shape", func(c *config.Config) { c.ModelShape = []int{8, 8} }},
		{"zero width", func(c *config.Config) { c.ModelShape[3] = 0 }},
		{"indivisible width", func(c *config.Config) { c.ModelShape[2] = 33 }},
		{"indivisible input depth", func(c *config.Config) { c.ImageDepthChannels = 3 }},
		{"no branches", func(c *config.Config) { c.NumParallelModules = 0 }},
		{"zero output", func(c *config.Config) { c.NetworkOutputSize = 0 }},
		{"keep rate", func(c *config.Config) { c.DropOutKeepRate = 1.5 }},
		{"phase", func(c *config.Config) { c.Phase = "eval" }},
		{"loss", func(c *config.Config) { c.LossFunction = "huber" }},
		{"optimizer", func(c *config.Config) { c.Optimizer = "rmsprop" }},
		{"batch", func(c *config.Config) { c.ActiveBatchSize = -1 }},
		{"rows", func(c *config.Config) { c.ImageDepthRows = 0 }},
		{"weight decay", func(c *config.Config) { c.WeightDecay = -1 }},
		{"learning rate", func(c *config.Config) { c.InitialLearningRate = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
		})
	}
}

func TestParse_YAMLOverDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`
modelShape: [4, 4, 8, 8, 8, 8, 16, 16, 32]
networkOutputSize: 16
phase: test
usefp16: true
batchNorm: true
`))
	require.NoError(t, err)

	assert.Equal(t, []int{4, 4, 8, 8, 8, 8, 16, 16, 32}, cfg.ModelShape)
	assert.Equal(t, 16, cfg.NetworkOutputSize)
	assert.Equal(t, config.PhaseTest, cfg.Phase)
	assert.True(t, cfg.UseFP16)
	assert.True(t, cfg.BatchNorm)
	assert.Equal(t, 2, cfg.NumParallelModules, "default kept")
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"numParallelModules": 4, "imageDepthChannels": 4, "modelShape": [4,4,8,8,8,8,16,16,32]}`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.NumParallelModules)
	assert.Equal(t, 4, cfg.ImageDepthChannels)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = config.Parse([]byte("numParallelModules: 3"))
	require.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = config.Parse([]byte("modelShape: {"))
	require.Error(t, err)
}
