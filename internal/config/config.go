// Package config holds the typed configuration of a model definition.
//
// Every recognized option has a field with a default and is validated once by
// Validate. Files are YAML; since YAML is a superset of JSON, JSON files load
// through the same path. Keys are camelCase, e.g.
//
//	modelShape: [16, 16, 32, 32, 64, 64, 128, 128, 256]
//	numParallelModules: 2
//	networkOutputSize: 16
//	batchNorm: true
//	phase: train
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/born-ml/factory/internal/tensor"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid config")

// NumStages is the number of ModelShape entries: eight convolution widths and
// the width of the parallel fully connected stage.
const NumStages = 9

// Phase selects training or evaluation behavior.
type Phase string

// Phases.
const (
	PhaseTrain Phase = "train"
	PhaseTest  Phase = "test"
)

// Config enumerates every option of the model definition.
type Config struct {
	// ModelName selects the topology in the factory registry.
	ModelName string `yaml:"modelName"`

	// ModelShape holds the output width of the eight convolution stages
	// followed by the width of the parallel fully connected stage.
	ModelShape []int `yaml:"modelShape"`

	// UseFP16 stores parameters and constants in half precision.
	UseFP16 bool `yaml:"usefp16"`

	// ActiveBatchSize is the batch used when flattening; 0 takes it from the input.
	ActiveBatchSize int `yaml:"activeBatchSize"`

	BatchNorm          bool    `yaml:"batchNorm"`
	NumParallelModules int     `yaml:"numParallelModules"`
	DropOutKeepRate    float32 `yaml:"dropOutKeepRate"`
	Phase              Phase   `yaml:"phase"`
	NetworkOutputSize  int     `yaml:"networkOutputSize"`

	// Input geometry. Rows and cols fix the width of the flattened
	// features feeding the parallel fully connected stage.
	ImageDepthRows     int `yaml:"imageDepthRows"`
	ImageDepthCols     int `yaml:"imageDepthCols"`
	ImageDepthChannels int `yaml:"imageDepthChannels"`

	// Training options.
	WeightDecay             float32 `yaml:"weightDecay"`
	LossFunction            string  `yaml:"lossFunction"`
	Optimizer               string  `yaml:"optimizer"`
	InitialLearningRate     float32 `yaml:"initialLearningRate"`
	LearningRateDecayFactor float32 `yaml:"learningRateDecayFactor"`
	NumEpochsPerDecay       float32 `yaml:"numEpochsPerDecay"`
	NumExamplesPerEpoch     int     `yaml:"numExamplesPerEpoch"`
	Momentum                float32 `yaml:"momentum"`

	// Seed makes weight initialization and dropout masks reproducible.
	Seed uint64 `yaml:"seed"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		ModelName:               "twin_cnn_8p1fp1f_sct",
		ModelShape:              []int{32, 32, 64, 64, 128, 128, 256, 256, 1024},
		NumParallelModules:      2,
		DropOutKeepRate:         0.5,
		Phase:                   PhaseTrain,
		NetworkOutputSize:       8,
		ImageDepthRows:          128,
		ImageDepthCols:          128,
		ImageDepthChannels:      2,
		LossFunction:            "l2",
		Optimizer:               "momentum",
		InitialLearningRate:     0.01,
		LearningRateDecayFactor: 0.1,
		NumEpochsPerDecay:       30,
		NumExamplesPerEpoch:     50000,
		Momentum:                0.9,
		Seed:                    1,
	}
}

// Load reads a YAML or JSON file over the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML or JSON over the defaults and validates the result.
// Keys absent from data keep their default values.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every option once. Divisibility of the input depth and of
// every stage width by NumParallelModules is enforced here, so a valid Config
// never reaches a channel split that would truncate.
func (c Config) Validate() error {
	if c.NumParallelModules < 1 {
		return invalid("numParallelModules must be positive, got %d", c.NumParallelModules)
	}
	if len(c.ModelShape) != NumStages {
		return invalid("modelShape needs %d entries, got %d", NumStages, len(c.ModelShape))
	}
	for i, w := range c.ModelShape {
		if w <= 0 {
			return invalid("modelShape[%d] must be positive, got %d", i, w)
		}
		if w%c.NumParallelModules != 0 {
			return invalid("modelShape[%d]=%d is not divisible by numParallelModules=%d", i, w, c.NumParallelModules)
		}
	}
	if c.ImageDepthChannels <= 0 || c.ImageDepthChannels%c.NumParallelModules != 0 {
		return invalid("imageDepthChannels=%d must be positive and divisible by numParallelModules=%d",
			c.ImageDepthChannels, c.NumParallelModules)
	}
	if c.ImageDepthRows <= 0 || c.ImageDepthCols <= 0 {
		return invalid("image geometry must be positive, got %dx%d", c.ImageDepthRows, c.ImageDepthCols)
	}
	if c.NetworkOutputSize <= 0 {
		return invalid("networkOutputSize must be positive, got %d", c.NetworkOutputSize)
	}
	if c.ActiveBatchSize < 0 {
		return invalid("activeBatchSize must not be negative, got %d", c.ActiveBatchSize)
	}
	if c.DropOutKeepRate <= 0 || c.DropOutKeepRate > 1 {
		return invalid("dropOutKeepRate must be in (0, 1], got %v", c.DropOutKeepRate)
	}
	if c.Phase != PhaseTrain && c.Phase != PhaseTest {
		return invalid("phase must be %q or %q, got %q", PhaseTrain, PhaseTest, c.Phase)
	}
	switch c.LossFunction {
	case "l2", "mse":
	default:
		return invalid("unknown lossFunction %q", c.LossFunction)
	}
	switch c.Optimizer {
	case "sgd", "momentum", "adam":
	default:
		return invalid("unknown optimizer %q", c.Optimizer)
	}
	if c.WeightDecay < 0 {
		return invalid("weightDecay must not be negative, got %v", c.WeightDecay)
	}
	if c.InitialLearningRate <= 0 {
		return invalid("initialLearningRate must be positive, got %v", c.InitialLearningRate)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// DType returns the precision selected by UseFP16.
func (c Config) DType() tensor.DataType {
	if c.UseFP16 {
		return tensor.Float16
	}
	return tensor.Float32
}

// Training reports whether the phase is training.
func (c Config) Training() bool {
	return c.Phase == PhaseTrain
}

// KeepProb returns the dropout keep probability for the phase:
// DropOutKeepRate when training, 1 otherwise.
func (c Config) KeepProb() float32 {
	if c.Training() {
		return c.DropOutKeepRate
	}
	return 1
}

// DecayBatchSize is the batch size used to derive the learning-rate decay
// interval. It falls back to 1 when ActiveBatchSize is taken from the input.
func (c Config) DecayBatchSize() int {
	return max(c.ActiveBatchSize, 1)
}
