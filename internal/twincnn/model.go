// Package twincnn builds the twin_cnn_8p1fp1f_sct regression network.
//
// The network runs NumParallelModules branches side by side. Branch g owns
// the g-th contiguous group of channels at every stage; the grouped
// convolutions never mix branches, and the three shortcut merges interleave
// the per-branch groups of a later stage with those of a pooled earlier stage.
//
//	conv1 ─┬─ poolSct1 ──────────────┐
//	       └─ conv2 ─ pool ─ conv3 ─ merge1 ─┬─ poolSct2 ──────────────┐
//	                                         └─ conv4 ─ pool ─ conv5 ─ merge2 ─┬─ poolSct3 ─────────────┐
//	                                                                           └─ conv6 ─ pool ─ conv7 ─ merge3
//	merge3 ─ conv8 ─ dropout ─ per-branch flatten ─ pfc1 ─ fc1
//
// Every conv stage is a 3x3 FireParallel block, optionally followed by batch
// normalization. Pooling is 2x2, stride 2, SAME padding.
package twincnn

import (
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"

	"github.com/born-ml/factory/internal/autodiff"
	"github.com/born-ml/factory/internal/config"
	"github.com/born-ml/factory/internal/nn"
	"github.com/born-ml/factory/internal/optim"
	"github.com/born-ml/factory/internal/tensor"
)

// Name is the registry name of this topology.
const Name = "twin_cnn_8p1fp1f_sct"

// Pooling geometry of every pool and shortcut pool.
const (
	poolSize   = 2
	poolStride = 2
)

// numConv is the number of convolution stages.
const numConv = 8

// convStage is one FireParallel block with optional batch normalization.
type convStage[B tensor.Backend] struct {
	fire *nn.FireParallel[B]
	bn   *nn.BatchNorm[B]
}

func (s *convStage[B]) forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	out := s.fire.Forward(x)
	if s.bn != nil {
		out = s.bn.Forward(out)
	}
	return out
}

func (s *convStage[B]) parameters() []*nn.Parameter[B] {
	params := s.fire.Parameters()
	if s.bn != nil {
		params = append(params, s.bn.Parameters()...)
	}
	return params
}

// Model is a constructed twin CNN. Weights are allocated once by New and
// reused by every Inference call.
//
// A Model is not safe for concurrent use: batch normalization updates its
// running statistics and an autodiff backend shares one gradient tape.
type Model[B tensor.Backend] struct {
	cfg     config.Config
	backend B
	logger  *slog.Logger

	convs   [numConv]*convStage[B]
	pool    *nn.MaxPool2D[B]
	dropout *nn.Dropout[B]
	pfc     *nn.FCParallel[B]
	pfcBN   *nn.BatchNorm[B]
	head    *nn.FCRegression[B]

	// Geometry fixed at construction.
	flatRows, flatCols int
	flatChannels       int

	trainer *optim.Trainer[B]
}

// Option configures New.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used by the model and its trainer.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New validates cfg and builds every layer of the network on backend.
//
// The input width of each stage is derived from the widths of the stages and
// merges that feed it. When backend records a gradient tape and the phase is
// train, recording is started.
func New[B tensor.Backend](cfg config.Config, backend B, opts ...Option) (*Model[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("twincnn: %w", err)
	}
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	n := cfg.NumParallelModules
	shape := cfg.ModelShape
	init := nn.NewInit(backend, cfg.DType(), cfg.Seed)

	m := &Model[B]{
		cfg:     cfg,
		backend: backend,
		logger:  o.logger,
		pool:    nn.NewMaxPool2D[B](poolSize, poolStride),
		dropout: nn.NewDropout[B](cfg.DropOutKeepRate, rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))),
	}

	// Channel bookkeeping: inputs[i] is the input width of conv i+1.
	merge1 := shape[2] + shape[0]
	merge2 := shape[4] + merge1
	merge3 := shape[6] + merge2
	inputs := [numConv]int{
		cfg.ImageDepthChannels,
		shape[0],
		shape[1],
		merge1,
		shape[3],
		merge2,
		shape[5],
		merge3,
	}
	for i := range m.convs {
		name := fmt.Sprintf("conv%d", i+1)
		stage := &convStage[B]{fire: nn.NewFireParallel(name, inputs[i], shape[i], n, init)}
		if cfg.BatchNorm {
			stage.bn = nn.NewBatchNorm(name+".batch_norm", shape[i], init)
		}
		m.convs[i] = stage
	}

	// conv8 runs after three poolings.
	m.flatRows, m.flatCols = cfg.ImageDepthRows, cfg.ImageDepthCols
	for range 3 {
		m.flatRows = tensor.SamePoolSize(m.flatRows, poolStride)
		m.flatCols = tensor.SamePoolSize(m.flatCols, poolStride)
	}
	m.flatChannels = shape[7]

	m.pfc = nn.NewFCParallel("pfc1", m.flatFeatures(), shape[8], n, init)
	if cfg.BatchNorm {
		m.pfcBN = nn.NewBatchNorm("pfc1.batch_norm", shape[8], init)
	}
	m.head = nn.NewFCRegression("fc1", shape[8], cfg.NetworkOutputSize, init)

	m.SetPhase(cfg.Phase)
	m.logger.Debug("model built",
		"model", Name,
		"branches", n,
		"parameters", nn.CountParameters(m.Parameters()),
		"dtype", cfg.DType().String(),
		"backend", backend.Name())
	return m, nil
}

// flatFeatures is the width of the flattened conv8 output.
func (m *Model[B]) flatFeatures() int {
	return m.flatRows * m.flatCols * m.flatChannels
}

// Config returns the configuration the model was built with.
func (m *Model[B]) Config() config.Config {
	return m.cfg
}

// Backend returns the backend the weights live on.
func (m *Model[B]) Backend() B {
	return m.backend
}

// SetPhase switches batch normalization and dropout between training and
// evaluation, and starts or stops tape recording on a differentiable backend.
func (m *Model[B]) SetPhase(phase config.Phase) {
	m.cfg.Phase = phase
	training := phase == config.PhaseTrain

	var layers []nn.Trainable
	for _, s := range m.convs {
		if s.bn != nil {
			layers = append(layers, s.bn)
		}
	}
	if m.pfcBN != nil {
		layers = append(layers, m.pfcBN)
	}
	layers = append(layers, m.dropout)
	for _, l := range layers {
		l.SetTraining(training)
	}

	if bc, ok := any(m.backend).(autodiff.BackwardCapable); ok {
		if training {
			bc.GetTape().StartRecording()
		} else {
			bc.GetTape().StopRecording()
		}
	}
}

// Parameters returns every trainable parameter in stage order.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, s := range m.convs {
		params = append(params, s.parameters()...)
	}
	params = append(params, m.pfc.Parameters()...)
	if m.pfcBN != nil {
		params = append(params, m.pfcBN.Parameters()...)
	}
	return append(params, m.head.Parameters()...)
}

// State returns every parameter and batch-norm running statistic keyed by
// name. Writing to the returned tensors updates the model.
func (m *Model[B]) State() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for _, p := range m.Parameters() {
		state[p.Name()] = p.Raw()
	}
	for _, s := range m.convs {
		if s.bn != nil {
			maps.Copy(state, s.bn.Buffers())
		}
	}
	if m.pfcBN != nil {
		maps.Copy(state, m.pfcBN.Buffers())
	}
	return state
}

// checkInput validates an image batch and returns its batch size.
func (m *Model[B]) checkInput(images *tensor.Tensor[B]) (int, error) {
	shape := images.Shape()
	if len(shape) != 4 {
		return 0, fmt.Errorf("inference: %w: expected [batch, rows, cols, channels], got %v", ErrInputRank, shape)
	}
	want := tensor.Shape{shape[0], m.cfg.ImageDepthRows, m.cfg.ImageDepthCols, m.cfg.ImageDepthChannels}
	if !shape.Equal(want) {
		return 0, fmt.Errorf("inference: %w: input %v, expected %v", ErrShapeMismatch, shape, want)
	}
	if b := m.cfg.ActiveBatchSize; b > 0 && b != shape[0] {
		return 0, fmt.Errorf("inference: %w: batch %d, activeBatchSize %d", ErrShapeMismatch, shape[0], b)
	}
	return shape[0], nil
}

// Inference runs the network on an NHWC image batch and returns the
// [batch, NetworkOutputSize] regression prediction.
func (m *Model[B]) Inference(images *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	batch, err := m.checkInput(images)
	if err != nil {
		return nil, err
	}
	n := m.cfg.NumParallelModules
	c := m.convs

	fireSct := c[0].forward(images)
	poolSct := m.pool.Forward(fireSct)
	fire := c[1].forward(fireSct)
	pool := m.pool.Forward(fire)
	fireSct = c[2].forward(pool)
	if fireSct, _, err = Shortcut(fireSct, poolSct, n); err != nil {
		return nil, fmt.Errorf("inference: merge1: %w", err)
	}
	poolSct = m.pool.Forward(fireSct)

	fire = c[3].forward(fireSct)
	pool = m.pool.Forward(fire)
	fireSct = c[4].forward(pool)
	if fireSct, _, err = Shortcut(fireSct, poolSct, n); err != nil {
		return nil, fmt.Errorf("inference: merge2: %w", err)
	}
	poolSct = m.pool.Forward(fireSct)

	fire = c[5].forward(fireSct)
	pool = m.pool.Forward(fire)
	fireSct = c[6].forward(pool)
	if fireSct, _, err = Shortcut(fireSct, poolSct, n); err != nil {
		return nil, fmt.Errorf("inference: merge3: %w", err)
	}

	fire = c[7].forward(fireSct)
	fire = m.dropout.Forward(fire)

	flat, err := m.flatten(fire, batch)
	if err != nil {
		return nil, err
	}

	out := m.pfc.Forward(flat)
	if m.pfcBN != nil {
		out = m.pfcBN.Forward(out)
	}
	return m.head.Forward(out), nil
}

// flatten reshapes every branch of x to [batch, features/n] separately and
// concatenates them, so the flat features stay grouped by branch.
func (m *Model[B]) flatten(x *tensor.Tensor[B], batch int) (*tensor.Tensor[B], error) {
	branches, _, err := Separate(x, m.cfg.NumParallelModules)
	if err != nil {
		return nil, fmt.Errorf("inference: flatten: %w", err)
	}
	flat := make(Branches[B], len(branches))
	for i, b := range branches {
		flat[i] = b.Reshape(batch, -1)
	}
	return flat.Concat(), nil
}

// Inference builds a model from cfg on backend and runs it on images.
//
// Each call allocates fresh weights; use New and Model.Inference to reuse them.
func Inference[B tensor.Backend](images *tensor.Tensor[B], cfg config.Config, backend B) (*tensor.Tensor[B], error) {
	m, err := New(cfg, backend)
	if err != nil {
		return nil, err
	}
	return m.Inference(images)
}
