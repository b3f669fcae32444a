package twincnn

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/born-ml/factory/internal/nn"
	"github.com/born-ml/factory/internal/tensor"
)

// StageInfo describes the output of one stage of the network.
type StageInfo struct {
	Name       string
	Shape      tensor.Shape // batch is -1 when taken from the input
	Channels   int
	Parameters int
}

// Summary returns the output shape of every stage, derived from the config
// without running any kernel.
func (m *Model[B]) Summary() []StageInfo {
	batch := m.cfg.ActiveBatchSize
	if batch == 0 {
		batch = -1
	}
	shape := m.cfg.ModelShape
	rows, cols := m.cfg.ImageDepthRows, m.cfg.ImageDepthCols

	var stages []StageInfo
	add := func(name string, rows, cols, channels int, params []*nn.Parameter[B]) {
		stages = append(stages, StageInfo{
			Name:       name,
			Shape:      tensor.Shape{batch, rows, cols, channels},
			Channels:   channels,
			Parameters: nn.CountParameters(params),
		})
	}
	half := func(size int) int { return tensor.SamePoolSize(size, poolStride) }
	conv := func(i, rows, cols int) {
		add(fmt.Sprintf("conv%d", i+1), rows, cols, shape[i], m.convs[i].parameters())
	}

	add("input", rows, cols, m.cfg.ImageDepthChannels, nil)
	sct := shape[0]
	for block := 0; block < 3; block++ {
		first := 2 * block
		if block == 0 {
			conv(0, rows, cols)
		}
		add(fmt.Sprintf("poolSct%d", block+1), half(rows), half(cols), sct, nil)
		conv(first+1, rows, cols)
		rows, cols = half(rows), half(cols)
		add(fmt.Sprintf("pool%d", block+1), rows, cols, shape[first+1], nil)
		conv(first+2, rows, cols)
		sct += shape[first+2]
		add(fmt.Sprintf("merge%d", block+1), rows, cols, sct, nil)
	}
	conv(7, rows, cols)
	add("dropout", rows, cols, shape[7], nil)

	features := m.flatFeatures()
	stages = append(stages,
		StageInfo{Name: "flatten", Shape: tensor.Shape{batch, features}, Channels: features},
		StageInfo{Name: "pfc1", Shape: tensor.Shape{batch, shape[8]}, Channels: shape[8], Parameters: nn.CountParameters(m.pfcParameters())},
		StageInfo{Name: "fc1", Shape: tensor.Shape{batch, m.cfg.NetworkOutputSize}, Channels: m.cfg.NetworkOutputSize, Parameters: nn.CountParameters(m.head.Parameters())},
	)
	return stages
}

func (m *Model[B]) pfcParameters() []*nn.Parameter[B] {
	params := m.pfc.Parameters()
	if m.pfcBN != nil {
		params = append(params, m.pfcBN.Parameters()...)
	}
	return params
}

// WriteSummary prints stages as an aligned table.
func WriteSummary(w io.Writer, stages []StageInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tOUTPUT\tCHANNELS\tPARAMS")
	total := 0
	for _, s := range stages {
		fmt.Fprintf(tw, "%s\t%v\t%d\t%d\n", s.Name, s.Shape, s.Channels, s.Parameters)
		total += s.Parameters
	}
	fmt.Fprintf(tw, "total\t\t\t%d\n", total)
	return tw.Flush()
}
