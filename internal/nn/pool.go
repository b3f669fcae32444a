package nn

import (
	"github.com/born-ml/factory/internal/tensor"
)

// MaxPool2D applies SAME-padded max pooling over rows and cols.
//
// Output shape: [batch, ceil(rows/stride), ceil(cols/stride), channels]
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
}

// NewMaxPool2D creates a max-pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int) *MaxPool2D[B] {
	return &MaxPool2D[B]{kernelSize: kernelSize, stride: stride}
}

// Forward pools x.
func (m *MaxPool2D[B]) Forward(x *tensor.Tensor[B]) *tensor.Tensor[B] {
	return x.MaxPool2D(m.kernelSize, m.stride)
}

// OutputShape returns the pooled shape of an NHWC input shape.
func (m *MaxPool2D[B]) OutputShape(in tensor.Shape) tensor.Shape {
	return tensor.Shape{in[0], tensor.SamePoolSize(in[1], m.stride), tensor.SamePoolSize(in[2], m.stride), in[3]}
}

// Parameters returns nil; pooling has no weights.
func (m *MaxPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}
