package tensor

import "fmt"

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	default:
		return "Unknown"
	}
}

// RawTensor is the low-level tensor representation handled by backends.
//
// A RawTensor is never mutated by a kernel once it has been returned:
// every operation allocates a fresh result. The autodiff tape relies on
// pointer identity of RawTensors to route gradients.
type RawTensor struct {
	data   []float32
	shape  Shape
	stride []int
	dtype  DataType
	device Device
}

// NewRaw creates a new zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:   make([]float32, shape.NumElements()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// MustRaw is like NewRaw but panics on an invalid shape.
// Kernels use it for result tensors whose shape they have already checked.
func MustRaw(shape Shape, dtype DataType, device Device) *RawTensor {
	r, err := NewRaw(shape, dtype, device)
	if err != nil {
		panic(err)
	}
	return r
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's row-major strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// Data returns the underlying storage.
//
// WARNING: the slice aliases the tensor. Only kernels filling a freshly
// allocated result and optimizers updating parameters should write to it.
func (r *RawTensor) Data() []float32 {
	return r.data
}

// Clone returns a deep copy with the same shape and type.
func (r *RawTensor) Clone() *RawTensor {
	data := make([]float32, len(r.data))
	copy(data, r.data)
	return &RawTensor{
		data:   data,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
	}
}

// Fill sets every element to v (rounded to the tensor's precision).
func (r *RawTensor) Fill(v float32) {
	v = r.dtype.Scalar(v)
	for i := range r.data {
		r.data[i] = v
	}
}

// Quantize rounds the data to the tensor's precision in place.
// It is a no-op for Float32 tensors.
func (r *RawTensor) Quantize() *RawTensor {
	r.dtype.Round(r.data)
	return r
}
