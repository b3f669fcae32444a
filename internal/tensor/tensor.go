package tensor

import "fmt"

// Tensor is a float tensor bound to a computation backend B.
//
// Every operation dispatches to the backend, so wrapping a backend with the
// autodiff decorator is enough to record gradients for any computation built
// from Tensor methods.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros(Shape{3, 4}, Float32, backend)
//	result := t.Add(t)
type Tensor[B Backend] struct {
	raw     *RawTensor
	backend B
}

// New creates a Tensor from a RawTensor and backend.
func New[B Backend](raw *RawTensor, b B) *Tensor[B] {
	return &Tensor[B]{raw: raw, backend: b}
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied and rounded to dtype.
func FromSlice[B Backend](data []float32, shape Shape, dtype DataType, b B) (*Tensor[B], error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	raw, err := NewRaw(shape, dtype, b.Device())
	if err != nil {
		return nil, err
	}
	copy(raw.Data(), data)
	raw.Quantize()

	return New(raw, b), nil
}

// Shape returns the tensor's shape.
func (t *Tensor[B]) Shape() Shape {
	return t.raw.Shape()
}

// DType returns the tensor's data type.
func (t *Tensor[B]) DType() DataType {
	return t.raw.DType()
}

// Device returns the tensor's compute device.
func (t *Tensor[B]) Device() Device {
	return t.raw.Device()
}

// NumElements returns the total number of elements.
func (t *Tensor[B]) NumElements() int {
	return t.raw.NumElements()
}

// Raw returns the underlying RawTensor.
func (t *Tensor[B]) Raw() *RawTensor {
	return t.raw
}

// Backend returns the computation backend.
func (t *Tensor[B]) Backend() B {
	return t.backend
}

// Data returns a view of the tensor's data.
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (t *Tensor[B]) Data() []float32 {
	return t.raw.Data()
}

// Item returns the value of a single-element tensor.
func (t *Tensor[B]) Item() float32 {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("Item() only works for single-element tensors, got shape %v", t.Shape()))
	}
	return t.Data()[0]
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor[B]) At(indices ...int) float32 {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}

	offset := 0
	strides := t.raw.Strides()
	for i, idx := range indices {
		if idx < 0 || idx >= shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, shape[i]))
		}
		offset += idx * strides[i]
	}

	return t.Data()[offset]
}

// String returns a human-readable representation of the tensor.
func (t *Tensor[B]) String() string {
	return fmt.Sprintf("Tensor[%s]%v on %s", t.raw.DType(), t.raw.Shape(), t.raw.Device())
}

// Clone creates a deep copy that is not connected to any recorded computation.
func (t *Tensor[B]) Clone() *Tensor[B] {
	return New(t.raw.Clone(), t.backend)
}

// Add returns t + other.
func (t *Tensor[B]) Add(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Add(t.raw, other.raw), t.backend)
}

// Sub returns t - other.
func (t *Tensor[B]) Sub(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Sub(t.raw, other.raw), t.backend)
}

// Mul returns the element-wise product t * other.
func (t *Tensor[B]) Mul(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Mul(t.raw, other.raw), t.backend)
}

// MulScalar returns t * s.
func (t *Tensor[B]) MulScalar(s float32) *Tensor[B] {
	return New(t.backend.MulScalar(t.raw, s), t.backend)
}

// Sum reduces the tensor to a single-element tensor of shape [1].
func (t *Tensor[B]) Sum() *Tensor[B] {
	return New(t.backend.Sum(t.raw), t.backend)
}

// MatMul returns the matrix product t @ other for 2-D tensors.
func (t *Tensor[B]) MatMul(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.MatMul(t.raw, other.raw), t.backend)
}

// AddBias adds a [C] bias to the last axis.
func (t *Tensor[B]) AddBias(bias *Tensor[B]) *Tensor[B] {
	return New(t.backend.AddBias(t.raw, bias.raw), t.backend)
}

// ReLU applies max(0, x) element-wise.
func (t *Tensor[B]) ReLU() *Tensor[B] {
	return New(t.backend.ReLU(t.raw), t.backend)
}

// Transpose transposes a 2-D tensor.
func (t *Tensor[B]) Transpose() *Tensor[B] {
	return New(t.backend.Transpose(t.raw), t.backend)
}

// Conv2D convolves NHWC t with kernel [KH, KW, Cin/groups, Cout] (stride 1, SAME).
func (t *Tensor[B]) Conv2D(kernel *Tensor[B], groups int) *Tensor[B] {
	return New(t.backend.Conv2D(t.raw, kernel.raw, groups), t.backend)
}

// MaxPool2D applies SAME-padded max pooling over rows and cols.
func (t *Tensor[B]) MaxPool2D(kernelSize, stride int) *Tensor[B] {
	return New(t.backend.MaxPool2D(t.raw, kernelSize, stride), t.backend)
}

// Moments returns the per-channel population mean and variance.
// The results are constants and never carry gradients.
func (t *Tensor[B]) Moments() (mean, variance *RawTensor) {
	return t.backend.Moments(t.raw)
}

// BatchNorm normalizes each channel with the batch statistics of t.
func (t *Tensor[B]) BatchNorm(gamma, beta *Tensor[B], eps float32) *Tensor[B] {
	return New(t.backend.BatchNorm(t.raw, gamma.raw, beta.raw, eps), t.backend)
}

// Normalize normalizes each channel with fixed statistics.
func (t *Tensor[B]) Normalize(mean, variance *RawTensor, gamma, beta *Tensor[B], eps float32) *Tensor[B] {
	return New(t.backend.Normalize(t.raw, mean, variance, gamma.raw, beta.raw, eps), t.backend)
}

// Reshape returns a tensor with the same data and a new shape.
// A single -1 dimension is inferred from the element count.
func (t *Tensor[B]) Reshape(newShape ...int) *Tensor[B] {
	shape := inferShape(Shape(newShape), t.NumElements())
	return New(t.backend.Reshape(t.raw, shape), t.backend)
}

// Chunk splits the tensor into n equal parts along dim.
func (t *Tensor[B]) Chunk(n, dim int) []*Tensor[B] {
	parts := t.backend.Chunk(t.raw, n, dim)
	out := make([]*Tensor[B], len(parts))
	for i, p := range parts {
		out[i] = New(p, t.backend)
	}
	return out
}

// Cat concatenates tensors along dim. All tensors must share a backend.
func Cat[B Backend](tensors []*Tensor[B], dim int) *Tensor[B] {
	if len(tensors) == 0 {
		panic("cat: no tensors")
	}
	raws := make([]*RawTensor, len(tensors))
	for i, t := range tensors {
		raws[i] = t.raw
	}
	b := tensors[0].backend
	return New(b.Cat(raws, dim), b)
}

// inferShape resolves a single -1 entry in shape.
func inferShape(shape Shape, numElements int) Shape {
	shape = shape.Clone()
	unknown := -1
	known := 1
	for i, d := range shape {
		if d == -1 {
			if unknown >= 0 {
				panic(fmt.Sprintf("reshape: more than one inferred dimension in %v", shape))
			}
			unknown = i
			continue
		}
		known *= d
	}
	if unknown >= 0 {
		if known == 0 || numElements%known != 0 {
			panic(fmt.Sprintf("reshape: cannot infer dimension of %v for %d elements", shape, numElements))
		}
		shape[unknown] = numElements / known
	}
	return shape
}
