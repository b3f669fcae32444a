// Package tensor provides the core tensor types used by the model factory:
// shapes, runtime data types, reference tensors and the Backend contract.
package tensor

import "github.com/x448/float16"

// DataType represents runtime type information for tensors.
//
// Storage is always float32. Float16 tensors hold float32 values that have
// been rounded to IEEE 754 half precision after every kernel, which gives
// the numeric behaviour of a half-precision network on CPU.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float16
)

// Size returns the byte size of one element when the tensor is exported.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float16:
		return 2
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	default:
		return "unknown"
	}
}

// Scalar rounds v to the precision of dt.
func (dt DataType) Scalar(v float32) float32 {
	if dt == Float16 {
		return float16.Fromfloat32(v).Float32()
	}
	return v
}

// Round rounds every element of data to the precision of dt in place.
func (dt DataType) Round(data []float32) {
	if dt != Float16 {
		return
	}
	for i, v := range data {
		data[i] = float16.Fromfloat32(v).Float32()
	}
}

// Promote returns the wider of two data types.
// Mixing Float16 and Float32 operands yields Float32.
func Promote(a, b DataType) DataType {
	if a == Float32 || b == Float32 {
		return Float32
	}
	return a
}
