package tensor

import (
	"fmt"
	"math/rand/v2"
)

// Zeros creates a tensor filled with zeros.
func Zeros[B Backend](shape Shape, dtype DataType, b B) *Tensor[B] {
	raw, err := NewRaw(shape, dtype, b.Device())
	if err != nil {
		panic(fmt.Sprintf("zeros: %v", err))
	}
	return New(raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[B Backend](shape Shape, dtype DataType, b B) *Tensor[B] {
	return Full(shape, 1, dtype, b)
}

// Full creates a tensor filled with value.
func Full[B Backend](shape Shape, value float32, dtype DataType, b B) *Tensor[B] {
	t := Zeros(shape, dtype, b)
	t.raw.Fill(value)
	return t
}

// Uniform creates a tensor with values drawn from U(lo, hi) using rng.
//
// Passing the same seeded rng yields the same tensor, which keeps model
// construction deterministic.
func Uniform[B Backend](shape Shape, lo, hi float32, rng *rand.Rand, dtype DataType, b B) *Tensor[B] {
	t := Zeros(shape, dtype, b)
	data := t.Data()
	span := hi - lo
	for i := range data {
		data[i] = lo + rng.Float32()*span
	}
	t.raw.Quantize()
	return t
}

// Randn creates a tensor with values drawn from N(0, 1) using rng.
func Randn[B Backend](shape Shape, rng *rand.Rand, dtype DataType, b B) *Tensor[B] {
	t := Zeros(shape, dtype, b)
	data := t.Data()
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	t.raw.Quantize()
	return t
}
