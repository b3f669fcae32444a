package checkpoint

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
)

// ValidateTensorOffsets checks tensor extents for overlap and out-of-bounds
// access within a data section of dataSize bytes.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := slices.Clone(tensors)
	slices.SortFunc(sorted, func(a, b TensorMeta) int {
		return cmp.Compare(a.Offset, b.Offset)
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
			}
		}
		if t.Offset > dataSize || t.Size > dataSize-t.Offset {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d, data section is %d bytes", t.Offset, t.Size, dataSize),
			}
		}
		if i > 0 {
			prev := sorted[i-1]
			if prev.Offset+prev.Size > t.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  prev.Name,
					Tensor2: t.Name,
					Details: fmt.Sprintf("[%d, %d) overlaps [%d, %d)", prev.Offset, prev.Offset+prev.Size, t.Offset, t.Offset+t.Size),
				}
			}
		}
	}
	return nil
}

// ValidateTensorName rejects empty, oversized or non-printable names.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name[:32] + "...",
			Details: fmt.Sprintf("length %d exceeds %d", len(name), MaxTensorNameLen),
		}
	}
	if strings.ContainsFunc(name, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains control characters"}
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "path-like name"}
	}
	return nil
}

// ValidateHeader checks names, data types, shapes and extents of every tensor.
func ValidateHeader(h *Header, dataSize int64) error {
	seen := make(map[string]bool, len(h.Tensors))
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if seen[t.Name] {
			return &ValidationError{Type: "duplicate_name", Tensor: t.Name, Details: "tensor listed twice"}
		}
		seen[t.Name] = true

		dtype, ok := parseDType(t.DType)
		if !ok {
			return &ValidationError{Type: "invalid_dtype", Tensor: t.Name, Details: t.DType}
		}
		elems := int64(1)
		for _, d := range t.Shape {
			if d <= 0 {
				return &ValidationError{Type: "invalid_shape", Tensor: t.Name, Details: fmt.Sprint(t.Shape)}
			}
			if int64(d) > math.MaxInt64/int64(dtype.Size())/elems {
				return &ValidationError{Type: "invalid_shape", Tensor: t.Name, Details: fmt.Sprintf("%v overflows int64 bytes", t.Shape)}
			}
			elems *= int64(d)
		}
		if want := elems * int64(dtype.Size()); t.Size != want {
			return &ValidationError{
				Type:    "size_mismatch",
				Tensor:  t.Name,
				Details: fmt.Sprintf("shape %v of %s needs %d bytes, header says %d", t.Shape, t.DType, want, t.Size),
			}
		}
	}
	return ValidateTensorOffsets(h.Tensors, dataSize)
}
