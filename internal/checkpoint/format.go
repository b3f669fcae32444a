package checkpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/born-ml/factory/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "BORN"
	FormatVersion   = 2
	FixedHeaderSize = 64 // 0x40
	HeaderAlignment = 64
	ChecksumOffset  = 0x20
	ChecksumSize    = 32
)

// Validation limits.
const (
	MaxHeaderSize    = 16 * 1024 * 1024
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// Flags for the .born format.
const (
	FlagHasMetadata   uint32 = 1 << 2
	FlagHasCheckpoint uint32 = 1 << 3
)

// Common errors.
var (
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrMissingTensor      = errors.New("tensor missing from checkpoint")
	ErrUnexpectedTensor   = errors.New("checkpoint tensor not present in model")
	ErrShapeMismatch      = errors.New("tensor shape mismatch")
)

// Header is the JSON header of a .born file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	ModelType     string            `json:"model_type"`
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Checkpoint    *Meta             `json:"checkpoint,omitempty"`
}

// Meta contains training state stored alongside the weights.
type Meta struct {
	Step      int     `json:"step"`
	Loss      float32 `json:"loss"`
	RunID     string  `json:"run_id,omitempty"`
	Optimizer string  `json:"optimizer,omitempty"`
}

// TensorMeta describes one tensor of the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`
}

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Type    string
	Tensor  string
	Tensor2 string
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor2 != "" {
		return fmt.Sprintf("%s: tensors %q and %q: %s", e.Type, e.Tensor, e.Tensor2, e.Details)
	}
	if e.Tensor != "" {
		return fmt.Sprintf("%s: tensor %q: %s", e.Type, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

func parseDType(s string) (tensor.DataType, bool) {
	switch s {
	case tensor.Float32.String():
		return tensor.Float32, true
	case tensor.Float16.String():
		return tensor.Float16, true
	default:
		return 0, false
	}
}

// dataOffset is the aligned start of the data section.
func dataOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}
