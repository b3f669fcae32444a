package checkpoint

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"slices"
	"time"

	"github.com/born-ml/factory/internal/tensor"
	"github.com/x448/float16"
)

// Write encodes state to w. The header's tensor table, version and creation
// time are filled in; ModelType, Metadata and Checkpoint are kept.
func Write(w io.Writer, state map[string]*tensor.RawTensor, header Header) error {
	names := slices.Sorted(maps.Keys(state))

	header.FormatVersion = FormatVersion
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	header.Tensors = make([]TensorMeta, 0, len(names))

	var data []byte
	for _, name := range names {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		raw := state[name]
		offset := int64(len(data))
		data = appendTensor(data, raw)
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  raw.DType().String(),
			Shape:  []int(raw.Shape().Clone()),
			Offset: offset,
			Size:   int64(len(data)) - offset,
		})
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	var flags uint32
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.Checkpoint != nil {
		flags |= FlagHasCheckpoint
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	checksum := sha256.Sum256(data)
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	padding := dataOffset(int64(len(headerJSON))) - FixedHeaderSize - int64(len(headerJSON))
	for _, chunk := range [][]byte{fixed, headerJSON, make([]byte, padding), data} {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("failed to write checkpoint: %w", err)
		}
	}
	return nil
}

// Save writes state to the file at path.
func Save(path string, state map[string]*tensor.RawTensor, header Header) (err error) {
	//nolint:gosec // G304: checkpoint paths come from the user
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := Write(bw, state, header); err != nil {
		return err
	}
	return bw.Flush()
}

func appendTensor(dst []byte, raw *tensor.RawTensor) []byte {
	switch raw.DType() {
	case tensor.Float16:
		for _, v := range raw.Data() {
			dst = binary.LittleEndian.AppendUint16(dst, float16.Fromfloat32(v).Bits())
		}
	default:
		for _, v := range raw.Data() {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
		}
	}
	return dst
}
