package checkpoint

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/factory/internal/tensor"
	"github.com/x448/float16"
)

// File is a decoded .born file held in memory.
type File struct {
	header Header
	data   []byte
}

// Read decodes and validates a .born file, including its checksum.
func Read(r io.Reader) (*File, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if !bytes.Equal(fixed[0:4], []byte(MagicBytes)) {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, v, FormatVersion)
	}

	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header JSON: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	padding := dataOffset(int64(headerSize)) - FixedHeaderSize - int64(headerSize)
	if _, err := io.CopyN(io.Discard, r, padding); err != nil {
		return nil, fmt.Errorf("failed to skip padding: %w", err)
	}

	data, err := io.ReadAll(io.LimitReader(r, int64(dataSize)))
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if uint64(len(data)) != dataSize {
		return nil, fmt.Errorf("failed to read tensor data: %w", io.ErrUnexpectedEOF)
	}
	if sum := sha256.Sum256(data); !bytes.Equal(sum[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize]) {
		return nil, ErrChecksumMismatch
	}

	if err := ValidateHeader(&header, int64(len(data))); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &File{header: header, data: data}, nil
}

// Open reads the .born file at path.
func Open(path string) (*File, error) {
	//nolint:gosec // G304: checkpoint paths come from the user
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return Read(bufio.NewReader(f))
}

// Header returns the file header.
func (f *File) Header() Header {
	return f.header
}

// TensorNames returns the stored tensor names in file order.
func (f *File) TensorNames() []string {
	names := make([]string, len(f.header.Tensors))
	for i, t := range f.header.Tensors {
		names[i] = t.Name
	}
	return names
}

// Tensor decodes the named tensor to float32 values.
func (f *File) Tensor(name string) ([]float32, TensorMeta, error) {
	for _, t := range f.header.Tensors {
		if t.Name == name {
			return f.decode(t), t, nil
		}
	}
	return nil, TensorMeta{}, fmt.Errorf("%w: %q", ErrMissingTensor, name)
}

func (f *File) decode(t TensorMeta) []float32 {
	dtype, _ := parseDType(t.DType)
	buf := f.data[t.Offset : t.Offset+t.Size]
	out := make([]float32, t.Size/int64(dtype.Size()))
	for i := range out {
		if dtype == tensor.Float16 {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(buf[2*i:])).Float32()
		} else {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
		}
	}
	return out
}

// Restore copies the stored tensors into state in place. Every name of state
// must be stored with the same shape and every stored tensor must appear in
// state. Values are rounded to the precision of the destination tensor.
//
// Nothing is modified when an error is returned.
func (f *File) Restore(state map[string]*tensor.RawTensor) error {
	stored := make(map[string]TensorMeta, len(f.header.Tensors))
	for _, t := range f.header.Tensors {
		if _, ok := state[t.Name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnexpectedTensor, t.Name)
		}
		stored[t.Name] = t
	}
	for name, raw := range state {
		t, ok := stored[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingTensor, name)
		}
		if !raw.Shape().Equal(tensor.Shape(t.Shape)) {
			return fmt.Errorf("%w: %q is %v in the checkpoint, %v in the model", ErrShapeMismatch, name, t.Shape, raw.Shape())
		}
	}

	for name, raw := range state {
		copy(raw.Data(), f.decode(stored[name]))
		raw.Quantize()
	}
	return nil
}

// Load reads the file at path and restores it into state.
func Load(path string, state map[string]*tensor.RawTensor) (Header, error) {
	f, err := Open(path)
	if err != nil {
		return Header{}, err
	}
	if err := f.Restore(state); err != nil {
		return Header{}, err
	}
	return f.header, nil
}
