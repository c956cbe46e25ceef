// Package persistence provides binary serialization for index snapshots.
package persistence

import (
	"encoding/binary"
	"fmt"
	"io"
	"unsafe"
)

// Writer writes snapshot sections in little-endian binary format.
type Writer struct {
	w io.Writer
}

// NewWriter creates a new binary snapshot writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader writes the file header, stamping magic and version.
func (bw *Writer) WriteHeader(header *FileHeader) error {
	header.Magic = MagicNumber
	header.Version = Version
	return binary.Write(bw.w, binary.LittleEndian, header)
}

// WriteUint32 writes a single uint32.
func (bw *Writer) WriteUint32(v uint32) error {
	return binary.Write(bw.w, binary.LittleEndian, v)
}

// WriteString writes a length-prefixed string.
func (bw *Writer) WriteString(s string) error {
	if err := bw.WriteUint32(uint32(len(s))); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}
	_, err := io.WriteString(bw.w, s)
	return err
}

// WriteBytes writes a length-prefixed byte slice.
func (bw *Writer) WriteBytes(b []byte) error {
	if err := bw.WriteUint32(uint32(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := bw.w.Write(b)
	return err
}

// WriteFloat32Slice writes a float32 slice as raw bytes (no length prefix).
// Safety: validates alignment before the unsafe conversion.
func (bw *Writer) WriteFloat32Slice(vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	if err := validateFloat32Alignment(vec); err != nil {
		return err
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), len(vec)*4)
	_, err := bw.w.Write(byteSlice)
	return err
}

// Reader reads snapshot sections from little-endian binary format.
type Reader struct {
	r io.Reader
}

// NewReader creates a new binary snapshot reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadHeader reads and validates the file header.
func (br *Reader) ReadHeader() (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(br.r, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, header.Version)
	}
	return &header, nil
}

// ReadUint32 reads a single uint32.
func (br *Reader) ReadUint32() (uint32, error) {
	var v uint32
	if err := binary.Read(br.r, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// ReadString reads a length-prefixed string.
func (br *Reader) ReadString() (string, error) {
	n, err := br.ReadUint32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br.r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadBytes reads a length-prefixed byte slice.
func (br *Reader) ReadBytes() ([]byte, error) {
	n, err := br.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadFloat32Slice reads count float32 values written by WriteFloat32Slice.
func (br *Reader) ReadFloat32Slice(count int) ([]float32, error) {
	if count == 0 {
		return nil, nil
	}
	vec := make([]float32, count)
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), count*4)
	if _, err := io.ReadFull(br.r, byteSlice); err != nil {
		return nil, err
	}
	return vec, nil
}

func validateFloat32Alignment(vec []float32) error {
	addr := uintptr(unsafe.Pointer(&vec[0]))
	if addr%unsafe.Alignof(float32(0)) != 0 {
		return fmt.Errorf("misaligned float32 slice at 0x%x", addr)
	}
	return nil
}
