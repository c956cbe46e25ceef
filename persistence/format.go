package persistence

import "errors"

const (
	// MagicNumber identifies embedvault snapshot files (ASCII: "EVS0").
	MagicNumber = 0x45565330
	// Version is the current snapshot format version (v1.0.0).
	Version = 0x00010000
)

var (
	ErrInvalidMagic    = errors.New("invalid magic number")
	ErrInvalidVersion  = errors.New("unsupported version")
	ErrInvalidChecksum = errors.New("checksum mismatch")
)

// FileHeader is the fixed-size header at the start of every snapshot file.
// The header is stored uncompressed; the body that follows is a
// zstd-compressed stream covered by Checksum (CRC32 of the compressed bytes).
type FileHeader struct {
	Magic     uint32 // 0x45565330 ("EVS0")
	Version   uint32 // Snapshot format version
	Metric    uint8  // distance.Metric identifier
	Padding1  [3]byte
	Dimension uint32 // Vector dimensionality
	SlotCount uint64 // Total slots, including tombstones
	LiveCount uint64 // Live (searchable) slots
	Checksum  uint32 // CRC32 of the compressed body
	Padding2  [4]byte
	Reserved  [16]byte // Future use
}
