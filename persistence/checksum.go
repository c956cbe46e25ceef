package persistence

import "hash/crc32"

// Snapshot integrity uses CRC32 (IEEE polynomial): fast, hardware-accelerated
// on modern CPUs, and good at detecting accidental storage corruption.
// It is NOT cryptographically secure and must not be used for tamper detection.

// Checksum computes the CRC32 checksum of data.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
