// Package blobstore abstracts storage of snapshot artifacts.
//
// The registry mirrors flushed snapshots to a BlobStore so an off-box copy
// exists for disaster recovery. Implementations: LocalStore (filesystem),
// MemoryStore (testing), and S3-compatible object stores under
// blobstore/minio and blobstore/s3.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for storing and retrieving immutable artifacts.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored artifact.
type Blob interface {
	io.Closer

	// ReadAt reads len(p) bytes starting at offset off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// Size returns the size of the blob in bytes.
	Size() int64
}

// ReadAll reads the full contents of a blob.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	data := make([]byte, b.Size())
	if len(data) == 0 {
		return data, nil
	}
	n, err := b.ReadAt(ctx, data, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return data[:n], nil
}
