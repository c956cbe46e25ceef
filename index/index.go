// Package index provides shared types and error definitions for vector indexes.
package index

import (
	"errors"
	"fmt"

	"github.com/osintlab/embedvault/distance"
)

// ErrInvalidK is returned when k is not positive.
var ErrInvalidK = errors.New("k must be positive")

// ErrInvalidID is returned when an external id is empty.
var ErrInvalidID = errors.New("external id must not be empty")

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// ErrDuplicateID indicates that an external id already maps to a live slot.
type ErrDuplicateID struct {
	ID string
}

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("duplicate external id: %q", e.ID)
}

// ErrNotFound indicates that an external id does not map to a live slot.
type ErrNotFound struct {
	ID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("external id not found: %q", e.ID)
}

// ErrCorruptIndex indicates that persisted index state cannot be trusted.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrCorruptIndex struct {
	Path   string
	Reason string
	Cause  error
}

func (e *ErrCorruptIndex) Error() string {
	return fmt.Sprintf("corrupt index at %s: %s", e.Path, e.Reason)
}

func (e *ErrCorruptIndex) Unwrap() error { return e.Cause }

// SearchResult represents a single nearest-neighbor search result.
type SearchResult struct {
	// ExternalID is the caller-visible identifier of the matched vector.
	ExternalID string

	// Distance is the distance between the query vector and the result vector.
	// Lower means more similar.
	Distance float32
}

// ValidateBasicOptions validates dimension and metric shared by index constructors.
func ValidateBasicOptions(dim int, m distance.Metric) error {
	if dim <= 0 {
		return &ErrInvalidDimension{Dimension: dim}
	}
	if !m.Valid() {
		return fmt.Errorf("unsupported metric: %v", m)
	}
	return nil
}
