package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/osintlab/embedvault/blobstore"
	"github.com/osintlab/embedvault/index"
	"github.com/osintlab/embedvault/index/flat"
	"github.com/osintlab/embedvault/metadata"
	"github.com/osintlab/embedvault/metastore"
)

// SearchResult is one hydrated nearest-neighbor hit: the vector match plus
// its metadata record. Missing is set when the record could not be found in
// the metadata store, which indicates an index/store inconsistency.
type SearchResult struct {
	ExternalID string
	Distance   float32
	Record     metadata.Record
	Missing    bool
}

// Modality is the handle to one index/store pair. All operations take the
// modality's lock: reads share it, writes hold it exclusively.
type Modality struct {
	desc   Descriptor
	logger *slog.Logger
	mirror blobstore.BlobStore

	mu   sync.RWMutex
	idx  *flat.Flat
	meta *metastore.Store
}

// Descriptor returns the modality's static configuration.
func (m *Modality) Descriptor() Descriptor {
	return m.desc
}

// Search returns the k nearest neighbors of query, each hydrated with its
// metadata record, ordered by ascending distance.
func (m *Modality) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits, err := m.idx.Search(query, k)
	if err != nil {
		return nil, err
	}
	return m.hydrate(ctx, hits)
}

// SearchByID returns the k nearest neighbors of the stored vector with the
// given external id, excluding the vector itself from the results.
func (m *Modality) SearchByID(ctx context.Context, externalID string, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	query, err := m.idx.VectorByID(externalID)
	if err != nil {
		return nil, err
	}

	// Over-fetch by one so the query vector's own slot can be dropped.
	hits, err := m.idx.Search(query, k+1)
	if err != nil {
		return nil, err
	}

	filtered := hits[:0]
	for _, h := range hits {
		if h.ExternalID == externalID {
			continue
		}
		filtered = append(filtered, h)
	}
	if len(filtered) > k {
		filtered = filtered[:k]
	}
	return m.hydrate(ctx, filtered)
}

// hydrate joins index hits with their metadata records. Caller holds at
// least a read lock.
func (m *Modality) hydrate(ctx context.Context, hits []index.SearchResult) ([]SearchResult, error) {
	if len(hits) == 0 {
		return []SearchResult{}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ExternalID
	}

	records, err := m.meta.GetBatch(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		rec, ok := records[h.ExternalID]
		results[i] = SearchResult{
			ExternalID: h.ExternalID,
			Distance:   h.Distance,
			Record:     rec,
			Missing:    !ok,
		}
		if !ok {
			m.logger.Warn("metadata record missing for indexed vector", "id", h.ExternalID)
		}
	}
	return results, nil
}

// Get returns the metadata record for the given external id.
func (m *Modality) Get(ctx context.Context, externalID string) (metadata.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.meta.Get(ctx, externalID)
}

// Vector returns a copy of the stored vector for the given external id.
func (m *Modality) Vector(externalID string) ([]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.idx.VectorByID(externalID)
}

// Contains reports whether the given external id is live in the index.
func (m *Modality) Contains(externalID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.idx.Contains(externalID)
}

// Ingest commits one vector and its metadata record under a single held
// write lock, applying duplicate suppression first:
//
//  1. If contentHash is non-empty and already known, the existing id is
//     returned without touching the index.
//  2. Otherwise, if the nearest existing vector lies within threshold, that
//     vector's id is returned.
//  3. Otherwise the vector is added and the record stored. A metadata
//     write failure rolls the vector insertion back, so the pair never
//     diverges.
//
// The returned deduped flag is true when an existing id was reused.
func (m *Modality) Ingest(ctx context.Context, vec []float32, rec metadata.Record, externalID, contentHash string, threshold float64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if contentHash != "" {
		existing, err := m.meta.LookupHash(ctx, contentHash)
		if err != nil && !errors.Is(err, metastore.ErrNotFound) {
			return "", false, err
		}
		if err == nil {
			m.logger.Debug("ingest deduplicated by content hash", "id", existing, "hash", contentHash)
			return existing, true, nil
		}
	}

	if threshold >= 0 && m.idx.Len() > 0 {
		hits, err := m.idx.Search(vec, 1)
		if err != nil {
			return "", false, err
		}
		if len(hits) > 0 && float64(hits[0].Distance) <= threshold {
			m.logger.Debug("ingest deduplicated by embedding distance",
				"id", hits[0].ExternalID,
				"distance", hits[0].Distance,
			)
			return hits[0].ExternalID, true, nil
		}
	}

	slot, err := m.idx.Add(vec, externalID)
	if err != nil {
		return "", false, err
	}

	if err := m.meta.Put(ctx, externalID, rec, contentHash); err != nil {
		if rbErr := m.idx.Remove(externalID); rbErr != nil {
			m.logger.Error("rollback of vector insertion failed", "id", externalID, "error", rbErr)
		}
		return "", false, fmt.Errorf("store metadata for %q: %w", externalID, err)
	}

	m.logger.Debug("ingested", "id", externalID, "slot", slot)
	return externalID, false, nil
}

// Remove deletes the vector and its metadata record for the given external
// id. The id's slot is tombstoned, never reused.
func (m *Modality) Remove(ctx context.Context, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.idx.Remove(externalID); err != nil {
		return err
	}
	if err := m.meta.Delete(ctx, externalID); err != nil {
		return fmt.Errorf("delete metadata for %q: %w", externalID, err)
	}
	return nil
}

// Flush persists the index snapshot if it has unflushed changes, then
// copies the snapshot to the mirror store when one is configured. Mirror
// failures are logged, not returned: the primary snapshot is already
// durable at that point.
func (m *Modality) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasDirty := m.idx.Dirty()
	if err := m.idx.Flush(); err != nil {
		return fmt.Errorf("flush %q: %w", m.desc.Name, err)
	}

	if wasDirty && m.mirror != nil {
		if err := m.mirrorSnapshot(ctx); err != nil {
			m.logger.Warn("mirror snapshot failed", "error", err)
		}
	}
	return nil
}

func (m *Modality) mirrorSnapshot(ctx context.Context) error {
	data, err := os.ReadFile(m.desc.SnapshotPath())
	if err != nil {
		return err
	}
	key := m.desc.Name + "/" + m.desc.Name + ".vec"
	if err := m.mirror.Put(ctx, key, data); err != nil {
		return err
	}
	m.logger.Debug("snapshot mirrored", "key", key, "bytes", len(data))
	return nil
}

// Wipe discards all vectors and metadata of the modality, in memory and on
// disk. The modality stays usable and empty afterwards.
func (m *Modality) Wipe(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.wipeLocked(ctx)
}

// wipeLocked is Wipe without the lock. Caller holds the write lock.
func (m *Modality) wipeLocked(ctx context.Context) error {
	if err := m.idx.Wipe(); err != nil {
		return fmt.Errorf("wipe index %q: %w", m.desc.Name, err)
	}
	if err := m.meta.Wipe(ctx); err != nil {
		return fmt.Errorf("wipe metadata %q: %w", m.desc.Name, err)
	}
	if m.mirror != nil {
		key := m.desc.Name + "/" + m.desc.Name + ".vec"
		if err := m.mirror.Delete(ctx, key); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			m.logger.Warn("mirror delete failed", "key", key, "error", err)
		}
	}
	m.logger.Info("modality wiped")
	return nil
}

// Counts returns the live vector count and the metadata record count.
func (m *Modality) Counts(ctx context.Context) (vectors int, records int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records, err = m.meta.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	return m.idx.Len(), records, nil
}

// Stats returns the index-level statistics of the modality.
func (m *Modality) Stats() flat.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.idx.Stats()
}
