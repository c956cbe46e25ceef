// Package flat provides an exact (brute-force) vector index with stable
// slot-to-external-id mapping and snapshot persistence.
package flat

import (
	"container/heap"
	"fmt"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/osintlab/embedvault/distance"
	"github.com/osintlab/embedvault/index"
)

// Options contains configuration options for the flat index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	// It must be > 0 and is enforced for all adds and searches.
	Dimension int

	// Metric is the distance metric used for vector comparison.
	// For MetricCosine, vectors and queries are L2-normalized on entry.
	Metric distance.Metric

	// Path is the snapshot file this index flushes to and loads from.
	// Empty disables persistence (memory-only index).
	Path string
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{
	Dimension: 0,
	Metric:    distance.MetricL2,
}

// Flat is an exact nearest-neighbor index.
//
// Slots are assigned monotonically at insertion and never reused: removal
// tombstones the slot so the slot-to-external-id mapping stays stable for
// already-open result sets. Storage is only reclaimed by Wipe.
type Flat struct {
	mu           sync.RWMutex
	opts         Options
	distanceFunc distance.Func

	vectors    [][]float32 // slot -> vector (nil when tombstoned)
	ids        []string    // slot -> external id (kept for tombstones too)
	byID       map[string]uint32
	tombstones *roaring.Bitmap

	dirty bool // mutations since last flush
}

// New creates a new empty flat index.
// Dimension and Metric are required and must be set at creation time.
func New(optFns ...func(o *Options)) (*Flat, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := index.ValidateBasicOptions(opts.Dimension, opts.Metric); err != nil {
		return nil, err
	}

	distanceFunc, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	return &Flat{
		opts:         opts,
		distanceFunc: distanceFunc,
		byID:         make(map[string]uint32),
		tombstones:   roaring.New(),
	}, nil
}

// Dimension returns the fixed vector dimensionality of this index.
func (f *Flat) Dimension() int { return f.opts.Dimension }

// Metric returns the configured distance metric.
func (f *Flat) Metric() distance.Metric { return f.opts.Metric }

// Add appends a vector under the given external id and returns its slot.
func (f *Flat) Add(v []float32, externalID string) (uint32, error) {
	if externalID == "" {
		return 0, index.ErrInvalidID
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(v) != f.opts.Dimension {
		return 0, &index.ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(v)}
	}
	if _, ok := f.byID[externalID]; ok {
		return 0, &index.ErrDuplicateID{ID: externalID}
	}

	vec, err := f.prepare(v)
	if err != nil {
		return 0, err
	}

	slot := uint32(len(f.vectors))
	f.vectors = append(f.vectors, vec)
	f.ids = append(f.ids, externalID)
	f.byID[externalID] = slot
	f.dirty = true

	return slot, nil
}

// Search performs an exact K-nearest-neighbor search.
// Results are ordered ascending by distance; tombstoned slots are excluded
// and k is clamped to the number of live vectors.
func (f *Flat) Search(query []float32, k int) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(query) != f.opts.Dimension {
		return nil, &index.ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(query)}
	}

	live := len(f.byID)
	if live == 0 {
		return nil, nil
	}

	q, err := f.prepare(query)
	if err != nil {
		return nil, err
	}

	if k > live {
		k = live
	}

	top := make(maxHeap, 0, k)
	heap.Init(&top)

	for slot, vec := range f.vectors {
		if vec == nil {
			continue
		}
		d := f.distanceFunc(q, vec)

		if top.Len() < k {
			heap.Push(&top, candidate{slot: uint32(slot), distance: d})
			continue
		}
		if d < top[0].distance {
			heap.Pop(&top)
			heap.Push(&top, candidate{slot: uint32(slot), distance: d})
		}
	}

	results := make([]index.SearchResult, top.Len())
	for i := top.Len() - 1; i >= 0; i-- {
		c := heap.Pop(&top).(candidate)
		results[i] = index.SearchResult{ExternalID: f.ids[c.slot], Distance: c.distance}
	}
	return results, nil
}

// Remove tombstones the slot mapped to the given external id.
// The slot is excluded from future searches; underlying storage is only
// reclaimed by a full rebuild (Wipe).
func (f *Flat) Remove(externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	slot, ok := f.byID[externalID]
	if !ok {
		return &index.ErrNotFound{ID: externalID}
	}

	f.tombstones.Add(slot)
	f.vectors[slot] = nil
	delete(f.byID, externalID)
	f.dirty = true

	return nil
}

// VectorByID returns a copy of the vector stored for the given external id.
func (f *Flat) VectorByID(externalID string) ([]float32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	slot, ok := f.byID[externalID]
	if !ok {
		return nil, &index.ErrNotFound{ID: externalID}
	}
	return slices.Clone(f.vectors[slot]), nil
}

// Contains reports whether the external id maps to a live slot.
func (f *Flat) Contains(externalID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, ok := f.byID[externalID]
	return ok
}

// Len returns the number of live (searchable) vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.byID)
}

// SlotCount returns the total number of slots, including tombstones.
func (f *Flat) SlotCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.vectors)
}

// Dirty reports whether there are mutations not yet flushed.
func (f *Flat) Dirty() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.dirty
}

// prepare validates and, for cosine, normalizes a vector.
// Caller must hold at least a read lock (prepare itself reads only options).
func (f *Flat) prepare(v []float32) ([]float32, error) {
	if f.opts.Metric == distance.MetricCosine {
		norm, ok := distance.NormalizeL2Copy(v)
		if !ok {
			return nil, fmt.Errorf("flat: cannot normalize zero vector")
		}
		return norm, nil
	}
	return slices.Clone(v), nil
}

// candidate is one entry in the top-k heap.
type candidate struct {
	slot     uint32
	distance float32
}

// maxHeap keeps the current worst candidate on top so it can be evicted
// cheaply when a closer one arrives.
type maxHeap []candidate

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return h[i].distance > h[j].distance }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
