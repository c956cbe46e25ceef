// Package ingest coordinates writes into the registry: id assignment,
// duplicate suppression policy, and admission rate limiting.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/osintlab/embedvault/metadata"
	"github.com/osintlab/embedvault/registry"
)

// DefaultDedupThreshold is the distance below which a new vector is treated
// as a duplicate of an existing one.
const DefaultDedupThreshold = 1e-6

// Request describes one item to ingest.
type Request struct {
	// Modality selects the target index/store pair.
	Modality string

	// Vector is the embedding. Its length must match the modality's
	// configured dimension.
	Vector []float32

	// Record is the metadata to store alongside the vector. May be nil.
	Record metadata.Record

	// ExternalID is the caller-chosen id. When empty, a random id is
	// generated.
	ExternalID string

	// ContentHash, when non-empty, is checked against previously ingested
	// hashes before the vector is considered at all.
	ContentHash string
}

// Result reports the outcome of one ingested item.
type Result struct {
	// ExternalID is the id the item ended up under. For a deduplicated
	// item this is the pre-existing id, not the requested one.
	ExternalID string

	// Deduplicated is true when no new vector was stored.
	Deduplicated bool
}

// Options contains configuration options for the coordinator.
type Options struct {
	// DedupThreshold is the maximum distance at which an incoming vector
	// is folded into an existing one. Negative disables distance-based
	// deduplication. Defaults to DefaultDedupThreshold.
	DedupThreshold float64

	// RateLimit caps sustained ingestion throughput in items per second.
	// Zero or negative means unlimited.
	RateLimit float64

	// RateBurst is the admission burst size when RateLimit is set.
	// Defaults to 1.
	RateBurst int

	// Logger receives structured operational logs. Defaults to slog.Default().
	Logger *slog.Logger

	// NewID generates ids for requests without one. Defaults to random
	// UUIDs.
	NewID func() string
}

// Coordinator serializes ingestion policy in front of the registry.
// Safe for concurrent use.
type Coordinator struct {
	reg     *registry.Registry
	opts    Options
	limiter *rate.Limiter
}

// New creates an ingestion coordinator on top of the given registry.
func New(reg *registry.Registry, optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		DedupThreshold: DefaultDedupThreshold,
		RateBurst:      1,
		Logger:         slog.Default(),
		NewID:          uuid.NewString,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.RateBurst < 1 {
		opts.RateBurst = 1
	}

	c := &Coordinator{reg: reg, opts: opts}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)
	}
	return c
}

// Ingest admits one item: waits for rate-limit capacity, resolves the
// modality, and commits the vector/record pair with duplicate suppression.
func (c *Coordinator) Ingest(ctx context.Context, req Request) (Result, error) {
	if req.Modality == "" {
		return Result{}, fmt.Errorf("ingest: empty modality")
	}
	if len(req.Vector) == 0 {
		return Result{}, fmt.Errorf("ingest: empty vector")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Result{}, fmt.Errorf("ingest: %w", err)
		}
	}

	m, err := c.reg.Resolve(req.Modality)
	if err != nil {
		return Result{}, err
	}

	externalID := req.ExternalID
	if externalID == "" {
		externalID = c.opts.NewID()
	}

	id, deduped, err := m.Ingest(ctx, req.Vector, req.Record, externalID, req.ContentHash, c.opts.DedupThreshold)
	if err != nil {
		return Result{}, err
	}

	if deduped {
		c.opts.Logger.Debug("ingest collapsed into existing item",
			"modality", req.Modality,
			"id", id,
		)
	}
	return Result{ExternalID: id, Deduplicated: deduped}, nil
}

// BatchItem pairs one request's result with its error. Index positions
// match the input slice.
type BatchItem struct {
	Result Result
	Err    error
}

// IngestBatch ingests all requests in order, continuing past per-item
// failures. The returned error is non-nil only when the context is
// canceled mid-batch.
func (c *Coordinator) IngestBatch(ctx context.Context, reqs []Request) ([]BatchItem, error) {
	items := make([]BatchItem, len(reqs))
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return items[:i], err
		}
		res, err := c.Ingest(ctx, req)
		items[i] = BatchItem{Result: res, Err: err}
	}
	return items, nil
}
