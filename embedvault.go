package embedvault

import (
	"context"
	"fmt"

	"github.com/osintlab/embedvault/admin"
	"github.com/osintlab/embedvault/blobstore"
	"github.com/osintlab/embedvault/config"
	"github.com/osintlab/embedvault/distance"
	"github.com/osintlab/embedvault/ingest"
	"github.com/osintlab/embedvault/metadata"
	"github.com/osintlab/embedvault/registry"
)

// Options contains configuration options for the vault.
type Options struct {
	// Logger receives structured operational logs. Defaults to a text
	// logger at info level on stderr.
	Logger *Logger

	// Mirror overrides the config-file mirror with a programmatically
	// constructed store, e.g. blobstore/minio or blobstore/s3.
	Mirror blobstore.BlobStore
}

// WithLogger sets the vault logger.
func WithLogger(l *Logger) func(o *Options) {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMirror sets the snapshot mirror store, taking precedence over the
// mirror section of the configuration.
func WithMirror(s blobstore.BlobStore) func(o *Options) {
	return func(o *Options) {
		o.Mirror = s
	}
}

// Vault is the top-level handle: a registry of modality indexes plus the
// ingestion and administration services on top of it. Safe for concurrent
// use.
type Vault struct {
	cfg    *config.Config
	logger *Logger

	registry    *registry.Registry
	coordinator *ingest.Coordinator
	admin       *admin.Service
}

// Open creates a vault from the given configuration, loading any persisted
// state from cfg.DataDir. A nil cfg uses config.Default().
func Open(cfg *config.Config, optFns ...func(o *Options)) (*Vault, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = NewLogger(nil)
	}

	mirror := opts.Mirror
	if mirror == nil && cfg.Mirror.Enabled {
		var err error
		mirror, err = openConfiguredMirror(cfg.Mirror)
		if err != nil {
			return nil, err
		}
	}

	descriptors := make([]registry.Descriptor, len(cfg.Modalities))
	for i, m := range cfg.Modalities {
		metric, err := distance.ParseMetric(m.Metric)
		if err != nil {
			return nil, fmt.Errorf("modality %q: %w", m.Name, err)
		}
		descriptors[i] = registry.Descriptor{
			Name:      m.Name,
			Dimension: m.Dimension,
			Metric:    metric,
			Dir:       cfg.DataDir,
		}
	}

	reg, err := registry.New(descriptors, func(o *registry.Options) {
		o.Logger = opts.Logger.Logger
		o.Mirror = mirror
	})
	if err != nil {
		return nil, err
	}

	coordinator := ingest.New(reg, func(o *ingest.Options) {
		o.DedupThreshold = cfg.DedupThreshold
		o.RateLimit = cfg.IngestRateLimit
		o.RateBurst = cfg.IngestBurst
		o.Logger = opts.Logger.Logger
	})

	adminSvc := admin.New(reg, func(o *admin.Options) {
		o.Logger = opts.Logger.Logger
	})

	return &Vault{
		cfg:         cfg,
		logger:      opts.Logger,
		registry:    reg,
		coordinator: coordinator,
		admin:       adminSvc,
	}, nil
}

func openConfiguredMirror(m config.Mirror) (blobstore.BlobStore, error) {
	switch m.Backend {
	case "memory":
		return blobstore.NewMemoryStore(), nil
	case "local", "":
		return blobstore.NewLocalStore(m.Path)
	default:
		return nil, fmt.Errorf("unsupported mirror backend %q", m.Backend)
	}
}

// Modalities returns the configured modality names.
func (v *Vault) Modalities() []string {
	return v.registry.Names()
}

// Ingest stores one vector/record pair, applying id assignment, duplicate
// suppression, and rate limiting.
func (v *Vault) Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error) {
	res, err := v.coordinator.Ingest(ctx, req)
	v.logger.LogIngest(ctx, req.Modality, res.ExternalID, res.Deduplicated, err)
	return res, err
}

// IngestBatch stores all requests in order, continuing past per-item
// failures.
func (v *Vault) IngestBatch(ctx context.Context, reqs []ingest.Request) ([]ingest.BatchItem, error) {
	return v.coordinator.IngestBatch(ctx, reqs)
}

// Search returns the k nearest neighbors of query in the named modality,
// hydrated with their metadata records and ordered by ascending distance.
func (v *Vault) Search(ctx context.Context, modality string, query []float32, k int) ([]registry.SearchResult, error) {
	m, err := v.registry.Resolve(modality)
	if err != nil {
		return nil, err
	}
	results, err := m.Search(ctx, query, k)
	v.logger.LogSearch(ctx, modality, k, len(results), err)
	return results, err
}

// SearchByID returns the k nearest neighbors of the stored vector with the
// given external id, excluding the vector itself.
func (v *Vault) SearchByID(ctx context.Context, modality, externalID string, k int) ([]registry.SearchResult, error) {
	m, err := v.registry.Resolve(modality)
	if err != nil {
		return nil, err
	}
	results, err := m.SearchByID(ctx, externalID, k)
	v.logger.LogSearch(ctx, modality, k, len(results), err)
	return results, err
}

// Get returns the metadata record stored under the given external id.
func (v *Vault) Get(ctx context.Context, modality, externalID string) (metadata.Record, error) {
	m, err := v.registry.Resolve(modality)
	if err != nil {
		return nil, err
	}
	return m.Get(ctx, externalID)
}

// Vector returns a copy of the vector stored under the given external id.
func (v *Vault) Vector(modality, externalID string) ([]float32, error) {
	m, err := v.registry.Resolve(modality)
	if err != nil {
		return nil, err
	}
	return m.Vector(externalID)
}

// Remove deletes the vector and the metadata record for the given external
// id. The vector's slot is tombstoned and never reused.
func (v *Vault) Remove(ctx context.Context, modality, externalID string) error {
	m, err := v.registry.Resolve(modality)
	if err != nil {
		return err
	}
	return m.Remove(ctx, externalID)
}

// Stats reports per-modality counts and index/store consistency.
func (v *Vault) Stats(ctx context.Context) ([]admin.ModalityStats, error) {
	return v.admin.Stats(ctx)
}

// Flush persists every open modality's index snapshot.
func (v *Vault) Flush(ctx context.Context) error {
	err := v.admin.Flush(ctx)
	v.logger.LogFlush(ctx, err)
	return err
}

// Wipe irreversibly discards the named modality's data; the target
// admin.WipeAll wipes every modality. Wiped modalities remain usable and
// empty.
func (v *Vault) Wipe(ctx context.Context, target string) error {
	err := v.admin.Wipe(ctx, target)
	v.logger.LogWipe(ctx, target, err)
	return err
}

// Close flushes and releases all modalities. The vault is unusable
// afterwards.
func (v *Vault) Close(ctx context.Context) error {
	return v.registry.Close(ctx)
}
