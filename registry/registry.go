// Package registry owns the set of named vector index + metadata store pairs.
//
// All access to a modality's pair goes through the registry. The registry
// holds one read/write lock per modality: searches proceed in parallel,
// writes are exclusive, and different modalities never contend.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/osintlab/embedvault/blobstore"
	"github.com/osintlab/embedvault/distance"
	"github.com/osintlab/embedvault/index/flat"
	"github.com/osintlab/embedvault/metastore"
)

// ErrUnknownModality indicates a modality name missing from the static
// configuration.
type ErrUnknownModality struct {
	Name string
}

func (e *ErrUnknownModality) Error() string {
	return fmt.Sprintf("unknown modality: %q", e.Name)
}

// Descriptor describes one modality: name, dimensionality, metric, and the
// directory its artifacts live in. Created once at registry initialization
// and immutable afterward.
type Descriptor struct {
	Name      string
	Dimension int
	Metric    distance.Metric
	Dir       string
}

// SnapshotPath returns the vector snapshot file for this modality.
func (d Descriptor) SnapshotPath() string {
	return filepath.Join(d.Dir, d.Name+".vec")
}

// MetaPath returns the metadata database file for this modality.
func (d Descriptor) MetaPath() string {
	return filepath.Join(d.Dir, d.Name+".db")
}

// Options contains configuration options for the registry.
type Options struct {
	// Logger receives structured operational logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Mirror, when set, receives a copy of every flushed snapshot.
	Mirror blobstore.BlobStore
}

// Registry resolves modality names to their index/store pairs, creating or
// loading them lazily from persisted storage.
type Registry struct {
	descriptors map[string]Descriptor
	names       []string
	logger      *slog.Logger
	mirror      blobstore.BlobStore

	openMu sync.Mutex
	open   map[string]*Modality
}

// New creates a registry for the given static descriptor set.
func New(descriptors []Descriptor, optFns ...func(o *Options)) (*Registry, error) {
	opts := Options{Logger: slog.Default()}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	descs := make(map[string]Descriptor, len(descriptors))
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Name == "" {
			return nil, fmt.Errorf("registry: descriptor with empty name")
		}
		if _, dup := descs[d.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate modality %q", d.Name)
		}
		if d.Dimension <= 0 {
			return nil, fmt.Errorf("registry: modality %q: invalid dimension %d", d.Name, d.Dimension)
		}
		if !d.Metric.Valid() {
			return nil, fmt.Errorf("registry: modality %q: unsupported metric %v", d.Name, d.Metric)
		}
		descs[d.Name] = d
		names = append(names, d.Name)
	}

	return &Registry{
		descriptors: descs,
		names:       names,
		logger:      opts.Logger,
		mirror:      opts.Mirror,
		open:        make(map[string]*Modality),
	}, nil
}

// Names returns the configured modality names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Resolve returns the modality handle for the given name, loading persisted
// state on first access or creating an empty pair per the descriptor.
//
// Corrupt persisted state fails only the affected modality; other
// modalities remain usable.
func (r *Registry) Resolve(name string) (*Modality, error) {
	desc, ok := r.descriptors[name]
	if !ok {
		return nil, &ErrUnknownModality{Name: name}
	}

	r.openMu.Lock()
	defer r.openMu.Unlock()

	if m, ok := r.open[name]; ok {
		return m, nil
	}

	m, err := r.openModality(desc)
	if err != nil {
		return nil, err
	}
	r.open[name] = m
	return m, nil
}

func (r *Registry) openModality(desc Descriptor) (*Modality, error) {
	if err := os.MkdirAll(desc.Dir, 0750); err != nil {
		return nil, fmt.Errorf("modality %q: %w", desc.Name, err)
	}

	indexOpts := func(o *flat.Options) {
		o.Dimension = desc.Dimension
		o.Metric = desc.Metric
		o.Path = desc.SnapshotPath()
	}

	var (
		idx *flat.Flat
		err error
	)
	if _, statErr := os.Stat(desc.SnapshotPath()); statErr == nil {
		idx, err = flat.Load(indexOpts)
		if err != nil {
			return nil, fmt.Errorf("modality %q: %w", desc.Name, err)
		}
		r.logger.Info("index loaded",
			"modality", desc.Name,
			"path", desc.SnapshotPath(),
			"vectors", idx.Len(),
		)
	} else {
		idx, err = flat.New(indexOpts)
		if err != nil {
			return nil, fmt.Errorf("modality %q: %w", desc.Name, err)
		}
		r.logger.Info("index created",
			"modality", desc.Name,
			"dimension", desc.Dimension,
			"metric", desc.Metric.String(),
		)
	}

	meta, err := metastore.Open(desc.MetaPath())
	if err != nil {
		return nil, fmt.Errorf("modality %q: %w", desc.Name, err)
	}

	return &Modality{
		desc:   desc,
		idx:    idx,
		meta:   meta,
		logger: r.logger.With("modality", desc.Name),
		mirror: r.mirror,
	}, nil
}

// FlushAll flushes every open modality.
func (r *Registry) FlushAll(ctx context.Context) error {
	r.openMu.Lock()
	open := make([]*Modality, 0, len(r.open))
	for _, m := range r.open {
		open = append(open, m)
	}
	r.openMu.Unlock()

	var firstErr error
	for _, m := range open {
		if err := m.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WipeAll wipes every configured modality. All modality write locks are
// acquired in declaration order before any data is discarded, so a
// concurrent reader sees either the old state or the fully empty state,
// never a mix.
func (r *Registry) WipeAll(ctx context.Context) error {
	modalities := make([]*Modality, 0, len(r.names))
	for _, name := range r.names {
		m, err := r.Resolve(name)
		if err != nil {
			return err
		}
		modalities = append(modalities, m)
	}

	for _, m := range modalities {
		m.mu.Lock()
	}
	defer func() {
		for _, m := range modalities {
			m.mu.Unlock()
		}
	}()

	var firstErr error
	for _, m := range modalities {
		if err := m.wipeLocked(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close flushes and closes every open modality. The registry is unusable
// afterwards.
func (r *Registry) Close(ctx context.Context) error {
	firstErr := r.FlushAll(ctx)

	r.openMu.Lock()
	defer r.openMu.Unlock()
	for name, m := range r.open {
		if err := m.meta.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.open, name)
	}
	return firstErr
}
