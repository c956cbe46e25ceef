// Package admin exposes operational actions over the registry: statistics,
// flushing, and destructive wipes.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/osintlab/embedvault/registry"
)

// WipeAll is the target name that wipes every configured modality.
const WipeAll = "all"

// ModalityStats reports the state of one modality's index/store pair.
type ModalityStats struct {
	Modality   string `json:"modality"`
	Vectors    int    `json:"vectors"`
	Records    int    `json:"records"`
	Tombstones int    `json:"tombstones"`

	// Consistent is false when the live vector count and the metadata
	// record count diverge.
	Consistent bool `json:"consistent"`
}

// Options contains configuration options for the service.
type Options struct {
	// Logger receives structured operational logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Service performs administrative operations against a registry.
type Service struct {
	reg    *registry.Registry
	logger *slog.Logger
}

// New creates an administration service over the given registry.
func New(reg *registry.Registry, optFns ...func(o *Options)) *Service {
	opts := Options{Logger: slog.Default()}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{reg: reg, logger: opts.Logger}
}

// Stats collects statistics for every configured modality concurrently,
// resolving modalities that have not been touched yet. Results are ordered
// by modality name.
func (s *Service) Stats(ctx context.Context) ([]ModalityStats, error) {
	names := s.reg.Names()
	stats := make([]ModalityStats, len(names))

	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			m, err := s.reg.Resolve(name)
			if err != nil {
				return err
			}
			vectors, records, err := m.Counts(ctx)
			if err != nil {
				return fmt.Errorf("stats for %q: %w", name, err)
			}
			stats[i] = ModalityStats{
				Modality:   name,
				Vectors:    vectors,
				Records:    records,
				Tombstones: m.Stats().Tombstones,
				Consistent: vectors == records,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Modality < stats[j].Modality })
	return stats, nil
}

// Flush persists every open modality.
func (s *Service) Flush(ctx context.Context) error {
	return s.reg.FlushAll(ctx)
}

// Wipe irreversibly discards the named modality's vectors and metadata.
// The target WipeAll wipes every configured modality under all modality
// locks at once, so readers see either the old state or the fully empty
// state. Each wiped modality remains resolvable and empty.
func (s *Service) Wipe(ctx context.Context, target string) error {
	if target == WipeAll {
		if err := s.reg.WipeAll(ctx); err != nil {
			return err
		}
		s.logger.Info("all modalities wiped")
		return nil
	}

	m, err := s.reg.Resolve(target)
	if err != nil {
		return err
	}
	if err := m.Wipe(ctx); err != nil {
		return err
	}
	s.logger.Info("modality wiped", "modality", target)
	return nil
}
