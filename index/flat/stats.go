package flat

// Stats describes the current state of a flat index.
type Stats struct {
	Dimension  int
	Metric     string
	Live       int
	Slots      int
	Tombstones int
	Dirty      bool
}

// Stats returns a point-in-time snapshot of index statistics.
func (f *Flat) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return Stats{
		Dimension:  f.opts.Dimension,
		Metric:     f.opts.Metric.String(),
		Live:       len(f.byID),
		Slots:      len(f.vectors),
		Tombstones: int(f.tombstones.GetCardinality()),
		Dirty:      f.dirty,
	}
}
