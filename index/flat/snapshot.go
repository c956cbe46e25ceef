package flat

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/osintlab/embedvault/distance"
	"github.com/osintlab/embedvault/index"
	"github.com/osintlab/embedvault/persistence"
)

// Flush writes the index to its snapshot file such that a subsequent Load
// reconstructs identical search behavior.
//
// Flush is idempotent: with no mutations since the last flush it is a no-op.
// The write goes through a temp file and an atomic rename, so a crash
// mid-flush never corrupts the previous snapshot.
func (f *Flat) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.dirty {
		return nil
	}
	if f.opts.Path == "" {
		return fmt.Errorf("flat: no snapshot path configured")
	}

	var body bytes.Buffer
	zw, err := zstd.NewWriter(&body)
	if err != nil {
		return err
	}
	if err := f.encodeBody(zw); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	header := persistence.FileHeader{
		Metric:    uint8(f.opts.Metric),
		Dimension: uint32(f.opts.Dimension),
		SlotCount: uint64(len(f.vectors)),
		LiveCount: uint64(len(f.byID)),
		Checksum:  persistence.Checksum(body.Bytes()),
	}

	err = persistence.SaveToFile(f.opts.Path, func(w io.Writer) error {
		bw := persistence.NewWriter(w)
		if err := bw.WriteHeader(&header); err != nil {
			return err
		}
		_, err := w.Write(body.Bytes())
		return err
	})
	if err != nil {
		return err
	}

	f.dirty = false
	return nil
}

// Wipe discards all vectors and mappings and removes the snapshot file.
// Subsequent adds behave as a fresh index, starting again at slot 0.
func (f *Flat) Wipe() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.vectors = nil
	f.ids = nil
	f.byID = make(map[string]uint32)
	f.tombstones = roaring.New()
	f.dirty = false

	if f.opts.Path != "" {
		if err := os.Remove(f.opts.Path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Load reconstructs a flat index from its snapshot file.
// The snapshot's dimensionality and metric must agree with the options.
func Load(optFns ...func(o *Options)) (*Flat, error) {
	f, err := New(optFns...)
	if err != nil {
		return nil, err
	}
	if f.opts.Path == "" {
		return nil, fmt.Errorf("flat: no snapshot path configured")
	}

	corrupt := func(reason string, cause error) error {
		return &index.ErrCorruptIndex{Path: f.opts.Path, Reason: reason, Cause: cause}
	}

	err = persistence.LoadFromFile(f.opts.Path, func(r io.Reader) error {
		br := persistence.NewReader(r)

		header, err := br.ReadHeader()
		if err != nil {
			return corrupt("invalid header", err)
		}
		if int(header.Dimension) != f.opts.Dimension {
			return corrupt(fmt.Sprintf("dimension mismatch: snapshot %d, descriptor %d", header.Dimension, f.opts.Dimension), nil)
		}
		if distance.Metric(header.Metric) != f.opts.Metric {
			return corrupt(fmt.Sprintf("metric mismatch: snapshot %s, descriptor %s", distance.Metric(header.Metric), f.opts.Metric), nil)
		}

		compressed, err := io.ReadAll(r)
		if err != nil {
			return corrupt("truncated body", err)
		}
		if persistence.Checksum(compressed) != header.Checksum {
			return corrupt("checksum mismatch", persistence.ErrInvalidChecksum)
		}

		zr, err := zstd.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return corrupt("invalid compression stream", err)
		}
		defer zr.Close()

		if err := f.decodeBody(persistence.NewReader(zr), header); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return f, nil
}

// encodeBody writes the tombstone bitmap followed by one entry per slot.
// Caller must hold the write lock.
func (f *Flat) encodeBody(w io.Writer) error {
	bw := persistence.NewWriter(w)

	tomb, err := f.tombstones.ToBytes()
	if err != nil {
		return err
	}
	if err := bw.WriteBytes(tomb); err != nil {
		return err
	}

	for slot, id := range f.ids {
		if err := bw.WriteString(id); err != nil {
			return err
		}
		if f.vectors[slot] == nil {
			continue
		}
		if err := bw.WriteFloat32Slice(f.vectors[slot]); err != nil {
			return err
		}
	}
	return nil
}

func (f *Flat) decodeBody(br *persistence.Reader, header *persistence.FileHeader) error {
	corrupt := func(reason string, cause error) error {
		return &index.ErrCorruptIndex{Path: f.opts.Path, Reason: reason, Cause: cause}
	}

	tomb, err := br.ReadBytes()
	if err != nil {
		return corrupt("truncated tombstone bitmap", err)
	}
	tombstones := roaring.New()
	if len(tomb) > 0 {
		if err := tombstones.UnmarshalBinary(tomb); err != nil {
			return corrupt("invalid tombstone bitmap", err)
		}
	}

	slotCount := int(header.SlotCount)
	vectors := make([][]float32, slotCount)
	ids := make([]string, slotCount)
	byID := make(map[string]uint32, header.LiveCount)

	for slot := 0; slot < slotCount; slot++ {
		id, err := br.ReadString()
		if err != nil {
			return corrupt(fmt.Sprintf("truncated entry at slot %d", slot), err)
		}
		ids[slot] = id

		if tombstones.Contains(uint32(slot)) {
			continue
		}

		vec, err := br.ReadFloat32Slice(f.opts.Dimension)
		if err != nil {
			return corrupt(fmt.Sprintf("truncated vector at slot %d", slot), err)
		}
		if id == "" {
			return corrupt(fmt.Sprintf("live slot %d has no external id", slot), nil)
		}
		if _, dup := byID[id]; dup {
			return corrupt(fmt.Sprintf("duplicate external id %q", id), nil)
		}
		vectors[slot] = vec
		byID[id] = uint32(slot)
	}

	if uint64(len(byID)) != header.LiveCount {
		return corrupt(fmt.Sprintf("mapping table and vector count disagree: %d mapped, %d expected", len(byID), header.LiveCount), nil)
	}

	f.vectors = vectors
	f.ids = ids
	f.byID = byID
	f.tombstones = tombstones
	f.dirty = false
	return nil
}
