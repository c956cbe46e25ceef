package flat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osintlab/embedvault/distance"
	"github.com/osintlab/embedvault/index"
)

func newTestIndex(t *testing.T, optFns ...func(o *Options)) *Flat {
	t.Helper()

	f, err := New(append([]func(o *Options){func(o *Options) {
		o.Dimension = 4
	}}, optFns...)...)
	require.NoError(t, err)
	return f
}

func TestNew(t *testing.T) {
	t.Run("RequiresDimension", func(t *testing.T) {
		_, err := New()
		assert.Error(t, err)
		assert.IsType(t, &index.ErrInvalidDimension{}, err)
	})

	t.Run("RejectsUnknownMetric", func(t *testing.T) {
		_, err := New(func(o *Options) {
			o.Dimension = 4
			o.Metric = distance.Metric(99)
		})
		assert.Error(t, err)
	})
}

func TestAdd(t *testing.T) {
	t.Run("AssignsMonotonicSlots", func(t *testing.T) {
		f := newTestIndex(t)

		s0, err := f.Add([]float32{1, 0, 0, 0}, "a")
		require.NoError(t, err)
		s1, err := f.Add([]float32{0, 1, 0, 0}, "b")
		require.NoError(t, err)

		assert.Equal(t, uint32(0), s0)
		assert.Equal(t, uint32(1), s1)
		assert.Equal(t, 2, f.Len())
	})

	t.Run("DimensionMismatchLeavesCountUnchanged", func(t *testing.T) {
		f := newTestIndex(t)
		_, err := f.Add([]float32{1, 0, 0, 0}, "a")
		require.NoError(t, err)

		_, err = f.Add([]float32{1, 0}, "b")
		assert.IsType(t, &index.ErrDimensionMismatch{}, err)
		assert.Equal(t, 1, f.Len())
		assert.Equal(t, 1, f.SlotCount())
	})

	t.Run("EmptyID", func(t *testing.T) {
		f := newTestIndex(t)

		_, err := f.Add([]float32{1, 0, 0, 0}, "")
		assert.ErrorIs(t, err, index.ErrInvalidID)
		assert.Equal(t, 0, f.Len())
	})

	t.Run("DuplicateID", func(t *testing.T) {
		f := newTestIndex(t)
		_, err := f.Add([]float32{1, 0, 0, 0}, "a")
		require.NoError(t, err)

		_, err = f.Add([]float32{0, 1, 0, 0}, "a")
		assert.IsType(t, &index.ErrDuplicateID{}, err)
		assert.Equal(t, 1, f.Len())
	})

	t.Run("ZeroVectorRejectedForCosine", func(t *testing.T) {
		f := newTestIndex(t, func(o *Options) { o.Metric = distance.MetricCosine })
		_, err := f.Add([]float32{0, 0, 0, 0}, "a")
		assert.Error(t, err)
	})
}

func TestSearch(t *testing.T) {
	t.Run("ExactMatchIsTopResult", func(t *testing.T) {
		f := newTestIndex(t)
		_, err := f.Add([]float32{1, 0, 0, 0}, "a")
		require.NoError(t, err)
		_, err = f.Add([]float32{0, 1, 0, 0}, "b")
		require.NoError(t, err)

		results, err := f.Search([]float32{1, 0, 0, 0}, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "a", results[0].ExternalID)
		assert.InDelta(t, 0, results[0].Distance, 1e-9)
	})

	t.Run("AscendingByDistance", func(t *testing.T) {
		f := newTestIndex(t)
		_, _ = f.Add([]float32{1, 0, 0, 0}, "a")
		_, _ = f.Add([]float32{2, 0, 0, 0}, "b")
		_, _ = f.Add([]float32{3, 0, 0, 0}, "c")

		results, err := f.Search([]float32{0, 0, 0, 0}, 3)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "a", results[0].ExternalID)
		assert.Equal(t, "b", results[1].ExternalID)
		assert.Equal(t, "c", results[2].ExternalID)
	})

	t.Run("ClampsKToLiveCount", func(t *testing.T) {
		f := newTestIndex(t)
		_, _ = f.Add([]float32{1, 0, 0, 0}, "a")

		results, err := f.Search([]float32{1, 0, 0, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("InvalidK", func(t *testing.T) {
		f := newTestIndex(t)
		_, err := f.Search([]float32{1, 0, 0, 0}, 0)
		assert.ErrorIs(t, err, index.ErrInvalidK)
	})

	t.Run("QueryDimensionMismatch", func(t *testing.T) {
		f := newTestIndex(t)
		_, _ = f.Add([]float32{1, 0, 0, 0}, "a")

		_, err := f.Search([]float32{1, 0}, 1)
		assert.IsType(t, &index.ErrDimensionMismatch{}, err)
	})

	t.Run("EmptyIndex", func(t *testing.T) {
		f := newTestIndex(t)
		results, err := f.Search([]float32{1, 0, 0, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("Cosine", func(t *testing.T) {
		f := newTestIndex(t, func(o *Options) { o.Metric = distance.MetricCosine })
		_, _ = f.Add([]float32{5, 0, 0, 0}, "x")
		_, _ = f.Add([]float32{0, 3, 0, 0}, "y")

		results, err := f.Search([]float32{1, 0, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "x", results[0].ExternalID)
		assert.InDelta(t, 0, results[0].Distance, 1e-6)
		assert.InDelta(t, 1, results[1].Distance, 1e-6)
	})
}

func TestRemove(t *testing.T) {
	t.Run("TombstonesSlot", func(t *testing.T) {
		f := newTestIndex(t)
		_, _ = f.Add([]float32{1, 0, 0, 0}, "a")
		_, _ = f.Add([]float32{0, 1, 0, 0}, "b")

		require.NoError(t, f.Remove("a"))

		results, err := f.Search([]float32{1, 0, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "b", results[0].ExternalID)

		// Slot is not reused.
		slot, err := f.Add([]float32{0, 0, 1, 0}, "c")
		require.NoError(t, err)
		assert.Equal(t, uint32(2), slot)
	})

	t.Run("SecondRemoveFails", func(t *testing.T) {
		f := newTestIndex(t)
		_, _ = f.Add([]float32{1, 0, 0, 0}, "a")

		require.NoError(t, f.Remove("a"))
		err := f.Remove("a")
		assert.IsType(t, &index.ErrNotFound{}, err)
	})

	t.Run("UnknownID", func(t *testing.T) {
		f := newTestIndex(t)
		err := f.Remove("ghost")
		assert.IsType(t, &index.ErrNotFound{}, err)
	})

	t.Run("IDReusableAfterRemove", func(t *testing.T) {
		f := newTestIndex(t)
		_, _ = f.Add([]float32{1, 0, 0, 0}, "a")
		require.NoError(t, f.Remove("a"))

		_, err := f.Add([]float32{0, 1, 0, 0}, "a")
		require.NoError(t, err)
	})
}

func TestVectorByID(t *testing.T) {
	f := newTestIndex(t)
	_, _ = f.Add([]float32{1, 2, 3, 4}, "a")

	v, err := f.VectorByID("a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, v)

	// Returned slice is a copy.
	v[0] = 99
	v2, err := f.VectorByID("a")
	require.NoError(t, err)
	assert.Equal(t, float32(1), v2[0])

	_, err = f.VectorByID("ghost")
	assert.IsType(t, &index.ErrNotFound{}, err)
}

func TestStats(t *testing.T) {
	f := newTestIndex(t)
	_, _ = f.Add([]float32{1, 0, 0, 0}, "a")
	_, _ = f.Add([]float32{0, 1, 0, 0}, "b")
	require.NoError(t, f.Remove("a"))

	st := f.Stats()
	assert.Equal(t, 4, st.Dimension)
	assert.Equal(t, "L2", st.Metric)
	assert.Equal(t, 1, st.Live)
	assert.Equal(t, 2, st.Slots)
	assert.Equal(t, 1, st.Tombstones)
	assert.True(t, st.Dirty)
}
