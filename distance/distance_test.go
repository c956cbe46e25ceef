package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSquaredL2(t *testing.T) {
	assert.Equal(t, float32(0), SquaredL2([]float32{1, 2, 3}, []float32{1, 2, 3}))
	assert.Equal(t, float32(2), SquaredL2([]float32{1, 0, 0}, []float32{0, 1, 0}))
	assert.Equal(t, float32(25), SquaredL2([]float32{0, 0}, []float32{3, 4}))
}

func TestCosineDistance(t *testing.T) {
	a, ok := NormalizeL2Copy([]float32{3, 0, 0})
	require.True(t, ok)
	b, ok := NormalizeL2Copy([]float32{5, 0, 0})
	require.True(t, ok)
	c, ok := NormalizeL2Copy([]float32{0, 2, 0})
	require.True(t, ok)

	assert.InDelta(t, 0, CosineDistance(a, b), 1e-6)
	assert.InDelta(t, 1, CosineDistance(a, c), 1e-6)
}

func TestNormalizeL2(t *testing.T) {
	t.Run("ZeroVector", func(t *testing.T) {
		_, ok := NormalizeL2Copy([]float32{0, 0, 0})
		assert.False(t, ok)
	})

	t.Run("Empty", func(t *testing.T) {
		assert.False(t, NormalizeL2InPlace(nil))
	})

	t.Run("UnitNorm", func(t *testing.T) {
		v, ok := NormalizeL2Copy([]float32{3, 4})
		require.True(t, ok)
		assert.InDelta(t, 1, Dot(v, v), 1e-6)
	})
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("l2")
	require.NoError(t, err)
	assert.Equal(t, MetricL2, m)

	m, err = ParseMetric("Cosine")
	require.NoError(t, err)
	assert.Equal(t, MetricCosine, m)

	_, err = ParseMetric("hamming")
	assert.Error(t, err)
}

func TestProvider(t *testing.T) {
	fn, err := Provider(MetricL2)
	require.NoError(t, err)
	assert.Equal(t, float32(2), fn([]float32{1, 0}, []float32{0, 1}))

	_, err = Provider(Metric(99))
	assert.Error(t, err)
}
