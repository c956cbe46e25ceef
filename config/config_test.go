package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.InDelta(t, 1e-6, cfg.DedupThreshold, 0)
	require.Len(t, cfg.Modalities, 2)
	assert.Equal(t, "image", cfg.Modalities[0].Name)
	assert.Equal(t, 512, cfg.Modalities[0].Dimension)
	assert.Equal(t, "text", cfg.Modalities[1].Name)
	assert.Equal(t, 384, cfg.Modalities[1].Dimension)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embedvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/embedvault
dedup_threshold: 0.01
ingest_rate_limit: 100
ingest_burst: 10
modalities:
  - name: image
    dimension: 512
    metric: cosine
  - name: audio
    dimension: 128
    metric: l2
mirror:
  enabled: true
  backend: local
  path: /var/lib/embedvault-mirror
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/embedvault", cfg.DataDir)
	assert.InDelta(t, 0.01, cfg.DedupThreshold, 0)
	assert.InDelta(t, 100, cfg.IngestRateLimit, 0)
	require.Len(t, cfg.Modalities, 2)
	assert.Equal(t, "cosine", cfg.Modalities[0].Metric)
	assert.True(t, cfg.Mirror.Enabled)
}

func TestValidate(t *testing.T) {
	t.Run("DuplicateModality", func(t *testing.T) {
		cfg := Default()
		cfg.Modalities = append(cfg.Modalities, Modality{Name: "image", Dimension: 64, Metric: "l2"})
		assert.Error(t, cfg.Validate())
	})

	t.Run("BadDimension", func(t *testing.T) {
		cfg := Default()
		cfg.Modalities[0].Dimension = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("BadMetric", func(t *testing.T) {
		cfg := Default()
		cfg.Modalities[0].Metric = "hamming"
		assert.Error(t, cfg.Validate())
	})

	t.Run("NegativeThreshold", func(t *testing.T) {
		cfg := Default()
		cfg.DedupThreshold = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("LocalMirrorNeedsPath", func(t *testing.T) {
		cfg := Default()
		cfg.Mirror = Mirror{Enabled: true, Backend: "local"}
		assert.Error(t, cfg.Validate())
	})
}
