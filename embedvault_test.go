package embedvault_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osintlab/embedvault"
	"github.com/osintlab/embedvault/admin"
	"github.com/osintlab/embedvault/blobstore"
	"github.com/osintlab/embedvault/config"
	"github.com/osintlab/embedvault/ingest"
	"github.com/osintlab/embedvault/metadata"
	"github.com/osintlab/embedvault/registry"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		DataDir: t.TempDir(),
		Modalities: []config.Modality{
			{Name: "image", Dimension: 4, Metric: "l2"},
			{Name: "text", Dimension: 3, Metric: "cosine"},
		},
		DedupThreshold: 0.01,
		IngestBurst:    1,
	}
}

func openVault(t *testing.T, cfg *config.Config, optFns ...func(o *embedvault.Options)) *embedvault.Vault {
	t.Helper()

	optFns = append([]func(o *embedvault.Options){
		embedvault.WithLogger(embedvault.NoopLogger()),
	}, optFns...)

	vault, err := embedvault.Open(cfg, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = vault.Close(context.Background()) })
	return vault
}

func TestOpen(t *testing.T) {
	t.Run("nil config uses defaults", func(t *testing.T) {
		cfg := config.Default()
		cfg.DataDir = t.TempDir()

		vault := openVault(t, cfg)
		assert.Equal(t, []string{"image", "text"}, vault.Modalities())
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := embedvault.Open(&config.Config{})
		require.Error(t, err)
	})
}

func TestVaultLifecycle(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	vault := openVault(t, cfg)

	// Ingest into both modalities.
	imgRes, err := vault.Ingest(ctx, ingest.Request{
		Modality:   "image",
		Vector:     []float32{1, 0, 0, 0},
		Record:     metadata.Record{"url": metadata.String("https://example.com/a.jpg")},
		ExternalID: "A",
	})
	require.NoError(t, err)
	require.Equal(t, "A", imgRes.ExternalID)

	_, err = vault.Ingest(ctx, ingest.Request{
		Modality:   "image",
		Vector:     []float32{0, 1, 0, 0},
		ExternalID: "B",
	})
	require.NoError(t, err)

	_, err = vault.Ingest(ctx, ingest.Request{
		Modality:   "text",
		Vector:     []float32{0.5, 0.5, 0},
		ExternalID: "T",
	})
	require.NoError(t, err)

	// Repeating a vector within the threshold reuses the id.
	dup, err := vault.Ingest(ctx, ingest.Request{
		Modality: "image",
		Vector:   []float32{1, 0, 0, 0},
	})
	require.NoError(t, err)
	assert.True(t, dup.Deduplicated)
	assert.Equal(t, "A", dup.ExternalID)

	// Search returns hydrated results in ascending distance order.
	hits, err := vault.Search(ctx, "image", []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "A", hits[0].ExternalID)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-6)
	assert.Equal(t, "https://example.com/a.jpg", hits[0].Record["url"].S)

	byID, err := vault.SearchByID(ctx, "image", "A", 1)
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "B", byID[0].ExternalID)

	// Persist, reopen, verify everything survives.
	require.NoError(t, vault.Flush(ctx))
	require.NoError(t, vault.Close(ctx))

	reopened := openVault(t, cfg)

	hits, err = reopened.Search(ctx, "image", []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "A", hits[0].ExternalID)
	assert.Equal(t, "https://example.com/a.jpg", hits[0].Record["url"].S)

	vec, err := reopened.Vector("image", "A")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0}, vec)

	// Remove drops both the vector and its record.
	require.NoError(t, reopened.Remove(ctx, "image", "B"))
	hits, err = reopened.Search(ctx, "image", []float32{0, 1, 0, 0}, 5)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "B", h.ExternalID)
	}
	_, err = reopened.Get(ctx, "image", "B")
	require.Error(t, err)
}

func TestVaultStats(t *testing.T) {
	ctx := context.Background()
	vault := openVault(t, testConfig(t))

	_, err := vault.Ingest(ctx, ingest.Request{
		Modality: "image",
		Vector:   []float32{1, 2, 3, 4},
	})
	require.NoError(t, err)

	stats, err := vault.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "image", stats[0].Modality)
	assert.Equal(t, 1, stats[0].Vectors)
	assert.True(t, stats[0].Consistent)
	assert.Equal(t, "text", stats[1].Modality)
	assert.Equal(t, 0, stats[1].Vectors)
}

func TestVaultWipe(t *testing.T) {
	ctx := context.Background()
	vault := openVault(t, testConfig(t))

	_, err := vault.Ingest(ctx, ingest.Request{
		Modality: "image",
		Vector:   []float32{1, 2, 3, 4},
	})
	require.NoError(t, err)
	_, err = vault.Ingest(ctx, ingest.Request{
		Modality: "text",
		Vector:   []float32{1, 0, 0},
	})
	require.NoError(t, err)

	require.NoError(t, vault.Wipe(ctx, admin.WipeAll))

	stats, err := vault.Stats(ctx)
	require.NoError(t, err)
	for _, st := range stats {
		assert.Equal(t, 0, st.Vectors)
		assert.Equal(t, 0, st.Records)
	}

	// Every modality remains resolvable and writable.
	_, err = vault.Ingest(ctx, ingest.Request{
		Modality: "image",
		Vector:   []float32{4, 3, 2, 1},
	})
	require.NoError(t, err)
}

func TestVaultUnknownModality(t *testing.T) {
	ctx := context.Background()
	vault := openVault(t, testConfig(t))

	_, err := vault.Search(ctx, "audio", []float32{1}, 1)

	var unknownErr *registry.ErrUnknownModality
	require.ErrorAs(t, err, &unknownErr)
}

func TestVaultMirror(t *testing.T) {
	ctx := context.Background()
	mirror := blobstore.NewMemoryStore()

	vault := openVault(t, testConfig(t), embedvault.WithMirror(mirror))

	_, err := vault.Ingest(ctx, ingest.Request{
		Modality: "image",
		Vector:   []float32{1, 2, 3, 4},
	})
	require.NoError(t, err)
	require.NoError(t, vault.Flush(ctx))

	names, err := mirror.List(ctx, "image/")
	require.NoError(t, err)
	assert.Equal(t, []string{"image/image.vec"}, names)
}
