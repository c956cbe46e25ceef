// Package embedvault provides an embedded, persistence-backed store for
// embedding vectors and their metadata, partitioned by modality.
//
// Each configured modality (e.g. "image" at 512 dimensions, "text" at 384)
// owns an exact nearest-neighbor index paired with a SQLite metadata store.
// Ingestion assigns external ids, suppresses duplicates by content hash and
// by embedding distance, and keeps the index and the store consistent.
//
// # Quick Start
//
//	cfg := config.Default()
//	cfg.DataDir = "./data"
//
//	vault, _ := embedvault.Open(cfg)
//	defer vault.Close(ctx)
//
//	res, _ := vault.Ingest(ctx, ingest.Request{
//	    Modality: "image",
//	    Vector:   embedding,
//	    Record:   metadata.Record{"url": metadata.String("https://...")},
//	})
//
//	hits, _ := vault.Search(ctx, "image", query, 10)
//	for _, h := range hits {
//	    fmt.Println(h.ExternalID, h.Distance, h.Record)
//	}
//
// # Durability Model
//
// Writes are applied in memory and become durable on Flush, which writes
// each dirty index to an atomic snapshot file; metadata writes go straight
// to SQLite. Close flushes everything. A configured mirror store receives a
// copy of every flushed snapshot.
//
// # Key Features
//
//   - Exact (flat) nearest-neighbor search, L2 or cosine
//   - Content-hash and embedding-distance duplicate suppression
//   - Per-modality isolation: one corrupt snapshot never blocks the rest
//   - Snapshot mirroring to local, in-memory, MinIO, or S3 stores
//   - Rate-limited ingestion
package embedvault
