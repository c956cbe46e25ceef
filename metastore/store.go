// Package metastore persists metadata records keyed by external id.
//
// Each modality owns one SQLite database file. The store is durable
// independently of the vector snapshot and never requires the vector
// index to be loaded first.
package metastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/osintlab/embedvault/metadata"
)

// ErrNotFound is returned when no record exists for an external id.
var ErrNotFound = errors.New("metastore: record not found")

const schema = `
CREATE TABLE IF NOT EXISTS record (
	external_id TEXT PRIMARY KEY,
	content_hash TEXT,
	payload TEXT NOT NULL,
	updated_ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_record_content_hash ON record (content_hash) WHERE content_hash IS NOT NULL;
`

// Store is a SQLite-backed metadata store for one modality.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the metadata database at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("metastore: open %s: %w", path, err)
	}

	// SQLite allows a single writer; funnel everything through one connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("metastore: ping %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("metastore: migrate %s: %w", path, err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Put upserts the record for the given external id.
// contentHash may be empty; when set it becomes a lookup alias for
// duplicate detection by content hash.
func (s *Store) Put(ctx context.Context, externalID string, rec metadata.Record, contentHash string) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("metastore: %w", err)
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("metastore: encode record: %w", err)
	}

	var hash any
	if contentHash != "" {
		hash = contentHash
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO record (external_id, content_hash, payload, updated_ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			content_hash = excluded.content_hash,
			payload = excluded.payload,
			updated_ts = excluded.updated_ts`,
		externalID, hash, string(payload), time.Now().Unix(),
	)
	return err
}

// Get returns the record for the given external id.
func (s *Store) Get(ctx context.Context, externalID string) (metadata.Record, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM record WHERE external_id = ?`, externalID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec metadata.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("metastore: decode record %q: %w", externalID, err)
	}
	return rec, nil
}

// GetBatch returns the records for the given external ids.
// Missing ids are simply absent from the result map.
func (s *Store) GetBatch(ctx context.Context, externalIDs []string) (map[string]metadata.Record, error) {
	result := make(map[string]metadata.Record, len(externalIDs))
	if len(externalIDs) == 0 {
		return result, nil
	}

	args := make([]any, len(externalIDs))
	for i, id := range externalIDs {
		args[i] = id
	}

	query := fmt.Sprintf(
		`SELECT external_id, payload FROM record WHERE external_id IN (%s)`,
		placeholders(len(externalIDs)),
	)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		var rec metadata.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("metastore: decode record %q: %w", id, err)
		}
		result[id] = rec
	}
	return result, rows.Err()
}

// LookupHash returns the external id aliased by the given content hash.
func (s *Store) LookupHash(ctx context.Context, contentHash string) (string, error) {
	if contentHash == "" {
		return "", ErrNotFound
	}

	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT external_id FROM record WHERE content_hash = ? LIMIT 1`, contentHash,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// Delete removes the record for the given external id.
// Deleting an absent id is not an error.
func (s *Store) Delete(ctx context.Context, externalID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM record WHERE external_id = ?`, externalID)
	return err
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM record`).Scan(&n)
	return n, err
}

// Wipe removes all records. The database file stays in place and reusable.
func (s *Store) Wipe(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM record`)
	return err
}

// Close closes the database. The store is unusable afterwards.
func (s *Store) Close() error {
	return s.db.Close()
}

// Destroy closes the database and removes its file.
func (s *Store) Destroy() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// placeholders returns n comma-separated SQL placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
