// Package vectorindex persists the knowledge base as (id, vector, text,
// metadata) rows in a local SQLite file and answers brute-force
// nearest-neighbor queries over it. The corpus is a single modest
// collection ingested in batch, so exact cosine scoring over all rows is
// deliberate; there is no ANN structure to maintain.
package vectorindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"dextora-llm-service/models"
)

const collectionTable = "knowledge_base"

// Store is a durable vector index backed by SQLite. Safe for concurrent use:
// WAL mode lets ingestion writes interleave with retrieval reads, and rows
// are written transactionally so a reader never observes a vector/text pair
// from two different entries.
type Store struct {
	db   *sql.DB
	path string

	mu  sync.Mutex
	dim int // fixed embedding dimensionality, 0 until first upsert
}

// Open creates or opens the index under indexDir.
func Open(indexDir string) (*Store, error) {
	if err := os.MkdirAll(indexDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(indexDir, collectionTable+".db")

	// WAL mode for concurrent readers during background ingestion
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ` + collectionTable + ` (
			id     TEXT PRIMARY KEY,
			vector BLOB NOT NULL,
			text   TEXT NOT NULL,
			source TEXT NOT NULL,
			kind   TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating %s table: %w", collectionTable, err)
	}

	s := &Store{db: db, path: dbPath}

	// Recover the fixed dimensionality from any persisted row
	var blobLen sql.NullInt64
	row := db.QueryRow("SELECT length(vector) FROM " + collectionTable + " LIMIT 1")
	if err := row.Scan(&blobLen); err != nil && err != sql.ErrNoRows {
		db.Close()
		return nil, fmt.Errorf("inspecting index: %w", err)
	}
	if blobLen.Valid {
		s.dim = int(blobLen.Int64) / 4
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Upsert inserts entries, overwriting any row with the same id. All entries
// must carry vectors of the index's fixed dimensionality; the first upsert
// into an empty index fixes it.
func (s *Store) Upsert(ctx context.Context, entries []models.KnowledgeEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim == 0 {
		s.dim = len(entries[0].Vector)
	}
	for _, e := range entries {
		if len(e.Vector) != s.dim {
			return fmt.Errorf("entry %s: vector dimension %d does not match index dimension %d", e.ID, len(e.Vector), s.dim)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+collectionTable+` (id, vector, text, source, kind)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vector = excluded.vector,
			text = excluded.text,
			source = excluded.source,
			kind = excluded.kind
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, float32SliceToBytes(e.Vector), e.Text, e.Source, e.Kind); err != nil {
			return fmt.Errorf("upserting entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Query returns the k entries most similar to vector under cosine
// similarity, best first. An empty index yields an empty slice.
func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return []models.SearchResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT vector, text, source, kind FROM "+collectionTable)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	results := make([]models.SearchResult, 0, k)
	for rows.Next() {
		var blob []byte
		var text, source, kind string
		if err := rows.Scan(&blob, &text, &source, &kind); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		results = append(results, models.SearchResult{
			Text:   text,
			Source: source,
			Kind:   kind,
			Score:  cosineSimilarity(vector, bytesToFloat32Slice(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating index: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of stored entries, optionally filtered by source
// and kind (empty strings match everything).
func (s *Store) Count(ctx context.Context, source, kind string) (int, error) {
	query := "SELECT COUNT(*) FROM " + collectionTable + " WHERE 1=1"
	args := []any{}
	if source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
