package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists indexed chunks in a single SQLite database and
// answers similarity queries with a brute-force cosine scan. Fine for
// corpora up to tens of thousands of chunks per index; beyond that the
// in-memory HNSW store in front of it is the right shape.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ Backend = (*SQLiteStore)(nil)
	_ Writer  = (*SQLiteStore)(nil)
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS indices (
	name       TEXT PRIMARY KEY,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	index_name TEXT NOT NULL,
	key        TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	meta       TEXT NOT NULL,
	PRIMARY KEY (index_name, key),
	FOREIGN KEY (index_name) REFERENCES indices(name)
);

CREATE INDEX IF NOT EXISTS idx_chunks_index ON chunks(index_name);
`

// NewSQLiteStore opens (creating if needed) the database at path.
// Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc.org/sqlite serializes access per connection; a single
	// connection avoids SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces chunks in the named index.
func (s *SQLiteStore) Upsert(ctx context.Context, index string, chunks []IndexedChunk) error {
	if index == "" {
		return fmt.Errorf("index name is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO indices(name, updated_at) VALUES(?, ?)
		 ON CONFLICT(name) DO UPDATE SET updated_at=excluded.updated_at`,
		index, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("touch index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks(index_name, key, embedding, meta) VALUES(?, ?, ?, ?)
		 ON CONFLICT(index_name, key) DO UPDATE SET embedding=excluded.embedding, meta=excluded.meta`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range chunks {
		if c.Key == "" {
			return fmt.Errorf("chunk key is required")
		}
		if err := c.Meta.Validate(); err != nil {
			return fmt.Errorf("chunk %s: %w", c.Key, err)
		}
		if len(c.Vector) == 0 {
			return fmt.Errorf("chunk %s: empty vector", c.Key)
		}

		meta, err := json.Marshal(c.Meta)
		if err != nil {
			return fmt.Errorf("chunk %s: marshal metadata: %w", c.Key, err)
		}
		if _, err := stmt.ExecContext(ctx, index, c.Key, encodeVector(c.Vector), string(meta)); err != nil {
			return fmt.Errorf("chunk %s: %w", c.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Query scans the named index and returns at most topK matches ordered
// ascending by distance.
func (s *SQLiteStore) Query(ctx context.Context, index string, vector []float32, topK int) ([]CandidateMatch, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM indices WHERE name = ?`, index).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check index: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("unknown index %q", index)
	}
	if topK <= 0 {
		return []CandidateMatch{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, embedding, meta FROM chunks WHERE index_name = ?`, index)
	if err != nil {
		return nil, fmt.Errorf("scan chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []CandidateMatch
	for rows.Next() {
		var (
			key      string
			blob     []byte
			metaJSON string
		)
		if err := rows.Scan(&key, &blob, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		embedding, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", key, err)
		}

		var meta ChunkMeta
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("chunk %s: unmarshal metadata: %w", key, err)
		}

		matches = append(matches, CandidateMatch{
			Key:      key,
			Index:    index,
			Distance: cosineDistance(vector, embedding),
			Meta:     meta,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	if matches == nil {
		matches = []CandidateMatch{}
	}
	return matches, nil
}

// ListIndices returns index names, most recently updated first.
func (s *SQLiteStore) ListIndices(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM indices ORDER BY updated_at DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list indices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan index name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// encodeVector packs float32 components little-endian.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("malformed embedding blob of %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
