// Package sqlitestore implements component N: an alternative §4.C/§4.E
// storage backend persisting documents as rows in a single SQLite
// database rather than the custom binary/WAL file formats. Grounded on
// internal/store/bm25_factory.go's runtime backend-selection shape
// (NewBM25IndexWithBackend picking sqlite vs. bleve by a string), applied
// here to the choice between the cgo mattn/go-sqlite3 driver (default,
// matches production deployments) and the pure-Go modernc.org/sqlite
// driver (fallback for cross-compiled or cgo-disabled builds), and on
// calvinalkan-agent-task/internal/store/index_sqlite.go's
// sql.Open/PingContext/PRAGMA-tuning sequence.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // registers driver "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers driver "sqlite" (pure Go)

	"github.com/Aman-CERP/bmdb/internal/msgpack"
	"github.com/Aman-CERP/bmdb/internal/value"
)

// Backend selects which SQLite driver a Store opens its database with.
type Backend string

const (
	// BackendCGO uses mattn/go-sqlite3, the default: fastest, requires cgo.
	BackendCGO Backend = "mattn"
	// BackendPure uses modernc.org/sqlite: pure Go, no cgo toolchain needed.
	BackendPure Backend = "modernc"
)

func (b Backend) driverName() string {
	if b == BackendPure {
		return "sqlite"
	}
	return "sqlite3"
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
	table_name TEXT NOT NULL,
	doc_id     INTEGER NOT NULL,
	body       BLOB NOT NULL,
	PRIMARY KEY (table_name, doc_id)
);
CREATE TABLE IF NOT EXISTS schema_meta (
	table_name  TEXT PRIMARY KEY,
	schema_json BLOB NOT NULL
);
`

// Store is the SQLite-backed document store satisfying table.Storage (and
// its optional bulk interfaces), per SPEC_FULL.md §6's external file
// format: one documents table keyed by (table_name, doc_id), one
// schema_meta table mirroring the JSON schema side-table's content.
type Store struct {
	db *sql.DB
}

// Open attaches a Store to path (or an in-memory database if path is
// ""), creating the schema on first use. WAL mode trades a small
// durability window for write concurrency, matching the teacher's own
// pragma choices for a single-writer embedded database.
func Open(ctx context.Context, path string, backend Backend) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open(backend.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: ping: %w", err)
	}
	if path != "" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlitestore: apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// ReadDocument returns the body stored for (table, docID).
func (s *Store) ReadDocument(table string, docID uint32) (value.Value, bool, error) {
	var blob []byte
	err := s.db.QueryRow(
		`SELECT body FROM documents WHERE table_name = ? AND doc_id = ?`,
		table, docID,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return value.Value{}, false, nil
	}
	if err != nil {
		return value.Value{}, false, fmt.Errorf("sqlitestore: read document: %w", err)
	}
	v, err := msgpack.Decode(blob)
	if err != nil {
		return value.Value{}, false, err
	}
	return v, true, nil
}

// WriteDocument upserts (table, docID, body).
func (s *Store) WriteDocument(table string, docID uint32, body value.Value) error {
	payload, err := msgpack.Encode(body)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO documents (table_name, doc_id, body) VALUES (?, ?, ?)
		 ON CONFLICT (table_name, doc_id) DO UPDATE SET body = excluded.body`,
		table, docID, payload,
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: write document: %w", err)
	}
	return nil
}

// DeleteDocument removes (table, docID), if present.
func (s *Store) DeleteDocument(table string, docID uint32) error {
	_, err := s.db.Exec(`DELETE FROM documents WHERE table_name = ? AND doc_id = ?`, table, docID)
	if err != nil {
		return fmt.Errorf("sqlitestore: delete document: %w", err)
	}
	return nil
}

// Read returns the full docId -> body map for table.
func (s *Store) Read(table string) (map[uint32]value.Value, error) {
	rows, err := s.db.Query(`SELECT doc_id, body FROM documents WHERE table_name = ?`, table)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: read table: %w", err)
	}
	defer rows.Close()

	out := make(map[uint32]value.Value)
	for rows.Next() {
		var docID uint32
		var blob []byte
		if err := rows.Scan(&docID, &blob); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan row: %w", err)
		}
		v, err := msgpack.Decode(blob)
		if err != nil {
			return nil, err
		}
		out[docID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: read table: %w", err)
	}
	return out, nil
}

// ReadDocumentsBulk returns the bodies for every id in ids that exists,
// satisfying table's optional bulkReader fast path.
func (s *Store) ReadDocumentsBulk(table string, ids []uint32) (map[uint32]value.Value, error) {
	out := make(map[uint32]value.Value, len(ids))
	for _, id := range ids {
		v, ok, err := s.ReadDocument(table, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = v
		}
	}
	return out, nil
}

// UpdateDocumentsBulk upserts every (id, body) pair in bodies within a
// single transaction, satisfying table's optional bulkWriter fast path.
func (s *Store) UpdateDocumentsBulk(table string, bodies map[uint32]value.Value) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlitestore: begin bulk update: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(
		`INSERT INTO documents (table_name, doc_id, body) VALUES (?, ?, ?)
		 ON CONFLICT (table_name, doc_id) DO UPDATE SET body = excluded.body`,
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: prepare bulk update: %w", err)
	}
	defer stmt.Close()

	for id, body := range bodies {
		payload, err := msgpack.Encode(body)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(table, id, payload); err != nil {
			return fmt.Errorf("sqlitestore: bulk update doc %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: commit bulk update: %w", err)
	}
	committed = true
	return nil
}

// WriteSchemaMeta persists name's serialized schema metadata, upserting
// schema_meta's (table_name, schema_json) row.
func (s *Store) WriteSchemaMeta(name string, schemaJSON []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO schema_meta (table_name, schema_json) VALUES (?, ?)
		 ON CONFLICT (table_name) DO UPDATE SET schema_json = excluded.schema_json`,
		name, schemaJSON,
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: write schema meta: %w", err)
	}
	return nil
}

// ReadSchemaMeta returns name's serialized schema metadata, if present.
func (s *Store) ReadSchemaMeta(name string) ([]byte, bool, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT schema_json FROM schema_meta WHERE table_name = ?`, name).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlitestore: read schema meta: %w", err)
	}
	return blob, true, nil
}
