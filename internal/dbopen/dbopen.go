// Package dbopen wires a layered Config (internal/config) to a live
// table.Storage implementation, picking the concrete backend package by
// Config.StorageKind. This is the one place that knows about every storage
// package at once; everything else only depends on table.Storage.
package dbopen

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/bmdb/internal/config"
	"github.com/Aman-CERP/bmdb/internal/filestore"
	"github.com/Aman-CERP/bmdb/internal/index"
	"github.com/Aman-CERP/bmdb/internal/jsonstore"
	"github.com/Aman-CERP/bmdb/internal/memstore"
	"github.com/Aman-CERP/bmdb/internal/sqlitestore"
	"github.com/Aman-CERP/bmdb/internal/table"
	"github.com/Aman-CERP/bmdb/internal/wal"
)

// DB owns an open storage backend, so a CLI invocation can release it with
// a single call. Index managers of tables opened through it are not kept
// here; each OpenTable call builds a fresh one.
type DB struct {
	Storage table.Storage
	closer  func() error
}

// Close releases the underlying backend: the binary backend is synced, the
// SQLite and WAL backends are closed, and the memory and JSON backends
// have nothing to release.
func (d *DB) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}

// Open attaches a DB to cfg's configured storage backend and path.
func Open(ctx context.Context, cfg *config.Config) (*DB, error) {
	switch cfg.StorageKind {
	case config.StorageMemory:
		return &DB{Storage: memstore.Open(memstore.DefaultDeltaLogCap)}, nil

	case config.StorageBinary:
		raw, err := filestore.OpenFile(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("dbopen: open binary store: %w", err)
		}
		st, err := filestore.Open(raw, cfg.BTreeNodeCache, cfg.ChunkCacheSize)
		if err != nil {
			return nil, fmt.Errorf("dbopen: open binary store: %w", err)
		}
		return &DB{Storage: st, closer: st.Sync}, nil

	case config.StorageJSON:
		st, err := jsonstore.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("dbopen: open json store: %w", err)
		}
		return &DB{Storage: st}, nil

	case config.StorageSQLite:
		st, err := sqlitestore.Open(ctx, cfg.Path, sqlitestore.BackendPure)
		if err != nil {
			return nil, fmt.Errorf("dbopen: open sqlite store: %w", err)
		}
		return &DB{Storage: st, closer: st.Close}, nil

	case config.StorageWAL:
		raw, err := filestore.OpenFile(cfg.Path + ".base")
		if err != nil {
			return nil, fmt.Errorf("dbopen: open wal base store: %w", err)
		}
		base, err := filestore.Open(raw, cfg.BTreeNodeCache, cfg.ChunkCacheSize)
		if err != nil {
			return nil, fmt.Errorf("dbopen: open wal base store: %w", err)
		}
		st, err := wal.Open(cfg.Path+".wal", base, wal.OptionsFromConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("dbopen: open wal store: %w", err)
		}
		return &DB{Storage: st, closer: st.Close}, nil

	default:
		return nil, fmt.Errorf("dbopen: unsupported storage_kind %q", cfg.StorageKind)
	}
}

// OpenTable returns a Table named name backed by d's storage, with a fresh
// index manager (the CLI does not persist index metadata across runs — a
// host application wanting durable indexes declares a schema instead, see
// internal/schema).
func (d *DB) OpenTable(name string, cfg *config.Config) (*table.Table, error) {
	idx := index.NewManager()
	tbl, err := table.NewTable(name, d.Storage, idx, cfg.QueryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("dbopen: open table %q: %w", name, err)
	}
	return tbl, nil
}
