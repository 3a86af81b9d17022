package dbopen

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bmdb/internal/config"
	"github.com/Aman-CERP/bmdb/internal/value"
)

func TestOpenMemoryBackendRoundTripsThroughTable(t *testing.T) {
	cfg := config.NewConfig()
	cfg.StorageKind = config.StorageMemory

	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	tbl, err := db.OpenTable("widgets", cfg)
	require.NoError(t, err)

	id, err := tbl.Insert(context.Background(), value.Int(1))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)
}

func TestOpenBinaryBackendPersistsToDisk(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.StorageKind = config.StorageBinary
	cfg.Path = filepath.Join(dir, "bmdb.db")

	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	tbl, err := db.OpenTable("widgets", cfg)
	require.NoError(t, err)
	_, err = tbl.Insert(context.Background(), value.Int(1))
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestOpenJSONBackendPersistsToDisk(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.StorageKind = config.StorageJSON
	cfg.Path = dir

	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	tbl, err := db.OpenTable("widgets", cfg)
	require.NoError(t, err)
	_, err = tbl.Insert(context.Background(), value.Int(1))
	require.NoError(t, err)
}

func TestOpenUnsupportedStorageKindErrors(t *testing.T) {
	cfg := config.NewConfig()
	cfg.StorageKind = config.StorageKind("bogus")

	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}

func TestOpenWALBackendDerivesTwoPathsFromConfigPath(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.StorageKind = config.StorageWAL
	cfg.Path = filepath.Join(dir, "bmdb")

	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	tbl, err := db.OpenTable("widgets", cfg)
	require.NoError(t, err)
	_, err = tbl.Insert(context.Background(), value.Int(1))
	require.NoError(t, err)

	assert.FileExists(t, cfg.Path+".base")
	assert.FileExists(t, cfg.Path+".wal")
}
