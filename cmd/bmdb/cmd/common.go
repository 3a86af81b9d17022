package cmd

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/bmdb/internal/config"
	"github.com/Aman-CERP/bmdb/internal/dbopen"
	"github.com/Aman-CERP/bmdb/internal/table"
)

// loadConfig layers defaults, configDir's bmdb.yaml (if present), and
// environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openDB opens cfg's configured storage backend. Callers must Close it.
func openDB(ctx context.Context, cfg *config.Config) (*dbopen.DB, error) {
	db, err := dbopen.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// openTable is the common path nearly every command needs: load config,
// open its backend, and attach a fresh-index Table for name.
func openTable(ctx context.Context, name string) (*dbopen.DB, *table.Table, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	tbl, err := db.OpenTable(name, cfg)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, tbl, nil
}
