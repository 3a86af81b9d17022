// Package config loads bmdb's runtime configuration: which storage backend
// to use, where it lives on disk, and the tuning knobs for caches, WAL group
// commit, and lock timeouts. Configuration layers the same way the rest of
// the ecosystem does it: hardcoded defaults, then an optional YAML file,
// then environment variables (highest precedence).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageKind selects the storage engine a Table/SchemaTable is backed by.
type StorageKind string

const (
	StorageMemory StorageKind = "memory"
	StorageBinary StorageKind = "binary"
	StorageJSON   StorageKind = "json"
	StorageSQLite StorageKind = "sqlite"
	StorageWAL    StorageKind = "wal"
)

// ConflictPolicy selects how WAL storage resolves two commits that touched
// the same key. Both policies are legitimate; which one applies is fixed
// per configuration rather than decided per-transaction.
type ConflictPolicy string

const (
	ConflictLastWriterWins  ConflictPolicy = "last-writer-wins"
	ConflictOptimisticReject ConflictPolicy = "optimistic-reject"
)

// Config is the full, layered bmdb configuration: storage backend and
// path, cache sizes, WAL batching, lock timeout, and indexing toggles.
type Config struct {
	Version int `yaml:"version" json:"version"`

	StorageKind StorageKind `yaml:"storage_kind" json:"storage_kind"`
	Path        string      `yaml:"path" json:"path"`

	CacheSize       int `yaml:"cache_size" json:"cache_size"`
	QueryCacheSize  int `yaml:"query_cache_size" json:"query_cache_size"`
	BTreeNodeCache  int `yaml:"btree_node_cache" json:"btree_node_cache"`
	ChunkCacheSize  int `yaml:"chunk_cache_size" json:"chunk_cache_size"`

	WAL WALConfig `yaml:"wal" json:"wal"`

	LockTimeoutMs int `yaml:"lock_timeout_ms" json:"lock_timeout_ms"`

	IndexingEnabled bool `yaml:"indexing_enabled" json:"indexing_enabled"`

	ForeignKeyChecks bool `yaml:"foreign_key_checks" json:"foreign_key_checks"`
}

// WALConfig tunes the WAL storage engine.
type WALConfig struct {
	BatchSize      int            `yaml:"batch_size" json:"batch_size"`
	BatchTimeoutMs int            `yaml:"batch_timeout_ms" json:"batch_timeout_ms"`
	Conflict       ConflictPolicy `yaml:"conflict_policy" json:"conflict_policy"`
}

// BatchTimeout returns WAL.BatchTimeoutMs as a time.Duration.
func (w WALConfig) BatchTimeout() time.Duration {
	return time.Duration(w.BatchTimeoutMs) * time.Millisecond
}

// LockTimeout returns LockTimeoutMs as a time.Duration.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

// NewConfig returns the hardcoded defaults.
func NewConfig() *Config {
	return &Config{
		Version:         1,
		StorageKind:     StorageBinary,
		Path:            "bmdb.db",
		CacheSize:       1000,
		QueryCacheSize:  256,
		BTreeNodeCache:  1000,
		ChunkCacheSize:  1000,
		LockTimeoutMs:   5000,
		IndexingEnabled: true,
		ForeignKeyChecks: true,
		WAL: WALConfig{
			BatchSize:      200,
			BatchTimeoutMs: 100,
			Conflict:       ConflictLastWriterWins,
		},
	}
}

// Load builds a Config by layering defaults, an optional config file found
// in dir, and environment variable overrides, then validates the result.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads bmdb.yaml or bmdb.yml from dir, if present.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{"bmdb.yaml", "bmdb.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML decodes path directly onto c: yaml.v3 only overwrites fields
// present in the document, so unset fields keep their NewConfig default
// (including booleans — there is no fresh zero-value intermediate to merge).
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BMDB_STORAGE_KIND"); v != "" {
		c.StorageKind = StorageKind(v)
	}
	if v := os.Getenv("BMDB_PATH"); v != "" {
		c.Path = v
	}
	if v := os.Getenv("BMDB_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.CacheSize = n
		}
	}
	if v := os.Getenv("BMDB_WAL_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.WAL.BatchSize = n
		}
	}
	if v := os.Getenv("BMDB_WAL_BATCH_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.WAL.BatchTimeoutMs = n
		}
	}
	if v := os.Getenv("BMDB_LOCK_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.LockTimeoutMs = n
		}
	}
	if v := os.Getenv("BMDB_INDEXING_ENABLED"); v != "" {
		c.IndexingEnabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("BMDB_FOREIGN_KEY_CHECKS"); v != "" {
		c.ForeignKeyChecks = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("BMDB_CONFLICT_POLICY"); v != "" {
		c.WAL.Conflict = ConflictPolicy(v)
	}
}

// Validate checks the final, layered configuration for consistency.
func (c *Config) Validate() error {
	switch c.StorageKind {
	case StorageMemory, StorageBinary, StorageJSON, StorageSQLite, StorageWAL:
	default:
		return fmt.Errorf("storage_kind must be one of memory|binary|json|sqlite|wal, got %q", c.StorageKind)
	}

	if c.StorageKind != StorageMemory && c.Path == "" {
		return fmt.Errorf("path is required for storage_kind %q", c.StorageKind)
	}

	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must be non-negative, got %d", c.CacheSize)
	}
	if c.WAL.BatchSize <= 0 {
		return fmt.Errorf("wal.batch_size must be positive, got %d", c.WAL.BatchSize)
	}
	if c.WAL.BatchTimeoutMs < 0 {
		return fmt.Errorf("wal.batch_timeout_ms must be non-negative, got %d", c.WAL.BatchTimeoutMs)
	}
	if c.LockTimeoutMs < 0 {
		return fmt.Errorf("lock_timeout_ms must be non-negative, got %d", c.LockTimeoutMs)
	}

	switch c.WAL.Conflict {
	case ConflictLastWriterWins, ConflictOptimisticReject:
	default:
		return fmt.Errorf("wal.conflict_policy must be 'last-writer-wins' or 'optimistic-reject', got %q", c.WAL.Conflict)
	}

	return nil
}

// WriteYAML persists the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
