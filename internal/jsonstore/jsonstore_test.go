package jsonstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bmdb/internal/value"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestWriteThenReadDocumentRoundTrips(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.WriteDocument("widgets", 1, value.Int(42)))

	got, ok, err := s.ReadDocument("widgets", 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, value.Equal(value.Int(42), got))
}

func TestReadDocumentMissingReportsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.ReadDocument("widgets", 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteDocumentRemovesRow(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.WriteDocument("widgets", 1, value.Int(1)))
	require.NoError(t, s.DeleteDocument("widgets", 1))

	_, ok, err := s.ReadDocument("widgets", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadReturnsOnlyMatchingTableRows(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.WriteDocument("widgets", 1, value.Int(1)))
	require.NoError(t, s.WriteDocument("widgets", 2, value.Int(2)))
	require.NoError(t, s.WriteDocument("gadgets", 1, value.Int(99)))

	got, err := s.Read("widgets")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestUpdateDocumentsBulkUpsertsAll(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdateDocumentsBulk("widgets", map[uint32]value.Value{1: value.Int(1), 2: value.Int(2)})
	require.NoError(t, err)

	got, err := s.Read("widgets")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSchemaMetaRoundTrips(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.ReadSchemaMeta("widgets")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.WriteSchemaMeta("widgets", []byte(`{"fields":[]}`)))
	got, ok, err := s.ReadSchemaMeta("widgets")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"fields":[]}`), got)
}

func TestWriteIsDurableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s1.WriteDocument("widgets", 1, value.String("hello")))

	s2, err := Open(filepath.Clean(dir))
	require.NoError(t, err)
	got, ok, err := s2.ReadDocument("widgets", 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, value.Equal(value.String("hello"), got))
}
