package sqlitestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bmdb/internal/value"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "", BackendPure)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestWriteThenReadDocumentRoundTrips(t *testing.T) {
	s := openTestStore(t)
	body := value.Int(42)
	require.NoError(t, s.WriteDocument("widgets", 1, body))

	got, ok, err := s.ReadDocument("widgets", 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, value.Equal(body, got))
}

func TestReadDocumentMissingReportsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.ReadDocument("widgets", 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteDocumentUpsertsExistingRow(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.WriteDocument("widgets", 1, value.Int(1)))
	require.NoError(t, s.WriteDocument("widgets", 1, value.Int(2)))

	got, ok, err := s.ReadDocument("widgets", 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, value.Equal(value.Int(2), got))
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
	assert.True(t, value.Equal(value.Int(1), got[1]))
	assert.True(t, value.Equal(value.Int(2), got[2]))
}

func TestUpdateDocumentsBulkUpsertsAll(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdateDocumentsBulk("widgets", map[uint32]value.Value{
		1: value.Int(1),
		2: value.Int(2),
	})
	require.NoError(t, err)

	got, err := s.Read("widgets")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestReadDocumentsBulkSkipsMissingIDs(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.WriteDocument("widgets", 1, value.Int(1)))

	got, err := s.ReadDocumentsBulk("widgets", []uint32{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, uint32(1))
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
