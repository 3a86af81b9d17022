package filestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bmdb/internal/value"
)

// memRawIO is a growable in-memory RawIO, so filestore tests never touch
// a real file.
type memRawIO struct {
	buf []byte
}

func newMemRawIO() *memRawIO { return &memRawIO{} }

func (m *memRawIO) ensure(n int64) {
	if int64(len(m.buf)) < n {
		grown := make([]byte, n)
		copy(grown, m.buf)
		m.buf = grown
	}
}

func (m *memRawIO) ReadAt(buf []byte, offset int64) (int, error) {
	m.ensure(offset + int64(len(buf)))
	return copy(buf, m.buf[offset:offset+int64(len(buf))]), nil
}

func (m *memRawIO) WriteAt(buf []byte, offset int64) (int, error) {
	m.ensure(offset + int64(len(buf)))
	return copy(m.buf[offset:], buf), nil
}

func (m *memRawIO) Truncate(size int64) error {
	m.ensure(size)
	m.buf = m.buf[:size]
	return nil
}

func (m *memRawIO) Size() (int64, error) { return int64(len(m.buf)), nil }
func (m *memRawIO) Sync() error          { return nil }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(newMemRawIO(), 8, 8)
	require.NoError(t, err)
	return s
}

func doc(fields map[string]value.Value) value.Value {
	m := value.NewMap()
	for k, v := range fields {
		m.Set(k, v)
	}
	return value.FromMap(m)
}

func TestWriteReadDocument(t *testing.T) {
	s := newTestStore(t)
	body := doc(map[string]value.Value{"name": value.String("ada")})
	require.NoError(t, s.WriteDocument("users", 1, body))

	got, found, err := s.ReadDocument("users", 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, value.Equal(body, got))
}

func TestReadMissingDocument(t *testing.T) {
	s := newTestStore(t)
	_, found, err := s.ReadDocument("users", 99)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpdateDocumentOverwritesAndFreesOldSpan(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WriteDocument("users", 1, doc(map[string]value.Value{"v": value.Int(1)})))
	require.NoError(t, s.WriteDocument("users", 1, doc(map[string]value.Value{"v": value.Int(2)})))

	got, found, err := s.ReadDocument("users", 1)
	require.NoError(t, err)
	require.True(t, found)
	v, _ := got.AsMap()
	vv, _ := v.Get("v")
	n, _ := vv.AsInt()
	assert.Equal(t, int64(2), n)
	assert.Equal(t, uint32(1), s.DocCount())
	assert.NotZero(t, s.FreeBytes())
}

func TestDeleteDocument(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WriteDocument("users", 1, doc(map[string]value.Value{"v": value.Int(1)})))
	require.NoError(t, s.DeleteDocument("users", 1))
	_, found, err := s.ReadDocument("users", 1)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, uint32(0), s.DocCount())
}

func TestReadTableAndBulkOps(t *testing.T) {
	s := newTestStore(t)
	for i := uint32(1); i <= 5; i++ {
		require.NoError(t, s.WriteDocument("users", i, doc(map[string]value.Value{"i": value.Int(int64(i))})))
	}
	require.NoError(t, s.WriteDocument("posts", 1, doc(map[string]value.Value{"title": value.String("hi")})))

	all, err := s.Read("users")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	bulk, err := s.ReadDocumentsBulk("users", []uint32{1, 3, 5, 99})
	require.NoError(t, err)
	assert.Len(t, bulk, 3)

	require.NoError(t, s.UpdateDocumentsBulk("users", map[uint32]value.Value{
		6: doc(map[string]value.Value{"i": value.Int(6)}),
	}))
	all, err = s.Read("users")
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestWriteDiffRemovesMissingDocs(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WriteDocument("t", 1, doc(map[string]value.Value{"a": value.Int(1)})))
	require.NoError(t, s.WriteDocument("t", 2, doc(map[string]value.Value{"a": value.Int(2)})))

	err := s.Write("t", map[uint32]value.Value{
		2: doc(map[string]value.Value{"a": value.Int(2)}),
		3: doc(map[string]value.Value{"a": value.Int(3)}),
	})
	require.NoError(t, err)

	all, err := s.Read("t")
	require.NoError(t, err)
	require.Len(t, all, 2)
	_, has1 := all[1]
	_, has3 := all[3]
	assert.False(t, has1)
	assert.True(t, has3)
}

func TestCompactPreservesDocumentsAndShrinksFreeSpace(t *testing.T) {
	s := newTestStore(t)
	for i := uint32(1); i <= 10; i++ {
		require.NoError(t, s.WriteDocument("t", i, doc(map[string]value.Value{"i": value.Int(int64(i))})))
	}
	for i := uint32(1); i <= 5; i++ {
		require.NoError(t, s.DeleteDocument("t", i))
	}
	require.NoError(t, s.Compact())

	all, err := s.Read("t")
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, uint32(0), s.FreeBytes())
}

func TestReopenAfterSyncPreservesData(t *testing.T) {
	raw := newMemRawIO()
	s, err := Open(raw, 8, 8)
	require.NoError(t, err)
	require.NoError(t, s.WriteDocument("t", 1, doc(map[string]value.Value{"v": value.String("persisted")})))
	require.NoError(t, s.Sync())

	reopened, err := Open(raw, 8, 8)
	require.NoError(t, err)
	got, found, err := reopened.ReadDocument("t", 1)
	require.NoError(t, err)
	require.True(t, found)
	m, _ := got.AsMap()
	v, _ := m.Get("v")
	str, _ := v.AsString()
	assert.Equal(t, "persisted", str)
}
