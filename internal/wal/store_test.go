package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bmdb/internal/config"
	"github.com/Aman-CERP/bmdb/internal/dberrors"
	"github.com/Aman-CERP/bmdb/internal/value"
)

// fakeBase is an in-memory BaseStore so wal tests never touch the real
// filestore/memstore implementations.
type fakeBase struct {
	docs map[string]map[uint32]value.Value
}

func newFakeBase() *fakeBase {
	return &fakeBase{docs: make(map[string]map[uint32]value.Value)}
}

func (f *fakeBase) ReadDocument(table string, docID uint32) (value.Value, bool, error) {
	t, ok := f.docs[table]
	if !ok {
		return value.Value{}, false, nil
	}
	v, ok := t[docID]
	return v, ok, nil
}

func (f *fakeBase) WriteDocument(table string, docID uint32, body value.Value) error {
	t, ok := f.docs[table]
	if !ok {
		t = make(map[uint32]value.Value)
		f.docs[table] = t
	}
	t[docID] = value.Clone(body)
	return nil
}

func (f *fakeBase) DeleteDocument(table string, docID uint32) error {
	if t, ok := f.docs[table]; ok {
		delete(t, docID)
	}
	return nil
}

func (f *fakeBase) Read(table string) (map[uint32]value.Value, error) {
	out := make(map[uint32]value.Value)
	for id, v := range f.docs[table] {
		out[id] = value.Clone(v)
	}
	return out, nil
}

func testOptions() Options {
	return Options{BatchSize: 200, BatchTimeoutMs: 100, ConflictDetection: config.ConflictLastWriterWins, LockTimeoutMs: 1000}
}

func doc(fields map[string]value.Value) value.Value {
	m := value.NewMap()
	for k, v := range fields {
		m.Set(k, v)
	}
	return value.FromMap(m)
}

func newTestWAL(t *testing.T) (*Store, string, *fakeBase) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wal")
	base := newFakeBase()
	s, err := Open(path, base, testOptions())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path, base
}

func TestCommitMakesWritesVisible(t *testing.T) {
	s, _, base := newTestWAL(t)
	txid := s.Begin()
	require.NoError(t, s.WriteInTransaction(txid, "users", 1, doc(map[string]value.Value{"name": value.String("ada")})))
	require.NoError(t, s.Commit(txid))

	got, found, err := s.ReadDocument("users", 1)
	require.NoError(t, err)
	require.True(t, found)
	m, _ := got.AsMap()
	v, _ := m.Get("name")
	name, _ := v.AsString()
	assert.Equal(t, "ada", name)

	baseVal, found, err := base.ReadDocument("users", 1)
	require.NoError(t, err)
	require.True(t, found)
	bm, _ := baseVal.AsMap()
	bv, _ := bm.Get("name")
	bname, _ := bv.AsString()
	assert.Equal(t, "ada", bname)
}

func TestRollbackDiscardsBufferedWrites(t *testing.T) {
	s, _, _ := newTestWAL(t)
	txid := s.Begin()
	require.NoError(t, s.WriteInTransaction(txid, "users", 1, doc(map[string]value.Value{"v": value.Int(1)})))
	require.NoError(t, s.Rollback(txid))

	_, found, err := s.ReadDocument("users", 1)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWriteDocumentConvenienceWrapsTransaction(t *testing.T) {
	s, _, _ := newTestWAL(t)
	require.NoError(t, s.WriteDocument("t", 1, doc(map[string]value.Value{"v": value.Int(1)})))
	got, found, err := s.ReadDocument("t", 1)
	require.NoError(t, err)
	require.True(t, found)
	m, _ := got.AsMap()
	v, _ := m.Get("v")
	n, _ := v.AsInt()
	assert.Equal(t, int64(1), n)
}

func TestDeleteDocumentRemovesKey(t *testing.T) {
	s, _, _ := newTestWAL(t)
	require.NoError(t, s.WriteDocument("t", 1, doc(map[string]value.Value{"v": value.Int(1)})))
	require.NoError(t, s.DeleteDocument("t", 1))
	_, found, err := s.ReadDocument("t", 1)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBatchFlushBeforeCommitIsReplayedOnRecovery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wal")
	base := newFakeBase()
	opts := Options{BatchSize: 1, BatchTimeoutMs: 100, ConflictDetection: config.ConflictLastWriterWins, LockTimeoutMs: 1000}
	s, err := Open(path, base, opts)
	require.NoError(t, err)

	txid := s.Begin()
	require.NoError(t, s.WriteInTransaction(txid, "t", 1, doc(map[string]value.Value{"v": value.Int(1)})))
	require.NoError(t, s.Commit(txid))
	require.NoError(t, s.Close())

	reopened, err := Open(path, base, opts)
	require.NoError(t, err)
	defer reopened.Close()

	got, found, err := reopened.ReadDocument("t", 1)
	require.NoError(t, err)
	require.True(t, found)
	m, _ := got.AsMap()
	v, _ := m.Get("v")
	n, _ := v.AsInt()
	assert.Equal(t, int64(1), n)
}

func TestRecoveryDiscardsTruncatedTrailingRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wal")
	base := newFakeBase()
	opts := testOptions()

	s, err := Open(path, base, opts)
	require.NoError(t, err)
	require.NoError(t, s.WriteDocument("t", 1, doc(map[string]value.Value{"v": value.Int(1)})))

	txid := s.Begin()
	require.NoError(t, s.WriteInTransaction(txid, "t", 2, doc(map[string]value.Value{"v": value.Int(2)})))
	require.NoError(t, s.ForceBatchFlush(txid))
	require.NoError(t, s.file.Close())
	require.NoError(t, s.lock.unlock())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-3))

	reopened, err := Open(path, base, opts)
	require.NoError(t, err)
	defer reopened.Close()

	_, found, err := reopened.ReadDocument("t", 1)
	require.NoError(t, err)
	assert.True(t, found, "the fully committed write survives recovery")

	_, found, err = reopened.ReadDocument("t", 2)
	require.NoError(t, err)
	assert.False(t, found, "the uncommitted, truncated tail is discarded, not treated as corruption")
}

func TestSnapshotIsolationHidesConcurrentCommit(t *testing.T) {
	s, _, _ := newTestWAL(t)
	require.NoError(t, s.WriteDocument("t", 1, doc(map[string]value.Value{"v": value.Int(1)})))

	reader := s.Begin()

	writer := s.Begin()
	require.NoError(t, s.WriteInTransaction(writer, "t", 1, doc(map[string]value.Value{"v": value.Int(2)})))
	require.NoError(t, s.Commit(writer))

	// reader's snapshot predates writer's commit, so it still sees v=1
	// through the transaction-scoped read even though the latest
	// committed value is now v=2.
	got, found, err := s.ReadDocumentInTransaction(reader, "t", 1)
	require.NoError(t, err)
	require.True(t, found)
	m, _ := got.AsMap()
	v, _ := m.Get("v")
	n, _ := v.AsInt()
	assert.Equal(t, int64(1), n)

	latest, found, err := s.ReadDocument("t", 1)
	require.NoError(t, err)
	require.True(t, found)
	lm, _ := latest.AsMap()
	lv, _ := lm.Get("v")
	ln, _ := lv.AsInt()
	assert.Equal(t, int64(2), ln)

	require.NoError(t, s.Rollback(reader))
}

func TestOptimisticRejectFailsOnIntervenigCommit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wal")
	base := newFakeBase()
	opts := Options{BatchSize: 200, BatchTimeoutMs: 100, ConflictDetection: config.ConflictOptimisticReject, LockTimeoutMs: 1000}
	s, err := Open(path, base, opts)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteDocument("t", 1, doc(map[string]value.Value{"v": value.Int(1)})))

	txA := s.Begin()
	require.NoError(t, s.WriteInTransaction(txA, "t", 1, doc(map[string]value.Value{"v": value.Int(2)})))

	txB := s.Begin()
	require.NoError(t, s.WriteInTransaction(txB, "t", 1, doc(map[string]value.Value{"v": value.Int(3)})))
	require.NoError(t, s.Commit(txB))

	err = s.Commit(txA)
	require.Error(t, err)
	var conflict *dberrors.TransactionConflict
	assert.ErrorAs(t, err, &conflict)
}

func TestCheckpointCollapsesChainsAndTruncatesLog(t *testing.T) {
	s, path, _ := newTestWAL(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.WriteDocument("t", 1, doc(map[string]value.Value{"v": value.Int(int64(i))})))
	}

	sizeBefore, err := fileSize(path)
	require.NoError(t, err)
	require.NoError(t, s.Checkpoint())
	sizeAfter, err := fileSize(path)
	require.NoError(t, err)
	assert.Less(t, sizeAfter, sizeBefore)

	assert.Len(t, s.chains[docKeyOf("t", 1)], 1)

	got, found, err := s.ReadDocument("t", 1)
	require.NoError(t, err)
	require.True(t, found)
	m, _ := got.AsMap()
	v, _ := m.Get("v")
	n, _ := v.AsInt()
	assert.Equal(t, int64(4), n)
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func TestReadMergesChainOverBase(t *testing.T) {
	s, _, _ := newTestWAL(t)
	require.NoError(t, s.WriteDocument("t", 1, doc(map[string]value.Value{"v": value.Int(1)})))
	require.NoError(t, s.WriteDocument("t", 2, doc(map[string]value.Value{"v": value.Int(2)})))
	require.NoError(t, s.DeleteDocument("t", 2))

	all, err := s.Read("t")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	_, has2 := all[2]
	assert.False(t, has2)
}
