package memstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bmdb/internal/value"
)

func doc(fields map[string]value.Value) value.Value {
	m := value.NewMap()
	for k, v := range fields {
		m.Set(k, v)
	}
	return value.FromMap(m)
}

func TestWriteReadDocument(t *testing.T) {
	s := Open(8)
	body := doc(map[string]value.Value{"name": value.String("ada")})
	require.NoError(t, s.WriteDocument("users", 1, body))

	got, found, err := s.ReadDocument("users", 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, value.Equal(body, got))
}

func TestReadMissingDocument(t *testing.T) {
	s := Open(8)
	_, found, err := s.ReadDocument("users", 99)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteDocument(t *testing.T) {
	s := Open(8)
	require.NoError(t, s.WriteDocument("users", 1, doc(map[string]value.Value{"v": value.Int(1)})))
	require.NoError(t, s.DeleteDocument("users", 1))
	_, found, err := s.ReadDocument("users", 1)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, s.DocCount())
}

func TestReadClonesSoCallerMutationsDoNotLeak(t *testing.T) {
	s := Open(8)
	require.NoError(t, s.WriteDocument("users", 1, doc(map[string]value.Value{"v": value.Int(1)})))
	got, _, err := s.ReadDocument("users", 1)
	require.NoError(t, err)
	m, _ := got.AsMap()
	m.Set("v", value.Int(999))

	again, _, err := s.ReadDocument("users", 1)
	require.NoError(t, err)
	am, _ := again.AsMap()
	av, _ := am.Get("v")
	n, _ := av.AsInt()
	assert.Equal(t, int64(1), n)
}

func TestDeltaLogCollapsesOnOverflow(t *testing.T) {
	s := Open(4)
	for i := uint32(1); i <= 3; i++ {
		require.NoError(t, s.WriteDocument("t", i, doc(map[string]value.Value{"i": value.Int(int64(i))})))
	}
	assert.Equal(t, 3, s.DeltaLogLen("t"))

	require.NoError(t, s.WriteDocument("t", 4, doc(map[string]value.Value{"i": value.Int(4)})))
	assert.Equal(t, 0, s.DeltaLogLen("t"), "log collapses into the table map once it reaches capacity")

	all, err := s.Read("t")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestBulkOpsAndTableDiff(t *testing.T) {
	s := Open(8)
	for i := uint32(1); i <= 5; i++ {
		require.NoError(t, s.WriteDocument("t", i, doc(map[string]value.Value{"i": value.Int(int64(i))})))
	}

	bulk, err := s.ReadDocumentsBulk("t", []uint32{1, 3, 5, 99})
	require.NoError(t, err)
	assert.Len(t, bulk, 3)

	require.NoError(t, s.UpdateDocumentsBulk("t", map[uint32]value.Value{
		6: doc(map[string]value.Value{"i": value.Int(6)}),
	}))
	all, err := s.Read("t")
	require.NoError(t, err)
	assert.Len(t, all, 6)

	err = s.Write("t", map[uint32]value.Value{
		6: doc(map[string]value.Value{"i": value.Int(6)}),
		7: doc(map[string]value.Value{"i": value.Int(7)}),
	})
	require.NoError(t, err)
	all, err = s.Read("t")
	require.NoError(t, err)
	require.Len(t, all, 2)
	_, has1 := all[1]
	_, has7 := all[7]
	assert.False(t, has1)
	assert.True(t, has7)
}
