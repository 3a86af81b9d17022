package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bmdb/internal/query"
	"github.com/Aman-CERP/bmdb/internal/value"
)

func TestQueryFlagsBuildReturnsNilWithoutLeaves(t *testing.T) {
	var f queryFlags
	pred, err := f.build()
	require.NoError(t, err)
	assert.Nil(t, pred)
}

func TestQueryFlagsBuildSingleWhere(t *testing.T) {
	f := queryFlags{fieldOps: []string{"age=gt=30"}}
	pred, err := f.build()
	require.NoError(t, err)

	doc := value.FromMap(value.NewMap().Set("age", value.Int(40)))
	assert.True(t, pred.Eval(doc))

	doc2 := value.FromMap(value.NewMap().Set("age", value.Int(20)))
	assert.False(t, pred.Eval(doc2))
}

func TestQueryFlagsBuildAndsMultipleWhereClauses(t *testing.T) {
	f := queryFlags{fieldOps: []string{"age=gt=30", "active=eq=true"}}
	pred, err := f.build()
	require.NoError(t, err)
	assert.True(t, query.IsAnd(pred))
}

func TestQueryFlagsBuildRejectsMalformedWhere(t *testing.T) {
	f := queryFlags{fieldOps: []string{"age"}}
	_, err := f.build()
	assert.Error(t, err)
}

func TestQueryFlagsBuildText(t *testing.T) {
	f := queryFlags{text: "body=hello world"}
	pred, err := f.build()
	require.NoError(t, err)
	_, ok := query.AsMatchesText(pred)
	assert.True(t, ok)
}

func TestParseScalarGuessesKind(t *testing.T) {
	assert.Equal(t, int64(3), mustInt(t, parseScalar("3")))
	assert.Equal(t, true, mustBool(t, parseScalar("true")))
	s, ok := parseScalar("hello").AsString()
	require.True(t, ok)
	assert.Equal(t, "hello", s)
}

func mustInt(t *testing.T, v value.Value) int64 {
	t.Helper()
	i, ok := v.AsInt()
	require.True(t, ok)
	return i
}

func mustBool(t *testing.T, v value.Value) bool {
	t.Helper()
	b, ok := v.AsBool()
	require.True(t, ok)
	return b
}
