package schema

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/bmdb/internal/dberrors"
	"github.com/Aman-CERP/bmdb/internal/table"
	"github.com/Aman-CERP/bmdb/internal/value"
)

func TestHasManyRejectsSelfReferenceWithCascade(t *testing.T) {
	s := newTestSchema(t, "nodes", false)
	err := s.HasMany("parentId", s, "parentId", true)
	require.Error(t, err)
}

func TestHasManyAllowsSelfReferenceWithoutCascade(t *testing.T) {
	s := newTestSchema(t, "nodes", false)
	err := s.HasMany("parentId", s, "parentId", false)
	require.NoError(t, err)
}

func TestForeignKeyCheckRejectsMissingParent(t *testing.T) {
	parent := newTestSchema(t, "orgs", true)
	child := newTestSchema(t, "users", true)
	require.NoError(t, parent.HasMany("id", child, "orgId", false))

	ctx := context.Background()
	_, err := child.Insert(ctx, doc(map[string]value.Value{"orgId": value.Int(99)}))
	require.Error(t, err)
	var ferr *dberrors.ForeignKeyError
	assert.ErrorAs(t, err, &ferr)
	assert.Equal(t, "users", ferr.ChildTable)
}

func TestForeignKeyCheckPassesWhenParentExists(t *testing.T) {
	parent := newTestSchema(t, "orgs", true)
	child := newTestSchema(t, "users", true)
	require.NoError(t, parent.HasMany("id", child, "orgId", false))

	ctx := context.Background()
	orgID, err := parent.Insert(ctx, doc(map[string]value.Value{"id": value.Int(1)}))
	require.NoError(t, err)

	_, err = child.Insert(ctx, doc(map[string]value.Value{"orgId": value.Int(int64(orgID))}))
	require.NoError(t, err)
}

func TestForeignKeyCheckSkippedWhenDisabled(t *testing.T) {
	parent := newTestSchema(t, "orgs", false)
	child := newTestSchema(t, "users", false)
	require.NoError(t, parent.HasMany("id", child, "orgId", false))

	ctx := context.Background()
	_, err := child.Insert(ctx, doc(map[string]value.Value{"orgId": value.Int(99)}))
	require.NoError(t, err)
}

func TestForeignKeyCheckIgnoresNullReference(t *testing.T) {
	parent := newTestSchema(t, "orgs", true)
	child := newTestSchema(t, "users", true)
	require.NoError(t, parent.HasMany("id", child, "orgId", false))

	ctx := context.Background()
	_, err := child.Insert(ctx, doc(map[string]value.Value{"name": value.String("no org")}))
	require.NoError(t, err)
}

func TestCascadeDeleteRemovesChildren(t *testing.T) {
	parent := newTestSchema(t, "orgs", false)
	child := newTestSchema(t, "users", false)
	require.NoError(t, parent.HasMany("id", child, "orgId", true))

	ctx := context.Background()
	orgID, err := parent.Insert(ctx, doc(map[string]value.Value{"id": value.Int(1)}))
	require.NoError(t, err)
	_, err = child.Insert(ctx, doc(map[string]value.Value{"orgId": value.Int(int64(orgID))}))
	require.NoError(t, err)
	_, err = child.Insert(ctx, doc(map[string]value.Value{"orgId": value.Int(int64(orgID))}))
	require.NoError(t, err)

	_, err = parent.Remove(ctx, table.ByIDs(orgID))
	require.NoError(t, err)

	assert.Equal(t, 0, child.table.Len())
	assert.Equal(t, 0, parent.table.Len())
}

func TestCascadeDeleteLeavesNonCascadeChildrenAlone(t *testing.T) {
	parent := newTestSchema(t, "orgs", false)
	child := newTestSchema(t, "users", false)
	require.NoError(t, parent.HasMany("id", child, "orgId", false))

	ctx := context.Background()
	orgID, err := parent.Insert(ctx, doc(map[string]value.Value{"id": value.Int(1)}))
	require.NoError(t, err)
	_, err = child.Insert(ctx, doc(map[string]value.Value{"orgId": value.Int(int64(orgID))}))
	require.NoError(t, err)

	_, err = parent.Remove(ctx, table.ByIDs(orgID))
	require.NoError(t, err)

	assert.Equal(t, 1, child.table.Len())
}

func TestCascadeDeleteTerminatesOnCyclicTableGraph(t *testing.T) {
	a := newTestSchema(t, "a", false)
	b := newTestSchema(t, "b", false)
	require.NoError(t, a.HasMany("id", b, "aId", true))
	require.NoError(t, b.HasMany("id", a, "bId", true))

	ctx := context.Background()
	aID, err := a.Insert(ctx, doc(map[string]value.Value{"id": value.Int(1)}))
	require.NoError(t, err)
	bID, err := b.Insert(ctx, doc(map[string]value.Value{"id": value.Int(1), "aId": value.Int(int64(aID))}))
	require.NoError(t, err)
	_, err = a.Update(ctx, func(v value.Value) value.Value {
		return table.MergeFields(v, doc(map[string]value.Value{"bId": value.Int(int64(bID))}))
	}, table.ByIDs(aID))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := a.Remove(ctx, table.ByIDs(aID))
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("cascade delete did not terminate on a cyclic table graph")
	}
}

func TestTruncateCascadesToChildren(t *testing.T) {
	parent := newTestSchema(t, "orgs", false)
	child := newTestSchema(t, "users", false)
	require.NoError(t, parent.HasMany("id", child, "orgId", true))

	ctx := context.Background()
	orgID, err := parent.Insert(ctx, doc(map[string]value.Value{"id": value.Int(1)}))
	require.NoError(t, err)
	_, err = child.Insert(ctx, doc(map[string]value.Value{"orgId": value.Int(int64(orgID))}))
	require.NoError(t, err)

	require.NoError(t, parent.Truncate(ctx))
	assert.Equal(t, 0, child.table.Len())
	assert.Equal(t, 0, parent.table.Len())
}

func TestFindChildrenAndCounters(t *testing.T) {
	parent := newTestSchema(t, "orgs", false)
	child := newTestSchema(t, "users", false)
	require.NoError(t, parent.HasMany("id", child, "orgId", false))

	ctx := context.Background()
	orgID, err := parent.Insert(ctx, doc(map[string]value.Value{"id": value.Int(1)}))
	require.NoError(t, err)
	_, err = child.Insert(ctx, doc(map[string]value.Value{"orgId": value.Int(int64(orgID))}))
	require.NoError(t, err)

	children, err := parent.FindChildren(ctx, value.Int(int64(orgID)), child)
	require.NoError(t, err)
	assert.Len(t, children, 1)

	count, err := parent.CountChildren(ctx, value.Int(int64(orgID)), child)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	has, err := parent.HasChildren(ctx, value.Int(int64(orgID)), child)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestRemoveRelationshipDropsBothSides(t *testing.T) {
	parent := newTestSchema(t, "orgs", false)
	child := newTestSchema(t, "users", false)
	require.NoError(t, parent.HasMany("id", child, "orgId", false))

	parent.RemoveRelationship(child)
	assert.Empty(t, parent.GetRelationships())
	assert.Empty(t, child.parentLinks)
}

func TestExportRoundTripsRelationshipMetadata(t *testing.T) {
	parent := newTestSchema(t, "orgs", false)
	child := newTestSchema(t, "users", false)
	require.NoError(t, parent.HasMany("id", child, "orgId", true))

	data, err := parent.Marshal()
	require.NoError(t, err)

	refs, err := DecodeRelationships(data)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "id", refs[0].ParentField)
	assert.Equal(t, "users", refs[0].ChildTable)
	assert.Equal(t, "orgId", refs[0].ChildField)
	assert.True(t, refs[0].Cascade)
}
