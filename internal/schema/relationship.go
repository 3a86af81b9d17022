package schema

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/bmdb/internal/dberrors"
	"github.com/Aman-CERP/bmdb/internal/query"
	"github.com/Aman-CERP/bmdb/internal/table"
	"github.com/Aman-CERP/bmdb/internal/value"
)

// Relationship is a parent-to-child link: every child row whose
// ChildField equals the parent's ParentField value belongs to that
// parent. Cascade controls whether deleting or truncating the parent
// removes those children too.
type Relationship struct {
	Parent      *Schema
	ParentField string
	Child       *Schema
	ChildField  string
	Cascade     bool
}

// parentLink is the inverse view of a Relationship, held by the child
// schema so it can validate a foreign key on its own insert/update
// without walking every other schema's relationship list.
type parentLink struct {
	parent      *Schema
	parentField string
	childField  string
}

// HasMany registers a one-to-many relationship from s (the parent) to
// child, keyed on parentField == childField. A self-referencing
// relationship is rejected when cascade is true, since a cascading
// delete on s would recurse into s itself with no distinct root to
// terminate at.
func (s *Schema) HasMany(parentField string, child *Schema, childField string, cascade bool) error {
	if cascade && child == s {
		return fmt.Errorf("schema %q: self-referencing cascade relationship is not allowed", s.name)
	}
	s.relationships = append(s.relationships, &Relationship{
		Parent:      s,
		ParentField: parentField,
		Child:       child,
		ChildField:  childField,
		Cascade:     cascade,
	})
	child.parentLinks = append(child.parentLinks, parentLink{
		parent:      s,
		parentField: parentField,
		childField:  childField,
	})
	return nil
}

// GetRelationships returns a copy of s's registered parent-to-child
// relationships.
func (s *Schema) GetRelationships() []*Relationship {
	out := make([]*Relationship, len(s.relationships))
	copy(out, s.relationships)
	return out
}

// relationshipTo returns the relationship s has registered toward child,
// or nil if none exists.
func (s *Schema) relationshipTo(child *Schema) *Relationship {
	for _, rel := range s.relationships {
		if rel.Child == child {
			return rel
		}
	}
	return nil
}

// RemoveRelationship drops the relationship from s to child, on both
// sides of the link.
func (s *Schema) RemoveRelationship(child *Schema) {
	kept := s.relationships[:0]
	for _, rel := range s.relationships {
		if rel.Child != child {
			kept = append(kept, rel)
		}
	}
	s.relationships = kept

	childKept := child.parentLinks[:0]
	for _, link := range child.parentLinks {
		if link.parent != s {
			childKept = append(childKept, link)
		}
	}
	child.parentLinks = childKept
}

// ClearRelationships drops every relationship s has registered as a
// parent, on both sides of each link.
func (s *Schema) ClearRelationships() {
	for _, rel := range s.relationships {
		child := rel.Child
		kept := child.parentLinks[:0]
		for _, link := range child.parentLinks {
			if link.parent != s {
				kept = append(kept, link)
			}
		}
		child.parentLinks = kept
	}
	s.relationships = nil
}

// FindChildren returns every row in child whose ChildField equals
// parentValue, per the relationship s has registered toward child.
func (s *Schema) FindChildren(ctx context.Context, parentValue value.Value, child *Schema) ([]value.Value, error) {
	rel := s.relationshipTo(child)
	if rel == nil {
		return nil, fmt.Errorf("schema %q: no relationship registered toward %q", s.name, child.name)
	}
	return child.table.Search(ctx, query.FieldOp(query.ParsePath(rel.ChildField), query.OpEq, parentValue))
}

// CountChildren returns the number of rows FindChildren would return.
func (s *Schema) CountChildren(ctx context.Context, parentValue value.Value, child *Schema) (int, error) {
	docs, err := s.FindChildren(ctx, parentValue, child)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// HasChildren reports whether child has any row referencing parentValue.
func (s *Schema) HasChildren(ctx context.Context, parentValue value.Value, child *Schema) (bool, error) {
	n, err := s.CountChildren(ctx, parentValue, child)
	return n > 0, err
}

// validateForeignKeys checks, for every parent relationship registered
// against s (as a child), that a non-null reference value in doc
// actually exists in the parent table. A no-op when foreign key checks
// are disabled.
func (s *Schema) validateForeignKeys(ctx context.Context, doc value.Value) error {
	if !s.foreignKeyChecks {
		return nil
	}
	for _, link := range s.parentLinks {
		v, ok := resolvePath(doc, query.ParsePath(link.childField))
		if !ok || v.IsNull() {
			continue
		}
		matches, err := link.parent.table.Search(ctx, query.FieldOp(query.ParsePath(link.parentField), query.OpEq, v))
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return &dberrors.ForeignKeyError{ChildTable: s.name, ChildField: link.childField, Value: valueToAny(v)}
		}
	}
	return nil
}

// Remove deletes every row sel selects, cascading the delete into every
// child schema registered with Cascade=true before removing the parent
// rows themselves. A visited set scoped to this call guards the
// transitive cascade against cyclic table graphs, so it always
// terminates: once a schema has been entered for this delete, a second
// cascade path into it is skipped.
func (s *Schema) Remove(ctx context.Context, sel table.Selector) ([]uint32, error) {
	docs, ids, err := s.matchDocsWithIDs(ctx, sel)
	if err != nil {
		return nil, err
	}

	visited := map[*Schema]bool{s: true}
	for _, doc := range docs {
		for _, rel := range s.relationships {
			if !rel.Cascade {
				continue
			}
			v, ok := resolvePath(doc, query.ParsePath(rel.ParentField))
			if !ok || v.IsNull() {
				continue
			}
			if err := rel.Child.cascadeDelete(ctx, v, rel.ChildField, visited); err != nil {
				return nil, err
			}
		}
	}

	return s.table.Remove(ctx, table.ByIDs(ids...))
}

// cascadeDelete removes every row in s whose childField equals
// parentValue, first recursing into s's own cascading children.
func (s *Schema) cascadeDelete(ctx context.Context, parentValue value.Value, childField string, visited map[*Schema]bool) error {
	if visited[s] {
		return nil
	}
	visited[s] = true

	matches, err := s.table.Search(ctx, query.FieldOp(query.ParsePath(childField), query.OpEq, parentValue))
	if err != nil {
		return err
	}
	for _, doc := range matches {
		for _, rel := range s.relationships {
			if !rel.Cascade {
				continue
			}
			v, ok := resolvePath(doc, query.ParsePath(rel.ParentField))
			if !ok || v.IsNull() {
				continue
			}
			if err := rel.Child.cascadeDelete(ctx, v, rel.ChildField, visited); err != nil {
				return err
			}
		}
	}

	ids := make([]uint32, 0, len(matches))
	for _, doc := range matches {
		if id, ok := docIDOf(doc); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	_, err = s.table.Remove(ctx, table.ByIDs(ids...))
	return err
}

// Truncate deletes every row in s, cascading into every child schema
// registered with Cascade=true first (deepest first), then truncates s
// itself.
func (s *Schema) Truncate(ctx context.Context) error {
	visited := map[*Schema]bool{s: true}
	for _, rel := range s.relationships {
		if rel.Cascade {
			if err := rel.Child.truncateCascade(ctx, visited); err != nil {
				return err
			}
		}
	}
	return s.table.Truncate(ctx)
}

func (s *Schema) truncateCascade(ctx context.Context, visited map[*Schema]bool) error {
	if visited[s] {
		return nil
	}
	visited[s] = true
	for _, rel := range s.relationships {
		if rel.Cascade {
			if err := rel.Child.truncateCascade(ctx, visited); err != nil {
				return err
			}
		}
	}
	return s.table.Truncate(ctx)
}
