package schema

import (
	"context"

	"github.com/Aman-CERP/bmdb/internal/dberrors"
	"github.com/Aman-CERP/bmdb/internal/index"
	"github.com/Aman-CERP/bmdb/internal/query"
	"github.com/Aman-CERP/bmdb/internal/table"
	"github.com/Aman-CERP/bmdb/internal/value"
)

type compoundGroup struct {
	name   string
	fields []string
}

// VectorField declares a fixed-dimension vector field wired into the
// index manager's HNSW index, per spec.md §4.K's vector-field addition.
type VectorField struct {
	Name              string
	Dimensions        int
	DistanceAlgorithm string
}

// Schema wraps a Table with field-type validation, unique/compound-unique
// constraints, vector-field declarations, and parent/child relationships,
// per spec.md §3/§4.K. Registration methods (RequireField, Unique, ...)
// are meant to run once at setup, before concurrent Insert/Update/Remove
// traffic begins — they are not guarded by their own mutex, mirroring the
// one-time registration style spec.md's schema section describes.
type Schema struct {
	name  string
	table *table.Table
	index *index.Manager

	fields           []FieldSpec
	primaryKey       string
	uniqueFields     []string
	compoundGroups   map[string]compoundGroup
	vectorFields     map[string]VectorField
	foreignKeyChecks bool
	relationships    []*Relationship
	parentLinks      []parentLink
}

// NewSchema wraps tbl, validating and constraining every document that
// passes through it. idx may be nil if tbl was built without an index
// manager (vector-field registration is then a no-op).
func NewSchema(name string, tbl *table.Table, idx *index.Manager, foreignKeyChecks bool) *Schema {
	return &Schema{
		name:             name,
		table:            tbl,
		index:            idx,
		compoundGroups:   make(map[string]compoundGroup),
		vectorFields:     make(map[string]VectorField),
		foreignKeyChecks: foreignKeyChecks,
	}
}

// Name returns the schema's table name.
func (s *Schema) Name() string { return s.name }

// Table returns the underlying Table, for callers that need the raw
// unconstrained CRUD surface (e.g. maintenance tooling).
func (s *Schema) Table() *table.Table { return s.table }

// RequireField registers a validation rule for path, checked on every
// insert and the post-merge result of every update.
func (s *Schema) RequireField(path string, t FieldType, required bool) *Schema {
	s.fields = append(s.fields, FieldSpec{Path: path, Type: t, Required: required})
	return s
}

// SetPrimaryKey marks field as the schema's primary key: implicitly
// unique and required.
func (s *Schema) SetPrimaryKey(field string) *Schema {
	s.primaryKey = field
	return s.Unique(field).RequireField(field, TypeAny, true)
}

// Unique registers field as a single-field unique constraint. Null values
// are exempt (spec.md's "no duplicates on non-null values" rule).
func (s *Schema) Unique(field string) *Schema {
	for _, f := range s.uniqueFields {
		if f == field {
			return s
		}
	}
	s.uniqueFields = append(s.uniqueFields, field)
	return s
}

// CompoundUnique registers a named, ordered group of fields whose tuple
// must be unique whenever every component is non-null.
func (s *Schema) CompoundUnique(name string, fields ...string) *Schema {
	s.compoundGroups[name] = compoundGroup{name: name, fields: fields}
	return s
}

// DeclareVectorField registers name as holding fixed-dimension float
// vectors, wiring it into the index manager's HNSW index (component M)
// under the given distance algorithm. For storage/serialization purposes
// a vector field is an ordinary array field; this only adds the
// dimension-match validation and index registration.
func (s *Schema) DeclareVectorField(name string, dimensions int, distanceAlgorithm string) *Schema {
	vf := VectorField{Name: name, Dimensions: dimensions, DistanceAlgorithm: distanceAlgorithm}
	s.vectorFields[name] = vf
	if s.index != nil {
		s.index.RegisterVectorField(name, index.VectorConfig{
			Dimensions:        dimensions,
			DistanceAlgorithm: distanceAlgorithm,
		})
	}
	return s
}

// DeclareTextField marks name as having a Bleve full-text index
// (component L), so matches_text(name, query) routes to it instead of
// scan-and-filter. A text-indexed field remains an ordinary string field
// for storage/serialization and validation purposes.
func (s *Schema) DeclareTextField(name string) *Schema {
	if s.index != nil {
		s.index.RegisterTextField(name)
	}
	return s
}

func (s *Schema) uniqueFieldNames() []string {
	seen := make(map[string]bool, len(s.uniqueFields))
	out := make([]string, 0, len(s.uniqueFields))
	for _, f := range s.uniqueFields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// validateFields checks doc against every registered FieldSpec and
// vector-field dimension rule.
func (s *Schema) validateFields(doc value.Value) error {
	for _, f := range s.fields {
		v, ok := resolvePath(doc, query.ParsePath(f.Path))
		if !ok || v.IsNull() {
			if f.Required {
				return &dberrors.ValidationError{Path: f.Path, Reason: "required field is missing"}
			}
			continue
		}
		if !checkType(v, f.Type) {
			return &dberrors.ValidationError{Path: f.Path, Reason: "expected " + f.Type.String() + ", got " + v.Kind().String()}
		}
	}
	for name, vf := range s.vectorFields {
		v, ok := resolvePath(doc, query.ParsePath(name))
		if !ok || v.IsNull() {
			continue // vector fields are optional unless also required via RequireField
		}
		arr, ok := v.AsArray()
		if !ok {
			return &dberrors.ValidationError{Path: name, Reason: "expected a vector array"}
		}
		if len(arr) != vf.Dimensions {
			return &dberrors.ValidationError{Path: name, Reason: "vector has wrong dimensions"}
		}
		for _, e := range arr {
			if _, ok := e.AsNumber(); !ok {
				return &dberrors.ValidationError{Path: name, Reason: "vector element is not numeric"}
			}
		}
	}
	return nil
}

// checkConstraints enforces single-field and compound unique constraints
// against doc, excluding the document whose id is excludeID (for updates
// checking against their own prior state).
func (s *Schema) checkConstraints(ctx context.Context, doc value.Value, excludeID *uint32) error {
	for _, f := range s.uniqueFieldNames() {
		v, ok := resolvePath(doc, query.ParsePath(f))
		if !ok || v.IsNull() {
			continue
		}
		matches, err := s.table.Search(ctx, query.FieldOp(query.ParsePath(f), query.OpEq, v))
		if err != nil {
			return err
		}
		for _, m := range matches {
			id, _ := docIDOf(m)
			if excludeID != nil && id == *excludeID {
				continue
			}
			return &dberrors.UniqueConstraintError{Field: f, Value: valueToAny(v)}
		}
	}

	for name, grp := range s.compoundGroups {
		vals := make([]value.Value, len(grp.fields))
		anyNull := false
		for i, f := range grp.fields {
			v, ok := resolvePath(doc, query.ParsePath(f))
			if !ok || v.IsNull() {
				anyNull = true
				break
			}
			vals[i] = v
		}
		if anyNull {
			continue
		}
		preds := make([]query.Predicate, len(grp.fields))
		for i, f := range grp.fields {
			preds[i] = query.FieldOp(query.ParsePath(f), query.OpEq, vals[i])
		}
		matches, err := s.table.Search(ctx, query.And(preds...))
		if err != nil {
			return err
		}
		for _, m := range matches {
			id, _ := docIDOf(m)
			if excludeID != nil && id == *excludeID {
				continue
			}
			return &dberrors.CompoundUniqueError{GroupName: name, Fields: grp.fields, Values: valuesToAny(vals)}
		}
	}
	return nil
}

// matchDocsWithIDs resolves sel against the underlying table, returning
// matched bodies (with docId synthesized) alongside their ids in the same
// order.
func (s *Schema) matchDocsWithIDs(ctx context.Context, sel table.Selector) ([]value.Value, []uint32, error) {
	var docs []value.Value
	var err error
	if sel.IDs != nil {
		for _, id := range sel.IDs {
			d, ok, gerr := s.table.Get(ctx, id)
			if gerr != nil {
				return nil, nil, gerr
			}
			if ok {
				docs = append(docs, d)
			}
		}
	} else {
		docs, err = s.table.Search(ctx, sel.Query)
		if err != nil {
			return nil, nil, err
		}
	}
	ids := make([]uint32, len(docs))
	for i, d := range docs {
		id, _ := docIDOf(d)
		ids[i] = id
	}
	return docs, ids, nil
}

// Insert validates doc, checks every constraint and (if enabled) foreign
// key reference, then delegates to the underlying table.
func (s *Schema) Insert(ctx context.Context, doc value.Value) (uint32, error) {
	if err := s.validateFields(doc); err != nil {
		return 0, err
	}
	if err := s.checkConstraints(ctx, doc, nil); err != nil {
		return 0, err
	}
	if err := s.validateForeignKeys(ctx, doc); err != nil {
		return 0, err
	}
	return s.table.Insert(ctx, doc)
}

// Update applies mutator to every document sel selects, validating and
// constraint-checking each mutated result before writing any of them:
// the whole call aborts on the first violation, leaving the table
// untouched.
func (s *Schema) Update(ctx context.Context, mutator table.Mutator, sel table.Selector) ([]uint32, error) {
	docs, ids, err := s.matchDocsWithIDs(ctx, sel)
	if err != nil {
		return nil, err
	}

	type planned struct {
		id   uint32
		body value.Value
	}
	plan := make([]planned, 0, len(docs))
	for i, d := range docs {
		id := ids[i]
		updated := mutator(value.Clone(d))
		if err := s.validateFields(updated); err != nil {
			return nil, err
		}
		if err := s.checkConstraints(ctx, updated, &id); err != nil {
			return nil, err
		}
		if err := s.validateForeignKeys(ctx, updated); err != nil {
			return nil, err
		}
		plan = append(plan, planned{id: id, body: updated})
	}

	touched := make([]uint32, 0, len(plan))
	for _, p := range plan {
		body := p.body
		if _, err := s.table.Update(ctx, func(value.Value) value.Value { return body }, table.ByIDs(p.id)); err != nil {
			return touched, err
		}
		touched = append(touched, p.id)
	}
	return touched, nil
}

// UpdateFields merges fields into every document sel selects.
func (s *Schema) UpdateFields(ctx context.Context, fields value.Value, sel table.Selector) ([]uint32, error) {
	return s.Update(ctx, func(body value.Value) value.Value { return table.MergeFields(body, fields) }, sel)
}

// Upsert merges doc's fields into every document sel matches, validating
// the merged result per match; if none match, it validates and inserts
// doc as a new document.
func (s *Schema) Upsert(ctx context.Context, doc value.Value, sel table.Selector) (uint32, error) {
	if err := s.validateFields(doc); err != nil {
		return 0, err
	}
	docs, ids, err := s.matchDocsWithIDs(ctx, sel)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		if err := s.checkConstraints(ctx, doc, nil); err != nil {
			return 0, err
		}
		if err := s.validateForeignKeys(ctx, doc); err != nil {
			return 0, err
		}
		return s.table.Upsert(ctx, doc, sel)
	}

	for i, body := range docs {
		id := ids[i]
		merged := table.MergeFields(body, doc)
		if err := s.validateFields(merged); err != nil {
			return 0, err
		}
		if err := s.checkConstraints(ctx, merged, &id); err != nil {
			return 0, err
		}
		if err := s.validateForeignKeys(ctx, merged); err != nil {
			return 0, err
		}
	}
	return s.table.Upsert(ctx, doc, sel)
}
