package schema

import (
	"github.com/Aman-CERP/bmdb/internal/msgpack"
	"github.com/Aman-CERP/bmdb/internal/value"
)

// Export serializes s's constraint and relationship metadata (not its
// documents) into a Value, for the schema side-table spec.md §4.K
// requires so relationships survive a restart. Relationships are
// recorded by the child's table name rather than a live pointer, since a
// pointer can't outlive this process.
func (s *Schema) Export() value.Value {
	m := value.NewMap()
	m.Set("name", value.String(s.name))
	m.Set("primaryKey", value.String(s.primaryKey))
	m.Set("foreignKeyChecks", value.Bool(s.foreignKeyChecks))

	fields := make([]value.Value, len(s.fields))
	for i, f := range s.fields {
		fm := value.NewMap()
		fm.Set("path", value.String(f.Path))
		fm.Set("type", value.Int(int64(f.Type)))
		fm.Set("required", value.Bool(f.Required))
		fields[i] = value.FromMap(fm)
	}
	m.Set("fields", value.ArrayFrom(fields))

	unique := make([]value.Value, len(s.uniqueFields))
	for i, f := range s.uniqueFields {
		unique[i] = value.String(f)
	}
	m.Set("uniqueFields", value.ArrayFrom(unique))

	groups := make([]value.Value, 0, len(s.compoundGroups))
	for _, g := range s.compoundGroups {
		gm := value.NewMap()
		gm.Set("name", value.String(g.name))
		fieldVals := make([]value.Value, len(g.fields))
		for i, f := range g.fields {
			fieldVals[i] = value.String(f)
		}
		gm.Set("fields", value.ArrayFrom(fieldVals))
		groups = append(groups, value.FromMap(gm))
	}
	m.Set("compoundGroups", value.ArrayFrom(groups))

	vectors := make([]value.Value, 0, len(s.vectorFields))
	for _, vf := range s.vectorFields {
		vm := value.NewMap()
		vm.Set("name", value.String(vf.Name))
		vm.Set("dimensions", value.Int(int64(vf.Dimensions)))
		vm.Set("distanceAlgorithm", value.String(vf.DistanceAlgorithm))
		vectors = append(vectors, value.FromMap(vm))
	}
	m.Set("vectorFields", value.ArrayFrom(vectors))

	rels := make([]value.Value, len(s.relationships))
	for i, rel := range s.relationships {
		rm := value.NewMap()
		rm.Set("parentField", value.String(rel.ParentField))
		rm.Set("childTable", value.String(rel.Child.name))
		rm.Set("childField", value.String(rel.ChildField))
		rm.Set("cascade", value.Bool(rel.Cascade))
		rels[i] = value.FromMap(rm)
	}
	m.Set("relationships", value.ArrayFrom(rels))

	return value.FromMap(m)
}

// Marshal encodes s's metadata to MessagePack bytes for the schema
// side-table.
func (s *Schema) Marshal() ([]byte, error) {
	return msgpack.Encode(s.Export())
}

// RelationshipRef is a relationship as decoded from persisted metadata,
// before it has been re-linked to a live *Schema.
type RelationshipRef struct {
	ParentField string
	ChildTable  string
	ChildField  string
	Cascade     bool
}

// DecodeRelationships reads back the relationships recorded by Export,
// without needing a live Schema. A caller that has opened every table's
// Schema (e.g. during startup) uses the ChildTable name to look up the
// corresponding *Schema and re-establish the link via HasMany.
func DecodeRelationships(data []byte) ([]RelationshipRef, error) {
	v, err := msgpack.Decode(data)
	if err != nil {
		return nil, err
	}
	mp, ok := v.AsMap()
	if !ok {
		return nil, nil
	}
	relsVal, ok := mp.Get("relationships")
	if !ok {
		return nil, nil
	}
	arr, ok := relsVal.AsArray()
	if !ok {
		return nil, nil
	}
	out := make([]RelationshipRef, 0, len(arr))
	for _, item := range arr {
		im, ok := item.AsMap()
		if !ok {
			continue
		}
		ref := RelationshipRef{}
		if pf, ok := im.Get("parentField"); ok {
			ref.ParentField, _ = pf.AsString()
		}
		if ct, ok := im.Get("childTable"); ok {
			ref.ChildTable, _ = ct.AsString()
		}
		if cf, ok := im.Get("childField"); ok {
			ref.ChildField, _ = cf.AsString()
		}
		if c, ok := im.Get("cascade"); ok {
			ref.Cascade, _ = c.AsBool()
		}
		out = append(out, ref)
	}
	return out, nil
}
