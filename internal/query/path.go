package query

import "strings"

// Path is a dotted field path resolved against a document's map
// structure, segment by segment.
type Path []string

// ParsePath splits a dotted path string ("a.b.c") into segments. An empty
// string yields an empty Path, which resolves to the document root.
func ParsePath(dotted string) Path {
	if dotted == "" {
		return nil
	}
	return strings.Split(dotted, ".")
}

func (p Path) String() string {
	return strings.Join(p, ".")
}
