package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bmdb/internal/query"
	"github.com/Aman-CERP/bmdb/internal/value"
)

// queryFlags builds a query.Predicate from flag-based leaves, since bmdb
// has no string query-language parser: every leaf the caller gives is
// ANDed together.
type queryFlags struct {
	fieldOps []string // "path=op=value", e.g. "age=gt=30"
	text     string   // "path=query"
}

func addQueryFlags(cmd *cobra.Command, f *queryFlags) {
	cmd.Flags().StringArrayVar(&f.fieldOps, "where", nil,
		`Field comparison as "path=op=value" (op one of eq ne lt le gt ge < > exists), repeatable`)
	cmd.Flags().StringVar(&f.text, "text", "", `Full-text match as "path=query"`)
}

func (f *queryFlags) build() (query.Predicate, error) {
	var leaves []query.Predicate

	for _, spec := range f.fieldOps {
		leaf, err := parseFieldOp(spec)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, leaf)
	}

	if f.text != "" {
		path, q, ok := strings.Cut(f.text, "=")
		if !ok {
			return nil, fmt.Errorf(`--text must be "path=query", got %q`, f.text)
		}
		leaves = append(leaves, query.MatchesText(query.ParsePath(path), q))
	}

	switch len(leaves) {
	case 0:
		return nil, nil
	case 1:
		return leaves[0], nil
	default:
		return query.And(leaves...), nil
	}
}

func parseFieldOp(spec string) (query.Predicate, error) {
	parts := strings.SplitN(spec, "=", 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf(`--where must be "path=op[=value]", got %q`, spec)
	}
	path := query.ParsePath(parts[0])
	opStr := parts[1]

	if opStr == "exists" {
		return query.FieldOp(path, query.OpExists, value.Null()), nil
	}
	if len(parts) != 3 {
		return nil, fmt.Errorf(`--where %q: op %q requires a value`, spec, opStr)
	}
	op, err := parseOp(opStr)
	if err != nil {
		return nil, err
	}
	return query.FieldOp(path, op, parseScalar(parts[2])), nil
}

func parseOp(s string) (query.Op, error) {
	switch s {
	case "=", "eq":
		return query.OpEq, nil
	case "!=", "ne":
		return query.OpNe, nil
	case "<", "lt":
		return query.OpLt, nil
	case "<=", "le":
		return query.OpLe, nil
	case ">", "gt":
		return query.OpGt, nil
	case ">=", "ge":
		return query.OpGe, nil
	default:
		return 0, fmt.Errorf("unknown op %q (want eq, ne, lt, le, gt, ge, <, >, exists)", s)
	}
}

// parseScalar guesses a value.Value's kind from a raw CLI string: integer,
// float, bool, or string, in that order.
func parseScalar(s string) value.Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Float(f)
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return value.Bool(b)
	}
	return value.String(s)
}
