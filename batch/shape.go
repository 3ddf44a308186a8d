// Package batch routes a stream of entities into insert/update/upsert
// statement shapes, groups them into bounded partitions and executes each
// partition as one batched statement against a store. It composes the dirty
// checker and the partitioner; everything touching SQL lives behind the
// Executor interface.
package batch

import (
	"strings"

	"github.com/mevdschee/tqentity/dirty"
)

// Op is the statement kind of a shape.
type Op int

const (
	// OpNone marks a clean row: no statement is executed, the key is still
	// reported as a result.
	OpNone Op = iota
	// OpInsert is a plain insert.
	OpInsert
	// OpUpsert is a dialect-native insert-or-update.
	OpUpsert
	// OpUpdate is an update targeting a specific column subset.
	OpUpdate
	// OpUpdateAll is an update targeting every updatable column.
	OpUpdateAll
	// OpDelete is a delete by primary key.
	OpDelete
)

// String returns the label used in errors and metrics.
func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpsert:
		return "upsert"
	case OpUpdate:
		return "update"
	case OpUpdateAll:
		return "update_all"
	case OpDelete:
		return "delete"
	}
	return "none"
}

// Shape identifies one generated statement: the operation plus the canonical
// column list it updates. Shapes are comparable and serve both as partition
// keys and as the per-run prepared statement cache key. An empty column list
// means the full updatable column set.
type Shape struct {
	Op      Op
	Columns string
}

// ShapeFor derives the shape for a resolved dirty column set. The column
// sets are memoized by the checker per bit pattern, so the canonical string
// is computed once per distinct pattern in practice.
func ShapeFor(op Op, set *dirty.ColumnSet) Shape {
	if set == nil {
		return Shape{Op: op}
	}
	return Shape{Op: op, Columns: strings.Join(set.Columns, ",")}
}

// ColumnList returns the shape's update columns, nil for the full set.
func (s Shape) ColumnList() []string {
	if s.Columns == "" {
		return nil
	}
	return strings.Split(s.Columns, ",")
}

// String formats the shape for diagnostics.
func (s Shape) String() string {
	if s.Columns == "" {
		return s.Op.String()
	}
	return s.Op.String() + "(" + s.Columns + ")"
}
