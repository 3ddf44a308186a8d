// Package dirty decides, for each entity mutation, whether a write is
// necessary and which columns it must include. The checker compares a
// candidate entity against the last-observed snapshot of the same row and
// memoizes resolved column sets per changed-field bit pattern.
package dirty

import (
	"errors"
	"fmt"

	"github.com/mevdschee/tqentity/entity"
)

// Granularity controls how precise the dirty check is.
type Granularity int

const (
	// GranularityOff disables comparison: every write targets every column.
	GranularityOff Granularity = iota
	// GranularityEntity produces a binary clean/dirty verdict per row.
	GranularityEntity
	// GranularityField produces the precise subset of changed columns.
	GranularityField
)

// String returns the config spelling of the granularity.
func (g Granularity) String() string {
	switch g {
	case GranularityEntity:
		return "entity"
	case GranularityField:
		return "field"
	}
	return "off"
}

// Kind is the outcome class of a classification.
type Kind int

const (
	// Clean means nothing changed; the write is skipped entirely.
	Clean Kind = iota
	// AllDirty means every updatable column must be written.
	AllDirty
	// Columns means only the verdict's column set must be written.
	Columns
)

// ColumnSet is an ordered set of column names resolved from a changed-field
// bit pattern. Sets are memoized per checker: repeated classifications with
// the same changed fields return the same *ColumnSet, so the set pointer is
// usable as a statement-shape cache key.
type ColumnSet struct {
	Columns []string
	bits    uint64
}

// Signature returns the changed-field bit pattern the set was resolved from.
func (s *ColumnSet) Signature() uint64 { return s.bits }

// Verdict is the result of classifying one entity.
type Verdict struct {
	Kind    Kind
	Columns *ColumnSet // set only for Kind == Columns
}

// ErrTooManyFields is returned when an entity type has more updatable fields
// than the bit-pattern memoization supports.
var ErrTooManyFields = errors.New("dirty: entity type exceeds 64 updatable fields")

// Checker classifies entity mutations for one entity type. A checker is
// scoped to one repository/session and is not safe for concurrent use; the
// shape table grows with the number of distinct changed-field patterns and
// is never evicted.
type Checker struct {
	granularity Granularity
	strategy    entity.Strategy
	fields      []entity.Field
	version     *entity.Field
	shapes      map[uint64]*ColumnSet
}

// NewChecker creates a checker for the given descriptor.
func NewChecker(desc *entity.Descriptor, granularity Granularity, strategy entity.Strategy) (*Checker, error) {
	fields := desc.Updatable()
	if len(fields) > 64 {
		return nil, fmt.Errorf("%w: %s has %d", ErrTooManyFields, desc.Table, len(fields))
	}
	return &Checker{
		granularity: granularity,
		strategy:    strategy,
		fields:      fields,
		version:     desc.Version,
		shapes:      make(map[uint64]*ColumnSet),
	}, nil
}

// Granularity returns the configured granularity.
func (c *Checker) Granularity() Granularity { return c.granularity }

// Classify compares a candidate entity against the last-observed snapshot of
// the same row. A nil snapshot means the row was never observed in this unit
// of work and every column must be written.
func (c *Checker) Classify(e entity.Entity, snapshot entity.Entity) Verdict {
	if c.granularity == GranularityOff {
		return Verdict{Kind: AllDirty}
	}
	if snapshot == nil {
		return Verdict{Kind: AllDirty}
	}
	if entity.Same(e, snapshot) {
		// Identity fast path: the cache handed back the object we are
		// about to write, so nothing can have changed.
		return Verdict{Kind: Clean}
	}
	if c.granularity == GranularityEntity {
		for _, f := range c.fields {
			if !entity.FieldsEqual(f.Get(e), f.Get(snapshot), c.strategy) {
				return Verdict{Kind: AllDirty}
			}
		}
		return Verdict{Kind: Clean}
	}
	var bits uint64
	for i, f := range c.fields {
		if !entity.FieldsEqual(f.Get(e), f.Get(snapshot), c.strategy) {
			bits |= 1 << uint(i)
		}
	}
	if bits == 0 {
		// A distinct instance with identical content is still clean.
		return Verdict{Kind: Clean}
	}
	return Verdict{Kind: Columns, Columns: c.resolve(bits)}
}

// resolve maps a changed-field bit pattern to its column set, including the
// version column when one is configured. Optimistic locking requires bumping
// the version on every actual write no matter which business fields changed.
func (c *Checker) resolve(bits uint64) *ColumnSet {
	if set, ok := c.shapes[bits]; ok {
		return set
	}
	cols := make([]string, 0, len(c.fields)+1)
	for i, f := range c.fields {
		if bits&(1<<uint(i)) != 0 {
			cols = append(cols, f.Column)
		}
	}
	if c.version != nil {
		cols = append(cols, c.version.Column)
	}
	set := &ColumnSet{Columns: cols, bits: bits}
	c.shapes[bits] = set
	return set
}
