// Package entity defines the persistence contracts the write engine operates
// on: keyed records, per-field accessors and the comparison strategy used for
// dirty checking. Field access goes through explicit accessor functions so the
// engine never depends on a concrete reflection mechanism.
package entity

import "reflect"

// Entity is any value a Descriptor knows how to read fields from. Entities
// are treated as immutable: the engine only reads them.
type Entity = any

// Key identifies a persisted entity. Keys are compared with ==, so the
// dynamic type must be comparable (string, int64, uuid string, ...).
type Key = any

// FieldValue is the value of a single entity field as returned by an Accessor.
type FieldValue = any

// Keyed is implemented by entity-typed field values. The comparator compares
// such values by key only, never by structure.
type Keyed interface {
	EntityKey() Key
}

// Equaler lets a non-comparable field value define semantic equality for the
// value comparison strategy.
type Equaler interface {
	Equal(other any) bool
}

// Accessor reads one field from an entity.
type Accessor func(e Entity) FieldValue

// Field describes one mapped field of an entity type.
type Field struct {
	Name      string   // field name in the source type
	Column    string   // database column name
	Get       Accessor // field reader
	Updatable bool     // false for immutable columns (created_at, ...)
}

// KeyMode is the primary key generation strategy of an entity type.
type KeyMode int

const (
	// KeyAssigned means the caller assigns keys before insert.
	KeyAssigned KeyMode = iota
	// KeyAuto means the database generates keys (auto-increment/serial).
	KeyAuto
	// KeyUUID means the store generates a UUID key for keyless rows.
	KeyUUID
)

// Descriptor describes how one entity type maps to a table. The field order
// is fixed for the lifetime of the descriptor; dirty checking and statement
// shapes both depend on it.
type Descriptor struct {
	Table   string
	Key     Field   // primary key, never updatable
	Fields  []Field // non-key fields in mapping order
	Version *Field  // optimistic lock column (int64 values), nil if none
	KeyMode KeyMode
}

// KeyOf returns the primary key value of e.
func (d *Descriptor) KeyOf(e Entity) Key {
	return d.Key.Get(e)
}

// HasKey reports whether e carries a non-zero primary key, meaning it has
// been (or claims to have been) persisted before.
func (d *Descriptor) HasKey(e Entity) bool {
	k := d.Key.Get(e)
	if k == nil {
		return false
	}
	return !reflect.ValueOf(k).IsZero()
}

// Updatable returns the updatable non-key fields in mapping order. The
// version field, when configured, is not part of this list; it is appended
// to resolved column sets by the dirty checker.
func (d *Descriptor) Updatable() []Field {
	fields := make([]Field, 0, len(d.Fields))
	for _, f := range d.Fields {
		if !f.Updatable {
			continue
		}
		if d.Version != nil && f.Column == d.Version.Column {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

// Columns returns all mapped column names: key first, then fields in
// mapping order.
func (d *Descriptor) Columns() []string {
	cols := make([]string, 0, len(d.Fields)+1)
	cols = append(cols, d.Key.Column)
	for _, f := range d.Fields {
		cols = append(cols, f.Column)
	}
	return cols
}

// Same reports whether a and b are the same object. Only reference kinds
// have identity; distinct values of value types always report false here and
// fall through to field comparison.
func Same(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va := reflect.ValueOf(a)
	vb := reflect.ValueOf(b)
	if va.Kind() != vb.Kind() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Len() == vb.Len() && va.Len() > 0 && va.Pointer() == vb.Pointer()
	}
	return false
}
