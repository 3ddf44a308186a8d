package entity

import "reflect"

// Strategy selects how the comparator decides that two field values differ.
type Strategy int

const (
	// CompareInstance treats non-identical references as different. Primitive
	// values still compare by value, entity-typed values by key.
	CompareInstance Strategy = iota
	// CompareValue falls back to semantic equality before declaring a
	// difference.
	CompareValue
)

// String returns the config spelling of the strategy.
func (s Strategy) String() string {
	if s == CompareValue {
		return "value"
	}
	return "instance"
}

// FieldsEqual reports whether two field values are unchanged under the given
// strategy.
//
// The rules, in order:
//   - identical references are always equal, regardless of strategy
//   - a nil value, typed or untyped, equals only another nil
//   - two entity-typed values compare by key only, regardless of strategy;
//     a changed nested entity does not mark the containing field dirty
//   - under CompareInstance, primitives compare by value and everything else
//     by identity
//   - under CompareValue, comparable values fall back to ==, then to Equaler
//
// A composite non-entity value is compared as one opaque unit, never field
// by field. A change anywhere inside it marks the whole column dirty.
func FieldsEqual(a, b FieldValue, strategy Strategy) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if Same(a, b) {
		return true
	}
	// A nil pointer still satisfies Keyed; catch it before the keyed
	// comparison so EntityKey is never called on a nil receiver.
	if na, nb := typedNil(a), typedNil(b); na || nb {
		return na && nb
	}
	ka, aKeyed := a.(Keyed)
	kb, bKeyed := b.(Keyed)
	if aKeyed && bKeyed {
		return ka.EntityKey() == kb.EntityKey()
	}
	if aKeyed != bKeyed {
		return false
	}
	if primitive(a) && primitive(b) {
		return a == b
	}
	if strategy == CompareInstance {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta == reflect.TypeOf(b) && ta.Comparable() {
		return a == b
	}
	if eq, ok := a.(Equaler); ok {
		return eq.Equal(b)
	}
	return false
}

// typedNil reports whether v is a nil value boxed in a non-nil interface.
func typedNil(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// primitive reports whether v has a primitive dynamic type.
func primitive(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	}
	return false
}
