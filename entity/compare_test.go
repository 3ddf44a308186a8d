package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type group struct {
	id   int64
	name string
}

func (g *group) EntityKey() Key { return g.id }

type money struct {
	amount   int64
	currency string
}

type tags []string

func (t tags) Equal(other any) bool {
	o, ok := other.(tags)
	if !ok || len(o) != len(t) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

func TestFieldsEqual_IdenticalReference(t *testing.T) {
	g := &group{id: 1, name: "admins"}
	assert.True(t, FieldsEqual(g, g, CompareInstance))
	assert.True(t, FieldsEqual(g, g, CompareValue))
}

func TestFieldsEqual_Nil(t *testing.T) {
	assert.True(t, FieldsEqual(nil, nil, CompareInstance))
	assert.False(t, FieldsEqual(nil, "x", CompareInstance))
	assert.False(t, FieldsEqual("x", nil, CompareValue))
}

func TestFieldsEqual_Primitives(t *testing.T) {
	assert.True(t, FieldsEqual("Alice", "Alice", CompareInstance))
	assert.True(t, FieldsEqual(int64(42), int64(42), CompareInstance))
	assert.False(t, FieldsEqual(false, true, CompareInstance))
	assert.False(t, FieldsEqual("Alice", "Bob", CompareValue))
}

// Entities compare by key only, under both strategies. A changed nested
// entity must not mark the containing field dirty.
func TestFieldsEqual_EntityByKey(t *testing.T) {
	a := &group{id: 7, name: "admins"}
	b := &group{id: 7, name: "renamed"}
	c := &group{id: 8, name: "admins"}

	assert.True(t, FieldsEqual(a, b, CompareInstance))
	assert.True(t, FieldsEqual(a, b, CompareValue))
	assert.False(t, FieldsEqual(a, c, CompareInstance))
	assert.False(t, FieldsEqual(a, c, CompareValue))
}

// A nullable entity-typed field carries a typed-nil pointer that still
// satisfies Keyed. Comparing it must never call EntityKey on the nil
// receiver.
func TestFieldsEqual_TypedNilEntity(t *testing.T) {
	var none *group
	live := &group{id: 7, name: "admins"}

	assert.False(t, FieldsEqual(none, live, CompareInstance))
	assert.False(t, FieldsEqual(none, live, CompareValue))
	assert.False(t, FieldsEqual(live, none, CompareValue))
	assert.True(t, FieldsEqual(none, none, CompareValue))

	var other *group
	assert.True(t, FieldsEqual(none, other, CompareValue))
}

func TestFieldsEqual_EntityAgainstPlainValue(t *testing.T) {
	g := &group{id: 1}
	assert.False(t, FieldsEqual(g, "1", CompareValue))
}

func TestFieldsEqual_InstanceNoDeepComparison(t *testing.T) {
	a := money{amount: 100, currency: "EUR"}
	b := money{amount: 100, currency: "EUR"}

	// Distinct composite values are dirty under instance comparison even
	// when their content matches.
	assert.False(t, FieldsEqual(a, b, CompareInstance))
	assert.True(t, FieldsEqual(a, b, CompareValue))
}

func TestFieldsEqual_ValueEqualer(t *testing.T) {
	a := tags{"red", "blue"}
	b := tags{"red", "blue"}
	c := tags{"red"}

	assert.False(t, FieldsEqual(a, b, CompareInstance))
	assert.True(t, FieldsEqual(a, b, CompareValue))
	assert.False(t, FieldsEqual(a, c, CompareValue))
}

func TestFieldsEqual_NonComparableWithoutEqualer(t *testing.T) {
	a := []byte{1, 2}
	b := []byte{1, 2}

	// No semantic equality available: conservatively dirty.
	assert.False(t, FieldsEqual(a, b, CompareValue))
	// Same backing array is the same object.
	assert.True(t, FieldsEqual(a, a, CompareValue))
}

func TestSame(t *testing.T) {
	g := &group{id: 1}
	assert.True(t, Same(g, g))
	assert.False(t, Same(g, &group{id: 1}))
	assert.False(t, Same("a", "a")) // value types have no identity
	assert.True(t, Same(nil, nil))
	assert.False(t, Same(g, nil))
}
