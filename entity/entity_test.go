package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	id      int64
	name    string
	active  bool
	version int64
}

func userDescriptor() *Descriptor {
	version := Field{
		Name:      "version",
		Column:    "version",
		Get:       func(e Entity) FieldValue { return e.(*user).version },
		Updatable: true,
	}
	return &Descriptor{
		Table: "users",
		Key: Field{
			Name:   "id",
			Column: "id",
			Get:    func(e Entity) FieldValue { return e.(*user).id },
		},
		Fields: []Field{
			{Name: "name", Column: "name", Get: func(e Entity) FieldValue { return e.(*user).name }, Updatable: true},
			{Name: "active", Column: "active", Get: func(e Entity) FieldValue { return e.(*user).active }, Updatable: true},
			version,
		},
		Version: &version,
		KeyMode: KeyAssigned,
	}
}

func TestDescriptor_KeyOf(t *testing.T) {
	d := userDescriptor()
	assert.Equal(t, int64(42), d.KeyOf(&user{id: 42}))
}

func TestDescriptor_HasKey(t *testing.T) {
	d := userDescriptor()
	assert.True(t, d.HasKey(&user{id: 1}))
	assert.False(t, d.HasKey(&user{}))
}

func TestDescriptor_HasKeyNil(t *testing.T) {
	d := &Descriptor{
		Table: "t",
		Key:   Field{Column: "id", Get: func(e Entity) FieldValue { return nil }},
	}
	assert.False(t, d.HasKey(struct{}{}))
}

// The version field is excluded from the updatable list; the dirty checker
// appends its column to every resolved set instead.
func TestDescriptor_Updatable(t *testing.T) {
	d := userDescriptor()
	fields := d.Updatable()
	require.Len(t, fields, 2)
	assert.Equal(t, "name", fields[0].Column)
	assert.Equal(t, "active", fields[1].Column)
}

func TestDescriptor_Columns(t *testing.T) {
	d := userDescriptor()
	assert.Equal(t, []string{"id", "name", "active", "version"}, d.Columns())
}
