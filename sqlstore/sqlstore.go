// Package sqlstore executes batch statement shapes against database/sql.
// One prepared statement is built per shape and reused for every chunk of
// that shape; rows are bound and executed individually so each one gets its
// own affected-row count. MySQL, PostgreSQL and SQLite dialects are
// supported, including their native upsert forms.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/mevdschee/tqentity/batch"
	"github.com/mevdschee/tqentity/entity"
)

// ErrDuplicateKey is the match target for unique constraint violations,
// normalized across drivers.
var ErrDuplicateKey = errors.New("sqlstore: duplicate key")

// Store implements batch.Executor on top of a database/sql handle.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New builds a store for the given handle and dialect.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// SupportsUpsert reports whether the dialect has a usable native upsert for
// the key mode. With generated keys only PostgreSQL qualifies: RETURNING
// yields the key for inserted and updated rows alike, while LastInsertId is
// not reliable across the insert-or-update branches of the other dialects.
func (s *Store) SupportsUpsert(mode entity.KeyMode) bool {
	if mode == entity.KeyAuto {
		return s.dialect == Postgres
	}
	return true
}

// Prepare builds the SQL for the shape and prepares it once. The returned
// statement is bound to the shape's column set and caches generated keys
// across Exec calls.
func (s *Store) Prepare(desc *entity.Descriptor, shape batch.Shape) (batch.Stmt, error) {
	var (
		query     string
		returning bool
		err       error
	)
	switch shape.Op {
	case batch.OpInsert:
		query, returning = s.insertSQL(desc)
	case batch.OpUpsert:
		query, returning, err = s.upsertSQL(desc, shape)
	case batch.OpUpdate, batch.OpUpdateAll:
		query, err = s.updateSQL(desc, shape)
	case batch.OpDelete:
		query = s.deleteSQL(desc)
	default:
		err = fmt.Errorf("sqlstore: shape %s is not executable", shape)
	}
	if err != nil {
		return nil, err
	}
	prepared, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: prepare %q: %w", query, err)
	}
	return &stmt{
		desc:      desc,
		shape:     shape,
		dialect:   s.dialect,
		st:        prepared,
		returning: returning,
		fields:    s.boundFields(desc, shape),
	}, nil
}

// insertSQL binds the key column for assigned and UUID keys and every
// declared field. PostgreSQL auto keys come back through RETURNING.
func (s *Store) insertSQL(desc *entity.Descriptor) (string, bool) {
	var cols []string
	if desc.KeyMode != entity.KeyAuto {
		cols = append(cols, desc.Key.Column)
	}
	for _, f := range desc.Fields {
		cols = append(cols, f.Column)
	}
	marks := make([]string, len(cols))
	for i := range marks {
		marks[i] = s.dialect.placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		desc.Table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	if s.dialect == Postgres && desc.KeyMode == entity.KeyAuto {
		return query + " RETURNING " + desc.Key.Column, true
	}
	return query, false
}

// upsertSQL emits the dialect's native insert-or-update. The update branch
// assigns the shape's columns from the proposed row and bumps the version
// column in place, so a concurrent writer is never silently overwritten.
func (s *Store) upsertSQL(desc *entity.Descriptor, shape batch.Shape) (string, bool, error) {
	insert, returning := s.insertSQL(desc)
	fields, err := s.updateFields(desc, shape)
	if err != nil {
		return "", false, err
	}

	var set []string
	switch s.dialect {
	case MySQL:
		for _, f := range fields {
			set = append(set, fmt.Sprintf("%s = VALUES(%s)", f.Column, f.Column))
		}
		if desc.Version != nil {
			set = append(set, fmt.Sprintf("%s = %s + 1", desc.Version.Column, desc.Version.Column))
		}
		return insert + " ON DUPLICATE KEY UPDATE " + strings.Join(set, ", "), returning, nil
	default:
		for _, f := range fields {
			set = append(set, fmt.Sprintf("%s = excluded.%s", f.Column, f.Column))
		}
		if desc.Version != nil {
			set = append(set, fmt.Sprintf("%s = %s.%s + 1",
				desc.Version.Column, desc.Table, desc.Version.Column))
		}
		query := fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s",
			insert, desc.Key.Column, strings.Join(set, ", "))
		if returning {
			query += " RETURNING " + desc.Key.Column
		}
		return query, returning, nil
	}
}

// updateSQL targets exactly the shape's columns, bumps the version in SQL
// and guards the write with the expected version.
func (s *Store) updateSQL(desc *entity.Descriptor, shape batch.Shape) (string, error) {
	fields, err := s.updateFields(desc, shape)
	if err != nil {
		return "", err
	}
	n := 0
	set := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		n++
		set = append(set, fmt.Sprintf("%s = %s", f.Column, s.dialect.placeholder(n)))
	}
	if desc.Version != nil {
		set = append(set, fmt.Sprintf("%s = %s + 1", desc.Version.Column, desc.Version.Column))
	}
	n++
	where := fmt.Sprintf("%s = %s", desc.Key.Column, s.dialect.placeholder(n))
	if desc.Version != nil {
		n++
		where += fmt.Sprintf(" AND %s = %s", desc.Version.Column, s.dialect.placeholder(n))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		desc.Table, strings.Join(set, ", "), where), nil
}

// deleteSQL removes by key, guarded by the expected version when present.
func (s *Store) deleteSQL(desc *entity.Descriptor) string {
	where := fmt.Sprintf("%s = %s", desc.Key.Column, s.dialect.placeholder(1))
	if desc.Version != nil {
		where += fmt.Sprintf(" AND %s = %s", desc.Version.Column, s.dialect.placeholder(2))
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", desc.Table, where)
}

// updateFields resolves the shape's column list against the descriptor,
// dropping the version column: its bump is emitted in SQL, never bound.
func (s *Store) updateFields(desc *entity.Descriptor, shape batch.Shape) ([]entity.Field, error) {
	cols := shape.ColumnList()
	if cols == nil {
		return desc.Updatable(), nil
	}
	byColumn := make(map[string]entity.Field, len(desc.Fields))
	for _, f := range desc.Fields {
		byColumn[f.Column] = f
	}
	fields := make([]entity.Field, 0, len(cols))
	for _, col := range cols {
		if desc.Version != nil && col == desc.Version.Column {
			continue
		}
		f, ok := byColumn[col]
		if !ok {
			return nil, fmt.Errorf("sqlstore: shape column %q not declared on %s", col, desc.Table)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// boundFields returns the fields bound per row for the shape, in bind order.
func (s *Store) boundFields(desc *entity.Descriptor, shape batch.Shape) []entity.Field {
	switch shape.Op {
	case batch.OpInsert, batch.OpUpsert:
		return desc.Fields
	case batch.OpDelete:
		return nil
	}
	fields, _ := s.updateFields(desc, shape)
	return fields
}

type stmt struct {
	desc      *entity.Descriptor
	shape     batch.Shape
	dialect   Dialect
	st        *sql.Stmt
	returning bool
	fields    []entity.Field
	keys      []entity.Key
}

// Exec binds and runs the statement once per row, returning one affected-row
// count per row in input order. Generated keys of the call are cached for
// GeneratedKeys.
func (s *stmt) Exec(ctx context.Context, rows []entity.Entity) ([]int64, error) {
	s.keys = s.keys[:0]
	counts := make([]int64, len(rows))
	for i, e := range rows {
		args, key := s.bind(e)
		if s.returning {
			if err := s.st.QueryRowContext(ctx, args...).Scan(&key); err != nil {
				return nil, classify(err)
			}
			counts[i] = 1
			s.keys = append(s.keys, key)
			continue
		}
		res, err := s.st.ExecContext(ctx, args...)
		if err != nil {
			return nil, classify(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		counts[i] = s.normalize(affected)
		if s.shape.Op == batch.OpInsert && s.desc.KeyMode == entity.KeyAuto {
			id, err := res.LastInsertId()
			if err != nil {
				return nil, err
			}
			key = id
		}
		s.keys = append(s.keys, key)
	}
	return counts, nil
}

// bind assembles the argument list for one row. UUID keys are generated here
// when the entity does not carry one yet.
func (s *stmt) bind(e entity.Entity) ([]any, entity.Key) {
	key := s.desc.KeyOf(e)
	var args []any
	switch s.shape.Op {
	case batch.OpInsert, batch.OpUpsert:
		if s.desc.KeyMode != entity.KeyAuto {
			if s.desc.KeyMode == entity.KeyUUID && !s.desc.HasKey(e) {
				key = uuid.NewString()
			}
			args = append(args, key)
		}
		for _, f := range s.fields {
			args = append(args, f.Get(e))
		}
	case batch.OpDelete:
		args = append(args, key)
		if s.desc.Version != nil {
			args = append(args, s.desc.Version.Get(e))
		}
	default:
		for _, f := range s.fields {
			args = append(args, f.Get(e))
		}
		args = append(args, key)
		if s.desc.Version != nil {
			args = append(args, s.desc.Version.Get(e))
		}
	}
	return args, key
}

// normalize maps MySQL's upsert affected-row convention onto one row per
// statement: 2 means an existing row was updated, 0 means it matched with
// identical values. Both are a successful write of one logical row.
func (s *stmt) normalize(affected int64) int64 {
	if s.dialect == MySQL && s.shape.Op == batch.OpUpsert {
		if affected == 2 || affected == 0 {
			return 1
		}
	}
	return affected
}

// GeneratedKeys returns the keys of the most recent Exec in statement order.
func (s *stmt) GeneratedKeys() ([]entity.Key, error) {
	out := make([]entity.Key, len(s.keys))
	copy(out, s.keys)
	return out, nil
}

func (s *stmt) Close() error { return s.st.Close() }

// classify normalizes driver-specific unique violations to ErrDuplicateKey.
func classify(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) &&
		(liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}
