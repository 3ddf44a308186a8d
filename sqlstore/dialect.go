package sqlstore

import (
	"fmt"
	"strconv"
)

// Dialect selects the SQL flavor used for statement generation.
type Dialect int

const (
	MySQL Dialect = iota
	Postgres
	SQLite
)

// ParseDialect maps a configuration value to a dialect.
func ParseDialect(name string) (Dialect, error) {
	switch name {
	case "mysql", "mariadb":
		return MySQL, nil
	case "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return 0, fmt.Errorf("sqlstore: unknown dialect %q", name)
}

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite3"
	}
	return "mysql"
}

// DriverName returns the database/sql driver name for the dialect.
func (d Dialect) DriverName() string {
	return d.String()
}

// placeholder returns the bind marker for the 1-based position n.
func (d Dialect) placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
