package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dialect papers over placeholder syntax between drivers.
type dialect struct {
	numbered bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverPostgres:
		return dialect{numbered: true}, nil
	case DriverSQLite:
		return dialect{numbered: false}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported driver %q", driver)
	}
}

// placeholder returns the n-th (1-based) bind parameter.
func (d dialect) placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// idKey is the expression ids are matched on. sqlite casts so that text ids
// match integer-affinity columns; Postgres compares the column itself so the
// primary-key index stays usable, and infers the parameter type from it.
func (d dialect) idKey() string {
	if d.numbered {
		return "id"
	}
	return "CAST(id AS TEXT)"
}

// lookupQuery selects columns for count ids from table.
func (d dialect) lookupQuery(table, columns string, count int) string {
	return fmt.Sprintf("SELECT CAST(id AS TEXT), %s FROM %s WHERE %s IN (%s)",
		columns, table, d.idKey(), d.placeholders(1, count))
}

// placeholders returns count comma-separated parameters starting at from.
func (d dialect) placeholders(from, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = d.placeholder(from + i)
	}
	return strings.Join(parts, ", ")
}

func validateTable(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}
