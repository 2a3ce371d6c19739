// Package query builds the statements dictionary sources send to an engine.
//
// Identifiers are inserted verbatim. Table and column names must not contain
// characters that are significant to SQL syntax (commas, quotes, semicolons,
// whitespace); no escaping or quoting is applied.
package query

import (
	"strings"

	"github.com/leapstack-labs/leapdict/pkg/core"
)

// ComposeLoadAll returns the full-scan statement for table, selecting columns
// in order: "SELECT c1, c2, ..., cN FROM table;".
//
// An empty column list yields "SELECT  FROM table;".
func ComposeLoadAll(columns []core.Column, table string) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
	}
	b.WriteString(" FROM ")
	b.WriteString(table)
	b.WriteByte(';')
	return b.String()
}
