package query

import (
	"testing"

	"github.com/leapstack-labs/leapdict/pkg/core"
	"github.com/stretchr/testify/assert"
)

func cols(names ...string) []core.Column {
	out := make([]core.Column, len(names))
	for i, n := range names {
		out[i] = core.Column{Name: n, Type: "String"}
	}
	return out
}

func TestComposeLoadAll(t *testing.T) {
	tests := []struct {
		name    string
		columns []core.Column
		table   string
		want    string
	}{
		{name: "three columns", columns: cols("a", "b", "c"), table: "t", want: "SELECT a, b, c FROM t;"},
		{name: "single column", columns: cols("x"), table: "t", want: "SELECT x FROM t;"},
		{name: "no columns", columns: nil, table: "t", want: "SELECT  FROM t;"},
		{name: "qualified table", columns: cols("id", "value"), table: "db.events", want: "SELECT id, value FROM db.events;"},
		// names are not escaped: a comma in a name splits it into two select items
		{name: "verbatim names", columns: cols("a,b"), table: "t", want: "SELECT a,b FROM t;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComposeLoadAll(tt.columns, tt.table))
		})
	}
}

func TestComposeLoadAll_ColumnOrder(t *testing.T) {
	assert.Equal(t, "SELECT value, id FROM events;", ComposeLoadAll(cols("value", "id"), "events"))
}
