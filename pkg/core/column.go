package core

import "strings"

// Column describes one column of a dictionary structure or a result set.
type Column struct {
	Name     string `koanf:"name" mapstructure:"name"`
	Type     string `koanf:"type" mapstructure:"type"`
	Nullable bool   `koanf:"nullable" mapstructure:"nullable"`
	Position int    `koanf:"-" mapstructure:"-"`
}

// ColumnNames returns the names of cols in order.
func ColumnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// SchemaMismatchError is returned when a result set does not have the
// columns a consumer asked for.
type SchemaMismatchError struct {
	Expected []string
	Got      []string
}

func (e *SchemaMismatchError) Error() string {
	return "result columns [" + strings.Join(e.Got, ", ") + "] do not match expected [" +
		strings.Join(e.Expected, ", ") + "]"
}

// CheckColumns verifies that got carries the expected column names in order.
// Name comparison is case-insensitive since engines differ in how they fold
// unquoted identifiers.
func CheckColumns(expected, got []Column) error {
	if len(expected) == len(got) {
		match := true
		for i := range expected {
			if !strings.EqualFold(expected[i].Name, got[i].Name) {
				match = false
				break
			}
		}
		if match {
			return nil
		}
	}
	return &SchemaMismatchError{Expected: ColumnNames(expected), Got: ColumnNames(got)}
}
