// Package schema models the probed database schema and owns the column
// access policy that decides which columns may ever be shown to the AI
// backend.
package schema

// Column is one table column as reported by the schema probe, plus the
// allow flag controlling AI visibility. Allow is a pointer on purpose:
// records written before the flag existed carry no value, and absence
// means allowed.
type Column struct {
	Name      string  `json:"column_name"`
	DataType  string  `json:"data_type"`
	Nullable  string  `json:"is_nullable"`
	Default   *string `json:"column_default"`
	MaxLength *int    `json:"character_maximum_length"`
	Allow     *bool   `json:"allow,omitempty"`
}

// Allowed reports whether the column may be exposed. Only an explicit
// false denies.
func (c Column) Allowed() bool {
	return c.Allow == nil || *c.Allow
}

// Context is the probed schema for one project: the table, its columns,
// and a handful of sample rows keyed by column name.
type Context struct {
	TableName  string           `json:"table_name"`
	Columns    []Column         `json:"columns"`
	SampleData []map[string]any `json:"sample_data"`
}

// AllowedCount returns how many columns are currently allowed.
func AllowedCount(cols []Column) int {
	n := 0
	for _, c := range cols {
		if c.Allowed() {
			n++
		}
	}
	return n
}
