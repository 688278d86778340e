package schema

import (
	"errors"
	"fmt"
)

// MinAllowedColumns is the floor: every project keeps at least this
// many columns visible so the AI backend has enough signal to ground
// generated queries.
const MinAllowedColumns = 3

// ErrAllowFloor is returned when a toggle would leave fewer than
// MinAllowedColumns columns allowed. The column set is never changed
// in that case.
var ErrAllowFloor = errors.New("at least 3 columns must stay enabled")

// ErrColumnNotFound is returned when a toggle names a column the
// context does not have.
var ErrColumnNotFound = errors.New("column not found")

// DefaultAllow returns a copy of cols in which every column without an
// explicit allow flag is marked allowed. Idempotent.
func DefaultAllow(cols []Column) []Column {
	out := make([]Column, len(cols))
	copy(out, cols)
	for i := range out {
		if out[i].Allow == nil {
			t := true
			out[i].Allow = &t
		}
	}
	return out
}

// Toggle returns a copy of cols with exactly one column's allow flag
// set to newValue. Disabling is rejected with ErrAllowFloor when it
// would drop the allowed count below MinAllowedColumns; the input is
// left untouched either way.
func Toggle(cols []Column, name string, newValue bool) ([]Column, error) {
	idx := -1
	for i, c := range cols {
		if c.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}

	if !newValue && cols[idx].Allowed() && AllowedCount(cols) <= MinAllowedColumns {
		return nil, ErrAllowFloor
	}

	out := make([]Column, len(cols))
	copy(out, cols)
	v := newValue
	out[idx].Allow = &v
	return out, nil
}

// Filter projects ctx onto its allowed columns: columns keep their
// original relative order, and each sample row is a shallow copy
// holding only allowed column names. Keys outside the allowed set are
// dropped, not nulled. The input context is not modified.
func Filter(ctx Context) Context {
	allowed := make([]Column, 0, len(ctx.Columns))
	names := make(map[string]struct{}, len(ctx.Columns))
	for _, c := range ctx.Columns {
		if c.Allowed() {
			allowed = append(allowed, c)
			names[c.Name] = struct{}{}
		}
	}

	rows := make([]map[string]any, 0, len(ctx.SampleData))
	for _, row := range ctx.SampleData {
		projected := make(map[string]any, len(names))
		for name := range names {
			if v, ok := row[name]; ok {
				projected[name] = v
			}
		}
		rows = append(rows, projected)
	}

	return Context{
		TableName:  ctx.TableName,
		Columns:    allowed,
		SampleData: rows,
	}
}
