package schema

import (
	"errors"
	"reflect"
	"testing"
)

func col(name string, allow *bool) Column {
	return Column{Name: name, DataType: "text", Nullable: "YES", Allow: allow}
}

func ptr(b bool) *bool { return &b }

func TestDefaultAllowSetsMissingFlags(t *testing.T) {
	cols := []Column{
		col("id", nil),
		col("name", ptr(true)),
		col("secret_note", ptr(false)),
	}

	out := DefaultAllow(cols)

	if out[0].Allow == nil || !*out[0].Allow {
		t.Fatalf("expected missing flag to default to allowed")
	}
	if !*out[1].Allow {
		t.Fatalf("explicit true must survive")
	}
	if *out[2].Allow {
		t.Fatalf("explicit false must survive")
	}
	if cols[0].Allow != nil {
		t.Fatalf("input slice must not be mutated")
	}
}

func TestDefaultAllowIdempotent(t *testing.T) {
	cols := []Column{col("a", nil), col("b", ptr(false)), col("c", ptr(true))}

	once := DefaultAllow(cols)
	twice := DefaultAllow(once)

	if !reflect.DeepEqual(flags(once), flags(twice)) {
		t.Fatalf("DefaultAllow is not idempotent: %v vs %v", flags(once), flags(twice))
	}
}

func TestToggleRejectsBelowFloor(t *testing.T) {
	// Exactly 3 allowed: disabling any of them must fail.
	cols := []Column{
		col("id", ptr(true)),
		col("name", ptr(true)),
		col("price", ptr(true)),
		col("secret_note", ptr(false)),
	}

	out, err := Toggle(cols, "price", false)
	if !errors.Is(err, ErrAllowFloor) {
		t.Fatalf("expected ErrAllowFloor, got %v", err)
	}
	if out != nil {
		t.Fatalf("expected no result on rejection")
	}
	if !*cols[2].Allow {
		t.Fatalf("input must stay unchanged on rejection")
	}
	if AllowedCount(cols) != 3 {
		t.Fatalf("allowed count changed on rejected toggle")
	}
}

func TestToggleAtFloorBoundary(t *testing.T) {
	// 4 allowed: disabling one succeeds and leaves exactly 3.
	cols := []Column{
		col("id", ptr(true)),
		col("name", ptr(true)),
		col("price", ptr(true)),
		col("stock", ptr(true)),
	}

	out, err := Toggle(cols, "stock", false)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if AllowedCount(out) != 3 {
		t.Fatalf("expected 3 allowed after toggle, got %d", AllowedCount(out))
	}
	if *out[3].Allow {
		t.Fatalf("stock should be disabled")
	}
	if !*cols[3].Allow {
		t.Fatalf("input slice must not be mutated")
	}
}

func TestToggleEnableAlwaysAllowed(t *testing.T) {
	cols := []Column{
		col("id", ptr(true)),
		col("name", ptr(true)),
		col("price", ptr(true)),
		col("secret_note", ptr(false)),
	}

	out, err := Toggle(cols, "secret_note", true)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if AllowedCount(out) != 4 {
		t.Fatalf("expected 4 allowed, got %d", AllowedCount(out))
	}
}

func TestToggleDisableAlreadyDisabledBelowFloor(t *testing.T) {
	// Re-disabling a denied column does not shrink the allowed set, so
	// it succeeds even at the floor.
	cols := []Column{
		col("id", ptr(true)),
		col("name", ptr(true)),
		col("price", ptr(true)),
		col("secret_note", ptr(false)),
	}

	out, err := Toggle(cols, "secret_note", false)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if AllowedCount(out) != 3 {
		t.Fatalf("expected allowed count unchanged, got %d", AllowedCount(out))
	}
}

func TestToggleUnknownColumn(t *testing.T) {
	cols := []Column{col("id", ptr(true))}
	if _, err := Toggle(cols, "ghost", false); !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("expected ErrColumnNotFound, got %v", err)
	}
}

func TestFilterProjection(t *testing.T) {
	ctx := Context{
		TableName: "products",
		Columns: []Column{
			col("id", ptr(true)),
			col("secret_note", ptr(false)),
			col("name", nil), // legacy record, no flag
			col("price", ptr(true)),
		},
		SampleData: []map[string]any{
			{"id": 1, "secret_note": "internal", "name": "widget", "price": 9.5},
			{"id": 2, "name": "gadget"},
		},
	}

	got := Filter(ctx)

	wantOrder := []string{"id", "name", "price"}
	if len(got.Columns) != len(wantOrder) {
		t.Fatalf("expected %d columns, got %d", len(wantOrder), len(got.Columns))
	}
	for i, name := range wantOrder {
		if got.Columns[i].Name != name {
			t.Fatalf("column %d: expected %q, got %q", i, name, got.Columns[i].Name)
		}
	}

	for _, row := range got.SampleData {
		if _, ok := row["secret_note"]; ok {
			t.Fatalf("disallowed key leaked into sample row: %v", row)
		}
	}
	if got.SampleData[0]["id"] != 1 || got.SampleData[0]["price"] != 9.5 {
		t.Fatalf("allowed values missing from projected row: %v", got.SampleData[0])
	}
	if _, ok := got.SampleData[1]["price"]; ok {
		t.Fatalf("absent key must stay absent, not be nulled")
	}

	// Shallow copies: mutating the projection must not touch the input.
	got.SampleData[0]["id"] = 99
	if ctx.SampleData[0]["id"] != 1 {
		t.Fatalf("filter mutated the input context")
	}
}

func flags(cols []Column) []bool {
	out := make([]bool, len(cols))
	for i, c := range cols {
		out[i] = c.Allowed()
	}
	return out
}
