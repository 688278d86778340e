package aiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"querydeck/internal/schema"
)

func TestProbeSchemaSuccess(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/db_context" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		_ = json.NewEncoder(w).Encode(schema.Context{
			TableName: "products",
			Columns: []schema.Column{
				{Name: "id", DataType: "integer", Nullable: "NO"},
			},
			SampleData: []map[string]any{{"id": 1}},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	ctx, err := c.ProbeSchema(context.Background(), Credentials{
		User: "u", Password: "p", Host: "h", Port: "5432", DBName: "d", Table: "products",
	})
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if ctx.TableName != "products" || len(ctx.Columns) != 1 {
		t.Fatalf("unexpected context: %+v", ctx)
	}
	if gotBody["port"] != "5432" {
		t.Fatalf("port must stay a string on the wire, got %v", gotBody["port"])
	}
	if gotBody["table"] != "products" {
		t.Fatalf("table missing from probe payload: %v", gotBody)
	}
}

func TestProbeSchemaRejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"password authentication failed for user \"u\""}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.ProbeSchema(context.Background(), Credentials{User: "u"})

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
	if connErr.BackendMessage != `password authentication failed for user "u"` {
		t.Fatalf("backend message lost: %q", connErr.BackendMessage)
	}
}

func TestGenerateSQLSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text_to_sql" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"sql_query":"SELECT * FROM products LIMIT 10","confidence":"HIGH"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	res, err := c.GenerateSQL(context.Background(), "show products", schema.Context{TableName: "products"}, "key")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.SQLQuery != "SELECT * FROM products LIMIT 10" || res.Confidence != "HIGH" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestGenerateSQLForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Only SELECT queries are allowed"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.GenerateSQL(context.Background(), "drop the table", schema.Context{}, "key")

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Kind != GenerationForbidden {
		t.Fatalf("expected forbidden kind, got %s", genErr.Kind)
	}
}

func TestGenerateSQLMissingStatement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"confidence":"LOW"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.GenerateSQL(context.Background(), "question", schema.Context{}, "key")

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Kind != GenerationInvalidStructure {
		t.Fatalf("expected invalid_structure for missing sql_query, got %s", genErr.Kind)
	}
}

func TestGenerateSQLTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, SQLGenTimeout: 20 * time.Millisecond})
	_, err := c.GenerateSQL(context.Background(), "question", schema.Context{}, "key")

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Kind != GenerationTimeout {
		t.Fatalf("expected timeout kind, got %s", genErr.Kind)
	}
}

func TestExecuteSQLSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query_execute" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var body map[string]any
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		if body["sql"] != "SELECT 1" {
			t.Errorf("sql missing from payload: %v", body)
		}
		_, _ = w.Write([]byte(`{"success":true,"data":[{"n":1}],"row_count":1}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	res, err := c.ExecuteSQL(context.Background(), Credentials{User: "u"}, "SELECT 1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.RowCount != 1 || len(res.Data) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExecuteSQLBackendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"relation \"ghosts\" does not exist"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.ExecuteSQL(context.Background(), Credentials{}, "SELECT * FROM ghosts")

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if execErr.Detail != `relation "ghosts" does not exist` {
		t.Fatalf("detail lost: %q", execErr.Detail)
	}
}

func TestExecuteSQLTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, ExecuteTimeout: 20 * time.Millisecond})
	_, err := c.ExecuteSQL(context.Background(), Credentials{}, "SELECT 1")

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
}
