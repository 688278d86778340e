// Package aiclient talks to the external AI backend that introspects
// schemas, translates natural language to SQL, and executes queries
// against the user's database.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"querydeck/internal/metrics"
	"querydeck/internal/schema"
)

// Credentials is the raw connection bundle as the backend expects it on
// the wire. Port stays a string end to end. Instances of this type are
// transient: built from user input or a fresh decrypt, used for one
// call, then dropped.
type Credentials struct {
	User     string `json:"user"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	DBName   string `json:"dbname"`
	Table    string `json:"table,omitempty"`
}

// SQLResult is the backend's answer to a generation request.
type SQLResult struct {
	SQLQuery   string `json:"sql_query"`
	Confidence string `json:"confidence"`
	Err        string `json:"error"`
}

// ExecResult is the backend's answer to an execution request.
type ExecResult struct {
	Success  bool             `json:"success"`
	Data     []map[string]any `json:"data"`
	RowCount int              `json:"row_count"`
	Err      string           `json:"error"`
}

type Config struct {
	BaseURL        string
	ProbeTimeout   time.Duration
	SQLGenTimeout  time.Duration
	ExecuteTimeout time.Duration
	HTTPClient     *http.Client
	Metrics        *metrics.Metrics
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 15 * time.Second
	}
	if cfg.SQLGenTimeout <= 0 {
		cfg.SQLGenTimeout = 30 * time.Second
	}
	if cfg.ExecuteTimeout <= 0 {
		cfg.ExecuteTimeout = 60 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Global()
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{cfg: cfg}
}

// ProbeSchema asks the backend to connect with raw credentials and
// return the table's schema plus sample rows. This is the only call
// that ever carries an unencrypted password besides execution, and its
// payload is never persisted.
func (c *Client) ProbeSchema(ctx context.Context, creds Credentials) (schema.Context, error) {
	start := time.Now()
	defer c.cfg.Metrics.ObserveBackendCall("db_context", start)

	status, body, err := c.post(ctx, "/db_context", c.cfg.ProbeTimeout, creds)
	if err != nil {
		return schema.Context{}, &ConnectionError{BackendMessage: err.Error()}
	}
	if status < 200 || status > 299 {
		return schema.Context{}, &ConnectionError{BackendMessage: errorDetail(body, status)}
	}

	var out schema.Context
	if err := json.Unmarshal(body, &out); err != nil {
		return schema.Context{}, &ConnectionError{BackendMessage: fmt.Sprintf("malformed schema response: %v", err)}
	}
	return out, nil
}

// GenerateSQL sends the user's question together with the filtered
// schema context. The context passed in here must already be filtered;
// the orchestrator owns that invariant.
func (c *Client) GenerateSQL(ctx context.Context, question string, filtered schema.Context, apiKey string) (SQLResult, error) {
	start := time.Now()
	defer c.cfg.Metrics.ObserveBackendCall("text_to_sql", start)

	payload := struct {
		Query        string         `json:"query"`
		DBContext    schema.Context `json:"db_context"`
		GeminiAPIKey string         `json:"gemini_api_key"`
	}{Query: question, DBContext: filtered, GeminiAPIKey: apiKey}

	status, body, err := c.post(ctx, "/text_to_sql", c.cfg.SQLGenTimeout, payload)
	if err != nil {
		kind := GenerationUnknown
		if isTimeout(err) {
			kind = GenerationTimeout
		}
		return SQLResult{}, &GenerationError{Kind: kind, Detail: err.Error()}
	}
	if status < 200 || status > 299 {
		detail := errorDetail(body, status)
		return SQLResult{}, &GenerationError{Kind: Classify(detail), Detail: detail}
	}

	var out SQLResult
	if err := json.Unmarshal(body, &out); err != nil {
		return SQLResult{}, &GenerationError{Kind: GenerationInvalidStructure, Detail: fmt.Sprintf("malformed generation response: %v", err)}
	}
	if strings.TrimSpace(out.SQLQuery) == "" {
		// A success status with no statement is useless to the caller;
		// treat it exactly like a structural failure.
		detail := out.Err
		if detail == "" {
			detail = "response contained no sql_query"
		}
		kind := Classify(detail)
		if kind == GenerationUnknown {
			kind = GenerationInvalidStructure
		}
		return SQLResult{}, &GenerationError{Kind: kind, Detail: detail}
	}
	return out, nil
}

// ExecuteSQL runs the generated statement with transiently decrypted
// credentials. Table is not part of this payload; the statement already
// names it.
func (c *Client) ExecuteSQL(ctx context.Context, creds Credentials, sqlText string) (ExecResult, error) {
	start := time.Now()
	defer c.cfg.Metrics.ObserveBackendCall("query_execute", start)

	payload := struct {
		User     string `json:"user"`
		Password string `json:"password"`
		Host     string `json:"host"`
		Port     string `json:"port"`
		DBName   string `json:"dbname"`
		SQL      string `json:"sql"`
	}{creds.User, creds.Password, creds.Host, creds.Port, creds.DBName, sqlText}

	status, body, err := c.post(ctx, "/query_execute", c.cfg.ExecuteTimeout, payload)
	if err != nil {
		if isTimeout(err) {
			return ExecResult{}, &ExecutionError{Detail: "query timeout - execution took too long"}
		}
		return ExecResult{}, &ExecutionError{Detail: err.Error()}
	}
	if status < 200 || status > 299 {
		return ExecResult{}, &ExecutionError{Detail: errorDetail(body, status)}
	}

	var out ExecResult
	if err := json.Unmarshal(body, &out); err != nil {
		return ExecResult{}, &ExecutionError{Detail: fmt.Sprintf("malformed execution response: %v", err)}
	}
	if !out.Success {
		detail := out.Err
		if detail == "" {
			detail = "backend reported failure without detail"
		}
		return ExecResult{}, &ExecutionError{Detail: detail}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, timeout time.Duration, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal payload: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// errorDetail pulls the textual detail out of an error payload, which
// the backend sends either as {"error": "..."} or as plain text.
func errorDetail(body []byte, status int) string {
	var wrapped struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && strings.TrimSpace(wrapped.Error) != "" {
		return wrapped.Error
	}
	if txt := strings.TrimSpace(string(body)); txt != "" {
		return txt
	}
	return fmt.Sprintf("backend status %d", status)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
