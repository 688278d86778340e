// Package project assembles, stores, and serves project records: the
// encrypted credential bundle, the probed schema context, and the
// presentation config that hangs off it.
package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"querydeck/internal/aiclient"
	"querydeck/internal/crypto"
	"querydeck/internal/metrics"
	"querydeck/internal/schema"
	"querydeck/internal/storage"
)

const maxCardDesignBytes = 64 << 10

var ErrNotFound = storage.ErrNotFound

// ErrBadCardDesign rejects card designs that are not a JSON object of
// reasonable size. The blob is otherwise opaque.
var ErrBadCardDesign = errors.New("card design must be a JSON object")

// Input is the raw project-creation form. Every credential field is
// plaintext here and only here.
type Input struct {
	Name         string
	Description  string
	DBUser       string
	DBPassword   string
	DBHost       string
	DBPort       string
	DBName       string
	TableName    string
	GeminiAPIKey string
	GeminiModel  string
}

// Project is the decrypt-free view handed to the API layer.
type Project struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	GeminiModel string          `json:"gemini_model"`
	Context     schema.Context  `json:"db_context"`
	CardDesign  json.RawMessage `json:"card_design,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ConnectionView is the display form of a project's connection info.
// Fields that fail to decrypt report an error in FieldErrors instead of
// taking the whole view down.
type ConnectionView struct {
	Host        string            `json:"host"`
	Port        string            `json:"port"`
	DBName      string            `json:"dbname"`
	Table       string            `json:"table"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

type Service struct {
	store   *storage.Store
	ai      *aiclient.Client
	cipher  *crypto.Cipher
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

type Config struct {
	Store   *storage.Store
	AI      *aiclient.Client
	Cipher  *crypto.Cipher
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

func NewService(cfg Config) *Service {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	return &Service{
		store:   cfg.Store,
		ai:      cfg.AI,
		cipher:  cfg.Cipher,
		logger:  cfg.Logger,
		metrics: m,
	}
}

// Create runs one creation attempt: probe the schema with the raw
// credentials, default every column to allowed, seal all seven secret
// fields, then persist in a single insert. Any failure aborts with
// nothing persisted; the caller retries from the form.
func (s *Service) Create(ctx context.Context, userID string, in Input) (Project, error) {
	probed, err := s.ai.ProbeSchema(ctx, aiclient.Credentials{
		User:     in.DBUser,
		Password: in.DBPassword,
		Host:     in.DBHost,
		Port:     in.DBPort,
		DBName:   in.DBName,
		Table:    in.TableName,
	})
	if err != nil {
		return Project{}, err
	}
	probed.Columns = schema.DefaultAllow(probed.Columns)

	contextJSON, err := json.Marshal(probed)
	if err != nil {
		return Project{}, fmt.Errorf("marshal schema context: %w", err)
	}

	sealed, err := s.sealCredentials(in)
	if err != nil {
		return Project{}, err
	}

	rec := storage.ProjectRecord{
		UserID:          userID,
		Name:            in.Name,
		Description:     in.Description,
		EncDBUser:       sealed.user,
		EncDBPassword:   sealed.password,
		EncDBHost:       sealed.host,
		EncDBPort:       sealed.port,
		EncDBName:       sealed.dbname,
		EncTableName:    sealed.table,
		EncGeminiAPIKey: sealed.apiKey,
		GeminiModel:     in.GeminiModel,
		DBContextJSON:   string(contextJSON),
	}
	id, err := s.store.InsertProject(ctx, rec)
	if err != nil {
		return Project{}, &PersistenceError{Op: "create project", Err: err}
	}

	s.metrics.ProjectsCreated.Inc()
	s.logger.Info().Str("project_id", id).Str("table", probed.TableName).Msg("project created")

	rec.ID = id
	rec.CreatedAt = time.Now().UTC()
	return s.toProject(rec)
}

type sealedBundle struct {
	user, password, host, port, dbname, table, apiKey string
}

// sealCredentials encrypts every field or none: a bundle mixing
// plaintext and ciphertext must never reach the store.
func (s *Service) sealCredentials(in Input) (sealedBundle, error) {
	var out sealedBundle
	for _, f := range []struct {
		name  string
		value string
		dst   *string
	}{
		{"db user", in.DBUser, &out.user},
		{"db password", in.DBPassword, &out.password},
		{"db host", in.DBHost, &out.host},
		{"db port", in.DBPort, &out.port},
		{"db name", in.DBName, &out.dbname},
		{"table name", in.TableName, &out.table},
		{"api key", in.GeminiAPIKey, &out.apiKey},
	} {
		enc, err := s.cipher.EncryptString(f.value)
		if err != nil {
			return sealedBundle{}, fmt.Errorf("seal %s: %w", f.name, err)
		}
		*f.dst = enc
	}
	return out, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Project, error) {
	recs, err := s.store.ListProjects(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "list projects", Err: err}
	}
	out := make([]Project, 0, len(recs))
	for _, rec := range recs {
		p, err := s.toProject(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (Project, error) {
	rec, err := s.load(ctx, userID, id)
	if err != nil {
		return Project{}, err
	}
	return s.toProject(rec)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteProject(ctx, id, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return &PersistenceError{Op: "delete project", Err: err}
	}
	return nil
}

// Connection decrypts the display fields of a project's bundle. A field
// that cannot be decrypted shows up in FieldErrors; the rest of the
// view still renders. The username, password, and API key are never
// part of this view.
func (s *Service) Connection(ctx context.Context, userID, id string) (ConnectionView, error) {
	rec, err := s.load(ctx, userID, id)
	if err != nil {
		return ConnectionView{}, err
	}

	view := ConnectionView{FieldErrors: map[string]string{}}
	for _, f := range []struct {
		name string
		raw  string
		dst  *string
	}{
		{"host", rec.EncDBHost, &view.Host},
		{"port", rec.EncDBPort, &view.Port},
		{"dbname", rec.EncDBName, &view.DBName},
		{"table", rec.EncTableName, &view.Table},
	} {
		plain, err := s.cipher.DecryptString(f.raw)
		if err != nil {
			s.logger.Warn().Str("project_id", id).Str("field", f.name).Err(err).Msg("credential field unreadable")
			view.FieldErrors[f.name] = "unreadable"
			continue
		}
		*f.dst = plain
	}
	if len(view.FieldErrors) == 0 {
		view.FieldErrors = nil
	}
	return view, nil
}

// ToggleColumn flips one column's allow flag against the latest stored
// state and writes the whole context back. The floor check happens
// right before the write; concurrent toggles on the same project race
// and the last write wins.
func (s *Service) ToggleColumn(ctx context.Context, userID, id, column string, allow bool) (schema.Context, error) {
	rec, err := s.load(ctx, userID, id)
	if err != nil {
		return schema.Context{}, err
	}

	sc, err := parseContext(rec.DBContextJSON)
	if err != nil {
		return schema.Context{}, err
	}

	updated, err := schema.Toggle(sc.Columns, column, allow)
	if err != nil {
		return schema.Context{}, err
	}
	sc.Columns = updated

	contextJSON, err := json.Marshal(sc)
	if err != nil {
		return schema.Context{}, fmt.Errorf("marshal schema context: %w", err)
	}
	if err := s.store.UpdateSchemaContext(ctx, id, userID, string(contextJSON)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return schema.Context{}, ErrNotFound
		}
		return schema.Context{}, &PersistenceError{Op: "toggle column", Err: err}
	}
	return sc, nil
}

// SaveCardDesign stores the presentation config as an opaque blob after
// checking it is a bounded JSON object. Nothing else inspects it.
func (s *Service) SaveCardDesign(ctx context.Context, userID, id string, design json.RawMessage) error {
	if len(design) == 0 || len(design) > maxCardDesignBytes {
		return ErrBadCardDesign
	}
	var obj map[string]any
	if err := json.Unmarshal(design, &obj); err != nil {
		return ErrBadCardDesign
	}

	if err := s.store.UpdateCardDesign(ctx, id, userID, string(design)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return &PersistenceError{Op: "save card design", Err: err}
	}
	return nil
}

// SchemaContext returns the project's current stored schema context.
func (s *Service) SchemaContext(ctx context.Context, userID, id string) (schema.Context, error) {
	rec, err := s.load(ctx, userID, id)
	if err != nil {
		return schema.Context{}, err
	}
	return parseContext(rec.DBContextJSON)
}

// ExecutionCredentials transiently decrypts the connection bundle for
// one execution call. The result must not outlive the call.
func (s *Service) ExecutionCredentials(ctx context.Context, userID, id string) (aiclient.Credentials, error) {
	rec, err := s.load(ctx, userID, id)
	if err != nil {
		return aiclient.Credentials{}, err
	}

	var creds aiclient.Credentials
	for _, f := range []struct {
		raw string
		dst *string
	}{
		{rec.EncDBUser, &creds.User},
		{rec.EncDBPassword, &creds.Password},
		{rec.EncDBHost, &creds.Host},
		{rec.EncDBPort, &creds.Port},
		{rec.EncDBName, &creds.DBName},
	} {
		plain, err := s.cipher.DecryptString(f.raw)
		if err != nil {
			return aiclient.Credentials{}, err
		}
		*f.dst = plain
	}
	return creds, nil
}

// APIKey transiently decrypts the project's model API key.
func (s *Service) APIKey(ctx context.Context, userID, id string) (string, error) {
	rec, err := s.load(ctx, userID, id)
	if err != nil {
		return "", err
	}
	return s.cipher.DecryptString(rec.EncGeminiAPIKey)
}

func (s *Service) load(ctx context.Context, userID, id string) (storage.ProjectRecord, error) {
	rec, err := s.store.GetProject(ctx, id, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.ProjectRecord{}, ErrNotFound
		}
		return storage.ProjectRecord{}, &PersistenceError{Op: "load project", Err: err}
	}
	return rec, nil
}

func (s *Service) toProject(rec storage.ProjectRecord) (Project, error) {
	sc, err := parseContext(rec.DBContextJSON)
	if err != nil {
		return Project{}, err
	}
	p := Project{
		ID:          rec.ID,
		Name:        rec.Name,
		Description: rec.Description,
		GeminiModel: rec.GeminiModel,
		Context:     sc,
		CreatedAt:   rec.CreatedAt,
	}
	if rec.CardDesignJSON != nil {
		p.CardDesign = json.RawMessage(*rec.CardDesignJSON)
	}
	return p, nil
}

func parseContext(raw string) (schema.Context, error) {
	var sc schema.Context
	if err := json.Unmarshal([]byte(raw), &sc); err != nil {
		return schema.Context{}, fmt.Errorf("parse stored schema context: %w", err)
	}
	return sc, nil
}
