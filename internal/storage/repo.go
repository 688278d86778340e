package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

var projectColumns = []string{
	"id", "user_id", "name", "description",
	"enc_db_user", "enc_db_password", "enc_db_host", "enc_db_port",
	"enc_db_name", "enc_table_name", "enc_gemini_api_key",
	"gemini_model", "db_context", "card_design", "created_at",
}

// InsertProject writes one project as a single atomic insert and
// returns its id.
func (s *Store) InsertProject(ctx context.Context, p ProjectRecord) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	q := s.sql.Insert("projects").
		Columns("id", "user_id", "name", "description",
			"enc_db_user", "enc_db_password", "enc_db_host", "enc_db_port",
			"enc_db_name", "enc_table_name", "enc_gemini_api_key",
			"gemini_model", "db_context", "card_design").
		Values(p.ID, p.UserID, p.Name, p.Description,
			p.EncDBUser, p.EncDBPassword, p.EncDBHost, p.EncDBPort,
			p.EncDBName, p.EncTableName, p.EncGeminiAPIKey,
			p.GeminiModel, p.DBContextJSON, p.CardDesignJSON)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return "", fmt.Errorf("build project insert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return "", fmt.Errorf("insert project: %w", err)
	}
	return p.ID, nil
}

// GetProject loads one project scoped to its owner.
func (s *Store) GetProject(ctx context.Context, id, userID string) (ProjectRecord, error) {
	q := s.sql.Select(projectColumns...).
		From("projects").
		Where(sq.Eq{"id": id, "user_id": userID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return ProjectRecord{}, fmt.Errorf("build project query: %w", err)
	}

	p, err := scanProject(s.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ProjectRecord{}, ErrNotFound
		}
		return ProjectRecord{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjects returns all of a user's projects, newest first.
func (s *Store) ListProjects(ctx context.Context, userID string) ([]ProjectRecord, error) {
	q := s.sql.Select(projectColumns...).
		From("projects").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list projects query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := make([]ProjectRecord, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project rows: %w", err)
	}
	return out, nil
}

// UpdateSchemaContext replaces the stored db_context blob. Concurrent
// writers race here; last write wins.
func (s *Store) UpdateSchemaContext(ctx context.Context, id, userID, contextJSON string) error {
	return s.updateField(ctx, id, userID, "db_context", contextJSON)
}

// UpdateCardDesign replaces the stored card_design blob.
func (s *Store) UpdateCardDesign(ctx context.Context, id, userID, designJSON string) error {
	return s.updateField(ctx, id, userID, "card_design", designJSON)
}

func (s *Store) updateField(ctx context.Context, id, userID, column string, value any) error {
	q := s.sql.Update("projects").
		Set(column, value).
		Where(sq.Eq{"id": id, "user_id": userID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s update query: %w", column, err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProject removes the project and, with it, the encrypted
// credential bundle.
func (s *Store) DeleteProject(ctx context.Context, id, userID string) error {
	q := s.sql.Delete("projects").Where(sq.Eq{"id": id, "user_id": userID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete project query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(r rowScanner) (ProjectRecord, error) {
	var p ProjectRecord
	var cardDesign sql.NullString
	if err := r.Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.Description,
		&p.EncDBUser,
		&p.EncDBPassword,
		&p.EncDBHost,
		&p.EncDBPort,
		&p.EncDBName,
		&p.EncTableName,
		&p.EncGeminiAPIKey,
		&p.GeminiModel,
		&p.DBContextJSON,
		&cardDesign,
		&p.CreatedAt,
	); err != nil {
		return ProjectRecord{}, err
	}
	if cardDesign.Valid {
		p.CardDesignJSON = &cardDesign.String
	}
	return p, nil
}
