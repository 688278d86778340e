package storage

import "time"

// ProjectRecord is one persisted project. Every credential field holds
// a cipher envelope, never plaintext; db_context and card_design are
// JSON blobs owned by the service layer.
type ProjectRecord struct {
	ID              string
	UserID          string
	Name            string
	Description     string
	EncDBUser       string
	EncDBPassword   string
	EncDBHost       string
	EncDBPort       string
	EncDBName       string
	EncTableName    string
	EncGeminiAPIKey string
	GeminiModel     string
	DBContextJSON   string
	CardDesignJSON  *string
	CreatedAt       time.Time
}
