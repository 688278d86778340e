// Package chat runs one question through the full
// generate-then-execute pipeline against the AI backend.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"querydeck/internal/aiclient"
	"querydeck/internal/metrics"
	"querydeck/internal/project"
	"querydeck/internal/schema"
)

// Failure describes how a turn ended when it did not produce rows.
// Message is user-facing guidance, never a raw error dump.
type Failure struct {
	Stage   string                   `json:"stage"` // "generation" or "execution"
	Kind    aiclient.GenerationKind  `json:"kind,omitempty"`
	Message string                   `json:"message"`
	Detail  string                   `json:"detail,omitempty"`
}

// Turn is the transient result of one question. Turns carry their own
// identity so concurrent turns from the same user can never have their
// results attributed to the wrong question. A turn that failed during
// execution still carries the SQL that generation produced.
type Turn struct {
	ID         string           `json:"id"`
	ProjectID  string           `json:"project_id"`
	Question   string           `json:"question"`
	SQL        string           `json:"sql_query,omitempty"`
	Confidence string           `json:"confidence,omitempty"`
	Rows       []map[string]any `json:"rows,omitempty"`
	RowCount   int              `json:"row_count"`
	Failure    *Failure         `json:"failure,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
}

type Orchestrator struct {
	projects *project.Service
	ai       *aiclient.Client
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

type Config struct {
	Projects *project.Service
	AI       *aiclient.Client
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

func NewOrchestrator(cfg Config) *Orchestrator {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	return &Orchestrator{
		projects: cfg.Projects,
		ai:       cfg.AI,
		logger:   cfg.Logger,
		metrics:  m,
	}
}

// Ask runs one turn: filter the schema context, generate SQL, then
// execute it. Generation strictly precedes execution; neither call is
// ever retried automatically. Pipeline failures are folded into
// Turn.Failure; a non-nil error means the turn could not start at all
// (unknown project, unreadable credentials, store trouble).
func (o *Orchestrator) Ask(ctx context.Context, userID, projectID, question string) (Turn, error) {
	turn := Turn{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Question:  question,
		StartedAt: time.Now().UTC(),
	}
	o.metrics.TurnsTotal.Inc()

	sc, err := o.projects.SchemaContext(ctx, userID, projectID)
	if err != nil {
		return Turn{}, err
	}
	// Filtering happens here, not in the caller: even a context loaded
	// with disallowed columns must never reach the generation request.
	filtered := schema.Filter(sc)

	apiKey, err := o.projects.APIKey(ctx, userID, projectID)
	if err != nil {
		return Turn{}, err
	}

	gen, err := o.ai.GenerateSQL(ctx, question, filtered, apiKey)
	if err != nil {
		var genErr *aiclient.GenerationError
		if errors.As(err, &genErr) {
			o.metrics.TurnFailures.WithLabelValues(string(genErr.Kind)).Inc()
			o.logger.Warn().
				Str("turn_id", turn.ID).
				Str("project_id", projectID).
				Str("kind", string(genErr.Kind)).
				Msg("sql generation failed")
			turn.Failure = &Failure{
				Stage:   "generation",
				Kind:    genErr.Kind,
				Message: genErr.Remediation(),
				Detail:  genErr.Detail,
			}
			return turn, nil
		}
		return Turn{}, err
	}
	turn.SQL = gen.SQLQuery
	turn.Confidence = gen.Confidence

	creds, err := o.projects.ExecutionCredentials(ctx, userID, projectID)
	if err != nil {
		return Turn{}, err
	}

	res, err := o.ai.ExecuteSQL(ctx, creds, turn.SQL)
	if err != nil {
		var execErr *aiclient.ExecutionError
		if errors.As(err, &execErr) {
			o.metrics.TurnFailures.WithLabelValues("execution").Inc()
			o.logger.Warn().
				Str("turn_id", turn.ID).
				Str("project_id", projectID).
				Msg("query execution failed")
			// The generated SQL stays on the turn: an execution failure
			// never retracts it.
			turn.Failure = &Failure{
				Stage:   "execution",
				Message: "Query failed: " + execErr.Detail,
				Detail:  execErr.Detail,
			}
			return turn, nil
		}
		return Turn{}, err
	}

	turn.Rows = res.Data
	turn.RowCount = res.RowCount
	o.logger.Info().
		Str("turn_id", turn.ID).
		Str("project_id", projectID).
		Int("row_count", turn.RowCount).
		Str("confidence", turn.Confidence).
		Msg("turn completed")
	return turn, nil
}
