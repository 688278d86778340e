package aiclient

import "fmt"

// ConnectionError reports a failed schema probe: backend unreachable,
// or the user's database rejected the credentials. The backend message
// goes back to the project-creation form as-is.
type ConnectionError struct {
	BackendMessage string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database connection failed: %s", e.BackendMessage)
}

// GenerationKind classifies why SQL generation failed. The mapping is
// substring-based because the backend reports errors as prose; keeping
// the brittle matching in one place is deliberate.
type GenerationKind string

const (
	GenerationTimeout          GenerationKind = "timeout"
	GenerationRateLimited      GenerationKind = "rate_limited"
	GenerationAuthFailure      GenerationKind = "auth_failure"
	GenerationInvalidStructure GenerationKind = "invalid_structure"
	GenerationForbidden        GenerationKind = "forbidden"
	GenerationUnknown          GenerationKind = "unknown"
)

// GenerationError is a failed SQL-generation call. Never retried
// automatically; the remediation text tells the user how to move on.
type GenerationError struct {
	Kind   GenerationKind
	Detail string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("sql generation failed (%s): %s", e.Kind, e.Detail)
}

// Remediation returns the user-facing guidance for this failure kind.
// Users get this instead of the raw backend error.
func (e *GenerationError) Remediation() string {
	switch e.Kind {
	case GenerationForbidden:
		return "Security restriction: only SELECT (read-only) queries are allowed.\n\n" +
			"Try asking questions like:\n" +
			"- 'Show me the first 10 products'\n" +
			"- 'Find products with price less than $50'\n" +
			"- 'What are the most popular categories?'\n\n" +
			"Avoid requests that would modify data (INSERT, UPDATE, DELETE)."
	case GenerationInvalidStructure:
		return "The generated query had an invalid structure. Try rephrasing your question " +
			"or being more specific about what you want to find."
	case GenerationTimeout:
		return "The request timed out. The AI backend took too long to respond; " +
			"try again with a simpler question."
	case GenerationRateLimited:
		return "Rate limit reached. Wait a moment before sending your next question."
	case GenerationAuthFailure:
		return "The AI provider rejected the project's API key. Check that the key " +
			"is valid and has not expired."
	default:
		return "Could not generate a query for that question. Try rephrasing it or " +
			"being more specific about what you want to find."
	}
}

// ExecutionError is a failed execution call: transport failure,
// timeout, or the backend reporting that the SQL did not run. It ends
// the turn but never retracts the generated SQL.
type ExecutionError struct {
	Detail string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %s", e.Detail)
}
