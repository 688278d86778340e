package aiclient

import "strings"

// Classify maps a backend error message onto a GenerationKind. The
// phrases are the ones the backend actually emits; changing them breaks
// wire compatibility, so they stay verbatim.
func Classify(detail string) GenerationKind {
	switch {
	case strings.Contains(detail, "Only SELECT queries are allowed"):
		return GenerationForbidden
	case strings.Contains(detail, "Invalid SQL query structure"):
		return GenerationInvalidStructure
	case strings.Contains(detail, "timeout"), strings.Contains(detail, "Timeout"):
		return GenerationTimeout
	case strings.Contains(detail, "rate limit"), strings.Contains(detail, "Rate limit"):
		return GenerationRateLimited
	case strings.Contains(detail, "API key"), strings.Contains(detail, "authentication"):
		return GenerationAuthFailure
	default:
		return GenerationUnknown
	}
}
