package engine

import "errors"

// Turn failure kinds. ProcessTurn converts every collaborator failure
// into one of these before returning; callers log the kind and show the
// user FallbackAnswer, never the raw error.
var (
	// ErrRetrievalUnavailable indicates the corpus index could not be
	// queried (missing, corrupt, or unreachable).
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrTemplateBinding indicates a prompt template could not be fully
	// bound. Unreachable with well-formed templates; it signals broken
	// configuration, not a user condition.
	ErrTemplateBinding = errors.New("template binding error")

	// ErrGenerationUnavailable indicates the model call failed at the
	// transport or auth level.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrGenerationTimeout indicates the model call exceeded the
	// configured deadline. The only kind eligible for retry.
	ErrGenerationTimeout = errors.New("generation timeout")
)

// FallbackAnswer is the fixed user-facing answer for any failed turn.
const FallbackAnswer = "I apologize, but I encountered an error while processing your request. Please try again."

// Kind names the failure kind of err for structured logging.
// Returns "none" for nil and "internal" for unclassified errors.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrRetrievalUnavailable):
		return "retrieval_unavailable"
	case errors.Is(err, ErrTemplateBinding):
		return "template_binding"
	case errors.Is(err, ErrGenerationTimeout):
		return "generation_timeout"
	case errors.Is(err, ErrGenerationUnavailable):
		return "generation_unavailable"
	default:
		return "internal"
	}
}
