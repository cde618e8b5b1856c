package agent

import (
	"context"
	"fmt"
)

// Tool is one answer strategy behind a uniform string-in/string-out
// interface. Name and Description are the only routing metadata: the
// dispatching language model picks a tool from them, the agent itself holds
// no branching logic beyond invoking the selection.
type Tool struct {
	Name        string
	Description string
	Func        func(ctx context.Context, input string) (string, error)
}

// QueryGenerationError reports that a generated Cypher query was invalid,
// not read-only, or referenced unknown schema. Tools degrade it to an
// explanatory answer instead of surfacing a store-level error to the user.
type QueryGenerationError struct {
	Query string
	Err   error
}

func (e *QueryGenerationError) Error() string {
	return fmt.Sprintf("cypher generation failed for query %q: %v", e.Query, e.Err)
}

func (e *QueryGenerationError) Unwrap() error { return e.Err }
