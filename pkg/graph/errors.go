package graph

import "fmt"

// ConnectionError reports a failure to establish or maintain the database
// connection. It is fatal to the current operation and surfaced as-is.
type ConnectionError struct {
	URI string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("graph connection to %s failed: %v", e.URI, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// WriteError reports a failed write transaction. The record is not
// persisted; callers decide whether to retry, never this package.
type WriteError struct {
	Op    string
	Title string
	Err   error
}

func (e *WriteError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("%s failed for %q: %v", e.Op, e.Title, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
