package project

import "fmt"

// PersistenceError wraps a failed project-store write. The attempt is
// reverted, nothing partial is left behind, and retrying from scratch
// is safe.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
