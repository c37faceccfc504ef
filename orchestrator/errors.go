package orchestrator

import "fmt"

// LoopLimitError is the distinct terminal outcome for a turn that hit
// the iteration cap while the provider kept requesting tools. Callers
// can message the end user differently from a hard failure.
type LoopLimitError struct {
	Iterations int
}

func (e *LoopLimitError) Error() string {
	return fmt.Sprintf("tool-call loop exceeded %d iterations without a terminal answer", e.Iterations)
}

// CancelledError reports a turn aborted by context cancellation or
// deadline. The turn's state is discarded; nothing half-mutated is
// visible to the caller.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("turn cancelled: %v", e.Err)
}

func (e *CancelledError) Unwrap() error {
	return e.Err
}

// ValidationError reports a request rejected before any network or
// subprocess activity.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
