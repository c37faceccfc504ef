package toolserver

import (
	"errors"
	"fmt"
)

// errServerDisabled guards execution against servers an operator has
// switched off between resolution and invocation.
var errServerDisabled = errors.New("server is disabled")

// NotFoundError indicates that a server or tool name is not present in
// the registry, or that nothing enabled exposes the requested tool.
type NotFoundError struct {
	Kind string // "server" or "tool"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// AmbiguousToolError indicates that more than one enabled server
// exposes the same enabled tool name. Resolution refuses to pick a
// winner; the caller must disable one of the servers or rename.
type AmbiguousToolError struct {
	Tool    string
	Servers []string
}

func (e *AmbiguousToolError) Error() string {
	return fmt.Sprintf("tool %q is exposed by multiple enabled servers: %v", e.Tool, e.Servers)
}

// ExecutionError wraps a subprocess failure during tool invocation:
// startup failure, handshake timeout, abnormal exit, or a tool-reported
// error payload.
type ExecutionError struct {
	Server string
	Tool   string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("tool server %s: %v", e.Server, e.Err)
	}
	return fmt.Sprintf("tool %s on server %s: %v", e.Tool, e.Server, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
