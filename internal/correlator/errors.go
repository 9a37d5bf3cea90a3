package correlator

import (
	"errors"
	"fmt"
)

// Code classifies an invocation failure.
type Code string

const (
	// CodeInjectionFailed means the capability script could not be injected,
	// usually because no surface exists yet.
	CodeInjectionFailed Code = "INSPECTOR_INJECTION_FAILED"
	// CodeExecutionError means the surface refused the wrapper script.
	CodeExecutionError Code = "EXECUTION_ERROR"
	// CodeToolError means the tool ran and reported a failure.
	CodeToolError Code = "TOOL_ERROR"
	// CodeTimeout means no result arrived within the wait budget.
	CodeTimeout Code = "TIMEOUT"
)

const (
	msgTimeout      = "Timeout waiting for tool execution result"
	msgUnknownError = "Unknown error"
)

// ErrEmptyName is returned for a request without a tool or command name.
var ErrEmptyName = errors.New("tool name must not be empty")

// Error is a classified invocation failure.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
