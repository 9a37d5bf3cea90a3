package http

import (
	"encoding/json"
	"errors"

	"github.com/GriffinCanCode/webview-mcp/internal/correlator"
)

// CodeInvalidRequest marks a request body the gateway could not accept.
const CodeInvalidRequest = "INVALID_REQUEST"

// Envelope is the response shape of /api/execute, /api/invoke and
// /api/stats. Data
// and Error are always present; the unused one is null.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorBody      `json:"error"`
}

// ErrorBody describes a failed invocation.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExecuteRequest runs a capability tool.
type ExecuteRequest struct {
	Tool   string          `json:"tool" binding:"required"`
	Params json.RawMessage `json:"params"`
}

// InvokeRequest runs a host command through the surface.
type InvokeRequest struct {
	Command string          `json:"command" binding:"required"`
	Args    json.RawMessage `json:"args"`
}

// ResultRequest is what injected scripts POST back.
type ResultRequest struct {
	ID     string          `json:"id" binding:"required"`
	Result json.RawMessage `json:"result"`
}

// HealthResponse reports liveness and whether a surface is available.
type HealthResponse struct {
	Status       string `json:"status"`
	WebviewReady bool   `json:"webview_ready"`
}

func success(data json.RawMessage) Envelope {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return Envelope{Success: true, Data: data}
}

func failure(code, message string) Envelope {
	return Envelope{Success: false, Error: &ErrorBody{Code: code, Message: message}}
}

// failureFrom maps an invocation error onto the envelope.
func failureFrom(err error) Envelope {
	var e *correlator.Error
	if errors.As(err, &e) {
		return failure(string(e.Code), e.Message)
	}
	if errors.Is(err, correlator.ErrEmptyName) {
		return failure(CodeInvalidRequest, err.Error())
	}
	return failure(string(correlator.CodeExecutionError), err.Error())
}
