package webview

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrClosed is returned when a script is dispatched to a closed window.
	ErrClosed = errors.New("webview window is closed")
	// ErrNotHTML is returned when a page file does not hold an HTML document.
	ErrNotHTML = errors.New("page is not an HTML document")
)

const blankURL = "about:blank"

// Config defines window configuration
type Config struct {
	ScriptTimeout time.Duration // Longest a single task may run before it is interrupted
	ConsoleBuffer int           // Console entries retained per window
	FetchTimeout  time.Duration // Timeout for fetch() requests made by page scripts
	QueueSize     int           // Pending tasks per window
}

// DefaultConfig returns the default window configuration
func DefaultConfig() Config {
	return Config{
		ScriptTimeout: 5 * time.Second,
		ConsoleBuffer: 1000,
		FetchTimeout:  10 * time.Second,
		QueueSize:     256,
	}
}

// Result holds the outcome of a synchronous Execute
type Result struct {
	Value    interface{}   // Exported return value
	Duration time.Duration // Execution time
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"timestamp"`
}

// DOMChange represents a DOM modification made by page scripts
type DOMChange struct {
	Type     string      `json:"type"` // set_attribute, remove_attribute, set_text, click
	Selector string      `json:"selector"`
	Property string      `json:"property,omitempty"`
	Value    interface{} `json:"value,omitempty"`
}

// Invoker dispatches host commands called from page scripts through
// window.__HOST__.invoke.
type Invoker interface {
	Invoke(ctx context.Context, command string, args json.RawMessage) (interface{}, error)
}
