package correlator

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/GriffinCanCode/webview-mcp/internal/events"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/tracing"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	kindTool    = "tool"
	kindCommand = "command"

	methodExecute = "execute"
	methodInvoke  = "invoke"
)

// Injector delivers scripts to the active surface.
type Injector interface {
	EnsureCapability() error
	RunFireAndForget(code string) error
}

// Results is the side channel results arrive on.
type Results interface {
	TakeIfPresent(id string) (json.RawMessage, bool)
	Changed() <-chan struct{}
}

// Options bound the wait for a result.
type Options struct {
	MaxAttempts  int
	PollInterval time.Duration
	CallbackURL  string
}

// Request names a capability tool and its parameters.
type Request struct {
	Tool   string          `json:"tool"`
	Params json.RawMessage `json:"params"`
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithMetrics records invocation counts and latency.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Correlator) { c.metrics = m }
}

// WithEvents publishes lifecycle events to hub.
func WithEvents(hub *events.Hub) Option {
	return func(c *Correlator) { c.events = hub }
}

// WithIDs overrides the correlation id generator.
func WithIDs(fn func() string) Option {
	return func(c *Correlator) { c.newID = fn }
}

// Correlator turns a fire-and-forget script dispatch into a
// request/response call. Each invocation gets a fresh id, the script
// posts its outcome back under that id, and the caller waits on the
// result store until the entry appears or the budget runs out.
type Correlator struct {
	injector Injector
	results  Results
	opts     Options
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	events   *events.Hub
	newID    func() string
}

// New creates a correlator.
func New(injector Injector, results Results, opts Options, logger *zap.Logger, options ...Option) *Correlator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 50
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	c := &Correlator{
		injector: injector,
		results:  results,
		opts:     opts,
		logger:   logger,
		newID:    uuid.NewString,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Budget is the longest Invoke waits for a result.
func (c *Correlator) Budget() time.Duration {
	return time.Duration(c.opts.MaxAttempts) * c.opts.PollInterval
}

// Invoke runs a capability tool on the active surface and returns its data.
func (c *Correlator) Invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	return c.call(ctx, kindTool, methodExecute, req.Tool, req.Params)
}

// InvokeCommand runs a host command through the surface's host invoke API.
// Missing args default to an empty object.
func (c *Correlator) InvokeCommand(ctx context.Context, command string, args json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage(`{}`)
	}
	return c.call(ctx, kindCommand, methodInvoke, command, args)
}

func (c *Correlator) call(ctx context.Context, kind, method, name string, payload json.RawMessage) (json.RawMessage, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Code: CodeTimeout, Message: msgTimeout, Err: err}
	}

	timer := monitoring.NewTimer(c.metrics, kind)
	traceID := string(tracing.GetTraceID(ctx))

	if err := c.injector.EnsureCapability(); err != nil {
		return nil, c.fail(timer, "", traceID, name, &Error{
			Code:    CodeInjectionFailed,
			Message: "Failed to inject inspector: " + err.Error(),
			Err:     err,
		})
	}

	id := c.newID()
	script, err := buildWrapper(id, c.opts.CallbackURL, method, name, payload)
	if err != nil {
		return nil, c.fail(timer, id, traceID, name, &Error{Code: CodeExecutionError, Message: err.Error(), Err: err})
	}
	if err := c.injector.RunFireAndForget(script); err != nil {
		return nil, c.fail(timer, id, traceID, name, &Error{Code: CodeExecutionError, Message: err.Error(), Err: err})
	}

	c.logger.Debug("Dispatched invocation",
		zap.String("id", id),
		zap.String("trace_id", traceID),
		zap.String("kind", kind),
		zap.String("name", name))
	c.events.Publish(events.Event{Type: events.Dispatched, ID: id, TraceID: traceID, Tool: name})

	raw, err := c.await(ctx, id)
	if err != nil {
		return nil, c.fail(timer, id, traceID, name, err)
	}

	data, err := classify(raw)
	if err != nil {
		return nil, c.fail(timer, id, traceID, name, err)
	}

	d := timer.Stop(monitoring.OutcomeSuccess)
	c.events.Publish(events.Event{Type: events.Completed, ID: id, TraceID: traceID, Tool: name, DurationMS: d.Milliseconds()})
	return data, nil
}

// await polls for id. Attempts are counted on the poll schedule only; a
// store notification triggers an extra check without using one up.
func (c *Correlator) await(ctx context.Context, id string) (json.RawMessage, error) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	attempts := 1
	for {
		changed := c.results.Changed()
		if raw, ok := c.results.TakeIfPresent(id); ok {
			return raw, nil
		}
		if attempts >= c.opts.MaxAttempts {
			return nil, &Error{Code: CodeTimeout, Message: msgTimeout}
		}

		select {
		case <-ctx.Done():
			return nil, &Error{Code: CodeTimeout, Message: msgTimeout, Err: ctx.Err()}
		case <-changed:
		case <-ticker.C:
			attempts++
		}
	}
}

func (c *Correlator) fail(timer *monitoring.Timer, id, traceID, name string, err error) error {
	code, _ := CodeOf(err)
	d := timer.Stop(string(code))

	typ := events.Failed
	if code == CodeTimeout {
		typ = events.TimedOut
	}
	c.logger.Warn("Invocation failed",
		zap.String("id", id),
		zap.String("trace_id", traceID),
		zap.String("name", name),
		zap.String("code", string(code)),
		zap.Duration("elapsed", d),
		zap.Error(err))
	c.events.Publish(events.Event{
		Type:       typ,
		ID:         id,
		TraceID:    traceID,
		Tool:       name,
		Code:       string(code),
		Message:    err.Error(),
		DurationMS: d.Milliseconds(),
	})
	return err
}

// classify interprets a stored result. A {success:true,data} envelope
// yields data and {success:false,error:{message}} becomes a tool error.
// Anything else is returned unchanged.
func classify(raw json.RawMessage) (json.RawMessage, error) {
	var env map[string]json.RawMessage
	if err := sonic.Unmarshal(raw, &env); err != nil || env == nil {
		return raw, nil
	}

	switch string(bytes.TrimSpace(env["success"])) {
	case "true":
		if data, ok := env["data"]; ok {
			if len(data) == 0 {
				return json.RawMessage("null"), nil
			}
			return data, nil
		}
	case "false":
		var detail map[string]json.RawMessage
		if err := sonic.Unmarshal(env["error"], &detail); err == nil && detail != nil {
			msg := msgUnknownError
			var s *string
			if err := sonic.Unmarshal(detail["message"], &s); err == nil && s != nil {
				msg = *s
			}
			return nil, &Error{Code: CodeToolError, Message: msg}
		}
	}
	return raw, nil
}
