package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/GriffinCanCode/webview-mcp/internal/client"
	"github.com/GriffinCanCode/webview-mcp/internal/correlator"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/tracing"
	"github.com/bytedance/sonic"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// InvokeCommandTool forwards to the gateway's host command endpoint.
const InvokeCommandTool = "invoke_command"

var errArgsNotObject = errors.New("arguments must be a JSON object")

// Gateway is the subset of the gateway client the server needs.
type Gateway interface {
	Execute(ctx context.Context, tool string, params interface{}) *client.Response
	Invoke(ctx context.Context, command string, args interface{}) *client.Response
}

// Server exposes gateway tools over MCP.
type Server struct {
	catalog *Catalog
	gateway Gateway
	logger  *zap.Logger
	server  *mcp.Server
}

// NewServer registers every catalog tool plus invoke_command.
func NewServer(catalog *Catalog, gateway Gateway, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    catalog.Server.Name,
		Version: catalog.Server.Version,
	}, nil)
	s := &Server{
		catalog: catalog,
		gateway: gateway,
		logger:  logger,
		server:  srv,
	}

	for _, tool := range catalog.Tools {
		s.server.AddTool(&mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: tool.ReadOnly},
		}, s.executeHandler(tool))
	}
	s.server.AddTool(&mcp.Tool{
		Name:        InvokeCommandTool,
		Description: "Invoke a command registered by the host application and return its result.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{"type": "string", "description": "Command name"},
				"args":    map[string]any{"type": "object", "description": "Command arguments"},
			},
			"required": []string{"command"},
		},
	}, s.invokeHandler)

	return s
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server {
	return s.server
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) executeHandler(tool ToolSpec) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := decodeArgs(req.Params.Arguments)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		if err := tool.Check(args); err != nil {
			return errorResult(err.Error()), nil
		}

		ctx = tracing.Ensure(ctx)
		s.logger.Debug("Handling tool call",
			zap.String("tool", tool.Name),
			zap.String("trace_id", string(tracing.GetTraceID(ctx))))
		return s.respond(ctx, tool.Name, s.gateway.Execute(ctx, tool.Name, args)), nil
	}
}

func (s *Server) invokeHandler(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decodeArgs(req.Params.Arguments)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	command, _ := args["command"].(string)
	if command == "" {
		return errorResult("Validation error: command: Required"), nil
	}

	var cmdArgs interface{}
	if v, ok := args["args"]; ok && v != nil {
		cmdArgs = v
	}
	ctx = tracing.Ensure(ctx)
	s.logger.Debug("Handling command call",
		zap.String("command", command),
		zap.String("trace_id", string(tracing.GetTraceID(ctx))))
	return s.respond(ctx, command, s.gateway.Invoke(ctx, command, cmdArgs)), nil
}

func (s *Server) respond(ctx context.Context, name string, resp *client.Response) *mcp.CallToolResult {
	if resp.Success {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: pretty(resp.Data)}},
		}
	}

	msg := ErrorMessage(resp.Error)
	s.logger.Warn("Tool call failed",
		zap.String("name", name),
		zap.String("trace_id", string(tracing.GetTraceID(ctx))),
		zap.String("error", msg))
	return errorResult(msg)
}

// ErrorMessage renders a gateway error the way MCP clients see it.
func ErrorMessage(e *client.ErrorBody) string {
	if e == nil {
		return "Unknown error occurred"
	}
	switch e.Code {
	case string(correlator.CodeInjectionFailed):
		return "Webview is not ready: " + e.Message
	case string(correlator.CodeExecutionError):
		return "Execution error: " + e.Message
	case client.CodeTimeout:
		return "Operation timed out"
	case client.CodeConnectionError:
		return "Connection error: " + e.Message
	default:
		return e.Message
	}
}

func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return args, nil
	}
	if err := sonic.Unmarshal(trimmed, &args); err != nil || args == nil {
		return nil, errArgsNotObject
	}
	return args, nil
}

func pretty(data json.RawMessage) string {
	if len(data) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
