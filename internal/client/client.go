package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/tracing"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Error codes produced on the client side. Codes returned by the gateway
// are passed through unchanged.
const (
	CodeConnectionError = "CONNECTION_ERROR"
	CodeTimeout         = "TIMEOUT"
	CodeUnknown         = "UNKNOWN_ERROR"
)

const (
	userAgent      = "webview-mcp-client/1.0"
	healthTimeout  = 5 * time.Second
	tripAfter      = 5
	breakerTimeout = 10 * time.Second
)

// ErrorBody is the error half of the gateway envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the gateway envelope.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorBody      `json:"error"`
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status       string `json:"status"`
	WebviewReady bool   `json:"webview_ready"`
}

// Healthy reports whether the gateway is up with a surface attached.
func (h *HealthStatus) Healthy() bool {
	return h != nil && h.Status == "healthy" && h.WebviewReady
}

type executeBody struct {
	Tool   string      `json:"tool"`
	Params interface{} `json:"params"`
}

type invokeBody struct {
	Command string      `json:"command"`
	Args    interface{} `json:"args,omitempty"`
}

// Client talks to the bridge gateway. Invocations never return a Go
// error: every failure is folded into a Response.
type Client struct {
	baseURL string
	timeout time.Duration
	resty   *resty.Client
	retry   *retryablehttp.Client
	breaker *resilience.Breaker
	logger  *zap.Logger
}

// New creates a gateway client rooted at baseURL (for example
// http://127.0.0.1:3001/api).
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL = strings.TrimRight(baseURL, "/")

	// Health probes are idempotent and retried; invocations are not.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = time.Second
	retryClient.Logger = nil

	restyClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", userAgent).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	c := &Client{
		baseURL: baseURL,
		timeout: timeout,
		resty:   restyClient,
		retry:   retryClient,
		logger:  logger,
	}
	c.breaker = resilience.New("gateway", resilience.Settings{
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Gateway circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// BaseURL returns the gateway root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Execute runs a capability tool through POST /execute.
func (c *Client) Execute(ctx context.Context, tool string, params interface{}) *Response {
	if params == nil {
		params = map[string]interface{}{}
	}
	return c.post(ctx, "/execute", executeBody{Tool: tool, Params: params})
}

// Invoke runs a host command through POST /invoke.
func (c *Client) Invoke(ctx context.Context, command string, args interface{}) *Response {
	return c.post(ctx, "/invoke", invokeBody{Command: command, Args: args})
}

func (c *Client) post(ctx context.Context, path string, body interface{}) *Response {
	c.logger.Debug("Sending gateway request",
		zap.String("path", path),
		zap.String("trace_id", string(tracing.GetTraceID(ctx))))

	var resp *resty.Response
	err := c.breaker.Do(func() error {
		req := c.resty.R().SetContext(ctx).SetBody(body)
		tracing.Inject(ctx, req.Header)
		var err error
		resp, err = req.Post(path)
		return err
	})
	if err != nil {
		return c.transportFailure(path, err)
	}

	var env Response
	if err := sonic.Unmarshal(resp.Body(), &env); err != nil || (!env.Success && env.Error == nil) {
		if resp.IsError() {
			return failure(CodeUnknown, fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), http.StatusText(resp.StatusCode())))
		}
		return failure(CodeUnknown, "malformed gateway response")
	}
	if env.Success && len(env.Data) == 0 {
		env.Data = json.RawMessage("null")
	}
	return &env
}

func (c *Client) transportFailure(path string, err error) *Response {
	c.logger.Debug("Gateway request failed", zap.String("path", path), zap.Error(err))

	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return failure(CodeConnectionError, "bridge gateway unavailable: circuit breaker open")
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return failure(CodeTimeout, fmt.Sprintf("Request timed out after %dms", c.timeout.Milliseconds()))
	}

	return failure(CodeConnectionError,
		fmt.Sprintf("Failed to connect to the bridge gateway at %s. Make sure the server is running: %v", c.baseURL, err))
}

// Health fetches GET /health. Transient failures are retried.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("build health request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.retry.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check: HTTP %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}

	var status HealthStatus
	if err := sonic.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("health check: decode: %w", err)
	}
	return &status, nil
}

// Ready reports whether the gateway is healthy and has a surface attached.
func (c *Client) Ready(ctx context.Context) bool {
	status, err := c.Health(ctx)
	return err == nil && status.Healthy()
}

func failure(code, message string) *Response {
	return &Response{Success: false, Error: &ErrorBody{Code: code, Message: message}}
}
