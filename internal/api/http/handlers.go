package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/GriffinCanCode/webview-mcp/internal/correlator"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Invoker runs tools and host commands on the active surface.
type Invoker interface {
	Invoke(ctx context.Context, req correlator.Request) (json.RawMessage, error)
	InvokeCommand(ctx context.Context, command string, args json.RawMessage) (json.RawMessage, error)
}

// Readiness reports whether a surface is available.
type Readiness interface {
	Ready() bool
}

// StatsFunc returns a snapshot for the stats endpoint.
type StatsFunc func() map[string]interface{}

// Handlers contains the gateway's HTTP handlers
type Handlers struct {
	invoker Invoker
	ready   Readiness
	sink    *ResultSink
	stats   StatsFunc
	logger  *zap.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(invoker Invoker, ready Readiness, sink *ResultSink, stats StatsFunc, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		invoker: invoker,
		ready:   ready,
		sink:    sink,
		stats:   stats,
		logger:  logger,
	}
}

// Health reports liveness and surface availability
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		WebviewReady: h.ready.Ready(),
	})
}

// Execute runs a capability tool and waits for its result
func (h *Handlers) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure(CodeInvalidRequest, "Invalid request: "+err.Error()))
		return
	}
	if isAbsent(req.Params) {
		req.Params = json.RawMessage(`{}`)
	}

	data, err := h.invoker.Invoke(c.Request.Context(), correlator.Request{Tool: req.Tool, Params: req.Params})
	if err != nil {
		c.JSON(http.StatusOK, failureFrom(err))
		return
	}
	c.JSON(http.StatusOK, success(data))
}

// Invoke runs a host command through the surface
func (h *Handlers) Invoke(c *gin.Context) {
	var req InvokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure(CodeInvalidRequest, "Invalid request: "+err.Error()))
		return
	}

	data, err := h.invoker.InvokeCommand(c.Request.Context(), req.Command, req.Args)
	if err != nil {
		c.JSON(http.StatusOK, failureFrom(err))
		return
	}
	c.JSON(http.StatusOK, success(data))
}

// StoreResult accepts a result posted by an injected script
func (h *Handlers) StoreResult(c *gin.Context) {
	var req ResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Rejected result callback", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}

	h.sink.Put(req.ID, req.Result)
	c.Status(http.StatusOK)
}

// Stats returns a snapshot of bridge internals in the envelope
func (h *Handlers) Stats(c *gin.Context) {
	stats := map[string]interface{}{}
	if h.stats != nil {
		stats = h.stats()
	}

	data, err := sonic.Marshal(stats)
	if err != nil {
		h.logger.Error("Failed to encode stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, failure(string(correlator.CodeExecutionError), err.Error()))
		return
	}
	c.JSON(http.StatusOK, success(data))
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
