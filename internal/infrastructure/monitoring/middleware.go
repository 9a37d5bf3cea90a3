package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection. Requests are
// labelled by route pattern, falling back to "unmatched" for 404s so
// arbitrary paths cannot grow the label set.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		respSize := int64(c.Writer.Size())
		if respSize < 0 {
			respSize = 0
		}

		metrics.RecordHTTPRequest(method, path, status, time.Since(start), reqSize, respSize)
	}
}

// Timer measures one invocation
type Timer struct {
	start   time.Time
	metrics *Metrics
	kind    string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, kind string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		kind:    kind,
	}
}

// Stop records the invocation with outcome and returns the elapsed time.
func (t *Timer) Stop(outcome string) time.Duration {
	d := time.Since(t.start)
	t.metrics.RecordInvocation(t.kind, outcome, d)
	return d
}
