/*
Package tracing carries a trace id from the MCP front end through the
gateway to the correlator's logs and events.

# Usage

	tracer := tracing.New("gateway", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	// Outgoing requests
	tracing.Inject(ctx, req.Header)

	// Manual span creation
	span, ctx := tracer.StartSpan(ctx, "operation")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

# Trace Format

Traces use HTTP headers for propagation:
- X-Trace-ID: identifies the whole request flow
- X-Span-ID: identifies the calling operation

Finished spans are logged by a collector goroutine; when its buffer
(1000 spans) is full, new spans are dropped with a warning.
*/
package tracing
