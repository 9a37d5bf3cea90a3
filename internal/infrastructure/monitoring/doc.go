/*
Package monitoring provides Prometheus metrics for the bridge.

# Overview

Each Metrics value owns a private registry carrying the Go runtime and
process collectors plus the bridge's own series:

  - HTTP request metrics (latency, throughput, size)
  - invocation outcomes by kind (tool or command) and error code
  - result store writes, reaps, evictions, and pending size
  - event stream clients and delivered events
  - uptime

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "tool")
	// ... run the invocation ...
	timer.Stop(monitoring.OutcomeSuccess)

Recording methods tolerate a nil *Metrics so components can run without
instrumentation.
*/
package monitoring
