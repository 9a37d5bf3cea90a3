// Package main is the entry point for the webview-mcp gateway.
//
// It opens the "main" window, loads a page into it (the built-in demo page
// or -page), registers the demo host commands and serves the HTTP gateway:
//
//	POST /api/execute   run a capability tool and wait for its result
//	POST /api/invoke    run a host command through the page
//	POST /api/results   result callback used by injected scripts
//	GET  /api/health    liveness and surface availability
//	GET  /api/stats     store, stream and command counters
//	GET  /api/stream    WebSocket feed of invocation events
//	GET  /metrics       Prometheus metrics
//
// Configuration:
//   - Environment variables (BRIDGE_HOST, BRIDGE_PORT, WEBVIEW_PAGE, ...)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Built-in demo page
//	./server
//
//	# Serve a local page and reload it on change
//	./server -page ./index.html -watch -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
