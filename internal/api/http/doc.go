// Package http provides the gateway's HTTP handlers and router.
//
// Routes:
//   - GET  /api/health   {status, webview_ready}
//   - GET  /api/stats    store, stream and command counters
//   - POST /api/execute  {tool, params} -> envelope
//   - POST /api/invoke   {command, args} -> envelope
//   - POST /api/results  {id, result} -> 200, empty body
//   - GET  /api/stream   WebSocket event feed (when configured)
//   - GET  /metrics      Prometheus exposition
//
// Invocation failures are reported inside the envelope with status 200;
// only unreadable request bodies produce 400.
package http
