// Package ws provides the WebSocket event stream.
//
// Each client receives a system greeting followed by every correlation
// lifecycle event (dispatched, completed, failed, timeout, result_stored)
// as a JSON text frame. Clients may send {"type":"ping"} and receive
// {"type":"pong"}. Slow clients miss events rather than stall publishers.
//
// Example Usage:
//
//	handler := ws.NewHandler(hub, metrics, logger)
//	router.GET("/api/stream", handler.HandleConnection)
package ws
