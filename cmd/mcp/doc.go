// Package main is the stdio MCP server for webview-mcp.
//
// It advertises the webview tools to an MCP client and forwards each call
// to the gateway at GATEWAY_URL (default http://127.0.0.1:3001/api).
// Logs go to stderr because stdout carries the protocol.
//
// Usage:
//
//	GATEWAY_URL=http://127.0.0.1:3001/api ./mcp
package main
