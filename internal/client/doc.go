// Package client is the HTTP client for the bridge gateway used by the MCP
// front end. Execute and Invoke always return an envelope: transport
// failures become CONNECTION_ERROR and client timeouts become TIMEOUT.
package client
