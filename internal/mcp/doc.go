/*
Package mcp serves the webview tools over the Model Context Protocol.

The tool list comes from an embedded YAML catalog (catalog.yaml). Every
catalog tool is forwarded to the gateway's /execute endpoint and
invoke_command is forwarded to /invoke. Gateway failures are returned as
MCP tool errors:

	TIMEOUT          -> "Operation timed out"
	CONNECTION_ERROR -> "Connection error: <message>"
	anything else    -> the gateway message
*/
package mcp
