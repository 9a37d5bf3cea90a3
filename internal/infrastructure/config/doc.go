// Package config provides 12-factor configuration management for the bridge.
//
// Configuration is loaded from environment variables with sensible defaults.
//
// Configuration Sections:
//   - Server: gateway bind address (BRIDGE_HOST, BRIDGE_PORT)
//   - Bridge: correlation wait budget and callback URL
//   - Results: result store expiry and size bound
//   - Webview: embedded rendering surface settings
//   - Logging: Log level and output format
//   - RateLimit: per-IP or global rate limiting configuration
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Gateway listening on %s\n", cfg.Server.Addr())
//
// The MCP front end loads a separate ClientConfig (GATEWAY_URL,
// GATEWAY_TIMEOUT) via LoadClient.
package config
