// Package commands provides the host command registry.
//
// Commands are named handlers taking JSON args. A surface reaches them
// through window.__HOST__.invoke(name, args); the registry satisfies the
// webview.Invoker interface for that purpose.
//
// Built-ins:
//   - store_execution_result: alternative result ingestion path
//
// Example Usage:
//
//	registry := commands.NewRegistry(logger)
//	registry.MustRegister(commands.StoreResult(store))
//	manager.SetInvoker(registry)
package commands
