/*
Package webview is an in-process, script-capable rendering surface.

A Manager owns labelled windows. Each Window runs a goja runtime on its
own event-loop goroutine and exposes a browser-shaped global scope over
a goquery-parsed document:

  - window / self / globalThis
  - console (captured into a bounded buffer)
  - setTimeout / setInterval and their clear functions
  - fetch, backed by a resty client with a retrying transport
  - document with CSS (querySelector) and XPath (evaluateXPath) lookup,
    element proxies, and event dispatch
  - location
  - __HOST__.invoke(command, args), routed to the Manager's Invoker

Eval is fire-and-forget: it compiles the script, queues it, and reports
only whether the window accepted it. Every task is interrupted after
Config.ScriptTimeout so a runaway script cannot wedge the loop.

Navigation builds a fresh runtime, runs the registered init scripts, then
the page's inline scripts in document order, then dispatches
DOMContentLoaded.

Example:

	m := webview.NewManager(webview.DefaultConfig(), logger)
	w, err := m.Open(ctx, "main")
	if err != nil {
		return err
	}
	if err := w.LoadFile(ctx, "index.html"); err != nil {
		return err
	}
	res, err := w.Execute(ctx, "document.title")
*/
package webview
