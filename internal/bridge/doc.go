// Package bridge is the one-way channel into the rendering surface.
//
// Scripts go in through Eval and nothing comes back: results travel out of
// band, through the HTTP callback the wrapper script posts to. The
// capability script (js/capability.js) installs window.__WEBVIEW_MCP with
// execute(tool, params) and invoke(command, args), both returning promises.
package bridge
