// Package server implements the MCP (Model Context Protocol) control server
// for the face overlay.
//
// The server speaks JSON-RPC 2.0 over stdio, one request per line, and lets
// an MCP client pick filters and drive the capture session.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Catalog:
//   - overlay_filters_list: Filters in catalog order
//   - overlay_filter_select: Switch or clear the active filter
//
// Capture lifecycle:
//   - overlay_capture_start: Open the camera and run the loop (replies "starting" if the camera is slow)
//   - overlay_capture_stop: Stop and release the camera
//   - overlay_status: Session state and counters
//
// Output:
//   - overlay_export: Write the composited frame as PNG
//   - overlay_snapshot: Base64 PNG preview
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.New(sess, registry, cache, server.Options{ExportDir: dir}, log)
//	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
package server
