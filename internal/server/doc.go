// Package server provides the HTTP API for extupdate.
//
// This package is internal to extupdate. It exposes the current status
// snapshot to UI clients and accepts their acknowledgements:
//
//   - GET /api/extensions: JSON list of every tracked extension
//   - GET /api/sse: Server-Sent Events stream of status changes
//   - POST /api/extensions/{name}/ack: Mark the current state as shown
//   - POST /api/extensions/{name}/update: Install an available update
//   - DELETE /api/extensions/{name}: Stop tracking an extension
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
