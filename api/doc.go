// Package api provides the HTTP surface types for the Skillflow API.
//
// # API Overview
//
// Skillflow exposes a RESTful API for:
//   - Invoking registered skills through the invocation envelope
//   - Browsing the skill catalog and per-skill action specs
//   - Streaming invocation lifecycle events over WebSocket
//   - Browsing the invocation audit trail
//   - Health monitoring and Prometheus metrics
//
// # Authentication
//
// When auth is enabled, endpoints require either the X-API-Key header or a
// JWT Bearer token:
//
//	X-API-Key: your-api-key
//	Authorization: Bearer <token>
//
// Health and metrics endpoints are always exempt.
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// # Response Envelope
//
// Every JSON endpoint responds with the uniform envelope:
//
//	{
//	  "success": true,
//	  "data": { ... },
//	  "timestamp": "2026-03-14T09:30:00Z",
//	  "request_id": "req-..."
//	}
//
// Failures carry an error object with a stable machine-readable code:
//
//	{
//	  "success": false,
//	  "error": {"code": "INVALID_INPUT", "message": "...", "retryable": false},
//	  ...
//	}
package api
