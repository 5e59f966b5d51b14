// Package api provides the JSON REST API server for Quill.
//
// # Architecture
//
// The API server uses Go 1.22+ routing with a layered middleware stack:
//
//	Recovery → RequestID → Logging → CORS → RateLimit → Auth → Routes
//
// Health probes (/health, /ready) bypass the middleware stack via a
// top-level mux, ensuring they remain fast and unauthenticated.
//
// # Endpoints
//
// Health probes (no middleware):
//   - GET /health — returns {"status":"ok"}
//   - GET /ready  — database connectivity check
//
// Projects (ownership-enforced):
//   - POST   /api/v1/projects      — create project
//   - GET    /api/v1/projects      — list caller's projects
//   - GET    /api/v1/projects/{id} — get project by ID
//   - PATCH  /api/v1/projects/{id} — update name/description
//   - DELETE /api/v1/projects/{id} — delete project
//
// Documents and knowledge base (ownership-enforced):
//   - POST   /api/v1/projects/{id}/documents         — upload file
//   - GET    /api/v1/projects/{id}/documents         — list documents
//   - DELETE /api/v1/projects/{id}/documents/{docID} — delete document
//   - GET    /api/v1/projects/{id}/search            — semantic search
//
// Conversations (ownership-enforced):
//   - POST   /api/v1/conversations               — create conversation
//   - GET    /api/v1/conversations?projectId=... — list by project
//   - GET    /api/v1/conversations/{id}/messages — list messages
//   - DELETE /api/v1/conversations/{id}          — delete conversation
//
// Streaming relay:
//   - POST /api/v1/chat/stream — SSE relay of the upstream model
//
// # Authentication
//
// Every /api/v1 route requires a bearer token in the Authorization
// header. Tokens are HS256 JWTs verified locally; the sub claim is the
// user ID and scopes every database query. A resource owned by another
// user is indistinguishable from a missing one (404).
//
// # Error Handling
//
// Non-2xx responses carry {"error": "<code>", "message": "<human>"}.
// Failures on the chat stream after SSE headers commit are expressed
// in-stream instead: a single apology content fragment followed by the
// {"done": true} marker.
//
// # SSE Streaming
//
// Chat responses stream as anonymous SSE data frames:
//
//	data: {"content": "..."}  — incremental text
//	data: {"done": true}      — terminal marker, sent exactly once
//
// # Security
//
// The middleware stack enforces:
//   - Bearer-token authentication on every API route
//   - Per-IP rate limiting (token bucket, 60 req/min burst)
//   - CORS with explicit origin allowlist
//   - Security headers (CSP, HSTS, X-Frame-Options, etc.)
package api
