// Package api implements the HTTP REST API and admin event stream for the
// homelab dashboard.
//
// This package provides:
//   - Registration, login, logout and the current-user endpoint under /api/auth
//   - User administration under /api/v1/users
//   - The dashboard service list and health probes
//   - A paginated audit trail and a WebSocket event stream for admins
//   - Prometheus metrics on /metrics
//
// # Responses
//
// Every response is a JSON envelope: {"success": true, "data": ..., "message": ...}
// on success and {"success": false, "error": ..., "details": ...} on failure.
// Details are omitted in production.
//
// # Security
//
// Protected routes require "Authorization: Bearer <token>". The token is
// verified and the user is reloaded from the store on every request, so a
// deactivated or deleted account loses access immediately. WebSocket
// connections use single-use tickets to keep tokens out of URLs.
//
// # Graceful Degradation
//
// MQTT, InfluxDB and Redis are optional. Without them audit events are only
// stored locally and rate limiting falls back to process memory.
package api
