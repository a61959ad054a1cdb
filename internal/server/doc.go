// Package server implements the HTTP surface of the attendance webhook.
//
// This package provides:
//   - POST /attendance-webhook: validates an attendance payload and forwards
//     one WhatsApp notification to the configured recipient
//   - GET /attendance-webhook: the subscription verification handshake
//   - Health, index and prometheus metrics endpoints
//   - Per-IP rate limiting backed by internal/ratelimit
//   - Structured logging of all HTTP requests
//
// Every JSON response uses the same envelope (see Envelope). Errors are
// mapped to status codes and text codes through internal/apperr.
//
// Security features:
//   - Optional HMAC-SHA256 payload signatures (X-Hub-Signature-256)
//   - Constant-time verify token comparison
//   - Content-Type validation (application/json only)
//   - Payload size limits (1MB max)
//   - Redaction of contact details and credentials in debug payload logs
package server
