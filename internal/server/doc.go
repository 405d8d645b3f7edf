// Package server implements the HTTP server for the deployment status bot.
//
// This package provides:
//   - the GitHub webhook endpoint with HMAC signature verification
//   - per-IP rate limiting
//   - health, Prometheus metrics and delivery status endpoints
//   - structured logging of all HTTP requests
//
// The server integrates with other packages:
//   - internal/preview: event filtering and the comment reconciliation
//   - internal/githubapi: the go-github backed preview.GitHub
//   - internal/ghauth: token or GitHub App installation clients
//   - internal/history: SQLite delivery audit log
//
// Deliveries are processed synchronously. Deliveries for the same pull
// request are serialized in-process by the preview processor.
package server
