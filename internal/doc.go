// Package internal documents the attendance server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem responses, and routing
// - domain: participant lifecycle and certificate issuance
// - storage: SQLite and in-memory participant repositories
// - pdf, email: certificate rendering and delivery
// - config, metrics, telemetry, sanitize: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
