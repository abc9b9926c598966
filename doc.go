// Package servicecommon is the HTTP layer shared by the budget-analyzer
// services. It tags every request with a correlation ID, optionally logs
// request and response bodies with sensitive headers masked, and turns every
// failure into one JSON error format with a fixed status mapping.
//
// Two request pipelines implement that contract: a blocking one for plain
// net/http handlers and a streaming one whose handlers return deferred
// results over lazily produced bodies. Config.Stack selects one at startup;
// NewWebStack builds it along with the configured metrics, tracing and
// failure-event publishing.
//
// # Errors
//
// Handlers report failures with the constructors in this package
// (NewResourceNotFound, NewBusiness, NewValidation, ...). Anything else,
// including panics, becomes a 500 whose message never reveals the cause.
//
// # Logging
//
// Request logging is opt-in through HTTPLoggingConfig. Bodies are cached so
// that logging never consumes what the handler needs to read, and are cut at
// MaxBodyBytes with an explicit truncation marker.
//
// # Entities
//
// AuditableEntity and SoftDeletableEntity give persisted types their
// timestamp and soft-delete hooks without tying them to a storage layer.
package servicecommon
