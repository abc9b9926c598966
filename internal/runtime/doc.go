/*
Package runtime assembles the HTTP pipeline shared by every service.

# Package Structure

## Web stack (service.go)

WebStack builds one of the two request pipelines at startup, chosen by
Config.Stack, and wires in the optional collaborators:
  - Prometheus metrics (observability)
  - OpenTelemetry spans (observability)
  - Failure events over a Watermill publisher (events)
  - Caller-supplied hooks

## Pipelines

  - blocking: handlers run on the request goroutine; the correlation ID
    travels in the request context.
  - streaming: handlers return Deferred results over lazily produced
    bodies; the correlation ID travels in the exchange context.

Both pipelines map failures through api.ResponseBuilder, so the status
codes and error bodies are identical whichever stack is selected.

## Supporting packages

  - api: ErrorResponse and the failure-to-response mapping
  - errors: the failure taxonomy built on errdef
  - config: settings, validation and loading through viper
  - logging: ServiceLogger, header masking and log line formatting
  - ids: correlation and request identifiers
  - jsoncodec: JSON encoding
  - domain: audit and soft-delete lifecycle hooks for persisted entities
*/
package runtime
