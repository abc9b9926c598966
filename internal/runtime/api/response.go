// Package api holds the error envelope returned by every service and the
// response building shared by both request pipelines.
package api

import (
	errorspkg "github.com/budget-analyzer/service-common/internal/runtime/errors"
)

// ErrorType classifies a failure on the wire. The set is closed.
type ErrorType string

const (
	ErrorTypeInvalidRequest     ErrorType = "INVALID_REQUEST"
	ErrorTypeValidation         ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound           ErrorType = "NOT_FOUND"
	ErrorTypeApplication        ErrorType = "APPLICATION_ERROR"
	ErrorTypeServiceUnavailable ErrorType = "SERVICE_UNAVAILABLE"
	ErrorTypeInternal           ErrorType = "INTERNAL_ERROR"
)

// HeaderCorrelationID carries the correlation ID on requests and responses.
const HeaderCorrelationID = "X-Correlation-ID"

// InternalErrorMessage is the only message ever returned for unexpected
// failures. Internal detail goes to the log, never to the caller.
const InternalErrorMessage = "An unexpected error occurred"

// FieldError describes one rejected input field.
type FieldError = errorspkg.FieldError

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Type        ErrorType    `json:"type"`
	Message     string       `json:"message"`
	Code        string       `json:"code,omitempty"`
	FieldErrors []FieldError `json:"fieldErrors,omitempty"`
}

// ErrorResponseBuilder assembles an ErrorResponse. Build drops whichever of
// code and field errors the type does not allow.
type ErrorResponseBuilder struct {
	resp ErrorResponse
}

func NewErrorResponse(t ErrorType) *ErrorResponseBuilder {
	return &ErrorResponseBuilder{resp: ErrorResponse{Type: t}}
}

func (b *ErrorResponseBuilder) Message(msg string) *ErrorResponseBuilder {
	b.resp.Message = msg
	return b
}

func (b *ErrorResponseBuilder) Code(code string) *ErrorResponseBuilder {
	b.resp.Code = code
	return b
}

func (b *ErrorResponseBuilder) FieldErrors(fields ...FieldError) *ErrorResponseBuilder {
	b.resp.FieldErrors = append(b.resp.FieldErrors, fields...)
	return b
}

func (b *ErrorResponseBuilder) Build() ErrorResponse {
	resp := b.resp
	if resp.Type != ErrorTypeApplication {
		resp.Code = ""
	}
	if resp.Type != ErrorTypeValidation {
		resp.FieldErrors = nil
	} else if len(resp.FieldErrors) > 0 {
		resp.FieldErrors = append([]FieldError(nil), resp.FieldErrors...)
	}
	return resp
}
