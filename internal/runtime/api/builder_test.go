package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shiwano/errdef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errorspkg "github.com/budget-analyzer/service-common/internal/runtime/errors"
	"github.com/budget-analyzer/service-common/internal/runtime/logging/logtest"
)

func TestResolveMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		typ     ErrorType
		message string
		code    string
	}{
		{"not found", errorspkg.NewResourceNotFound("Test resource not found"), 404, ErrorTypeNotFound, "Test resource not found", ""},
		{"no route", errorspkg.NewNoRoute("GET", "/missing"), 404, ErrorTypeNotFound, "No endpoint GET /missing.", ""},
		{"invalid request", errorspkg.NewInvalidRequest("Invalid request"), 400, ErrorTypeInvalidRequest, "Invalid request", ""},
		{"type mismatch", errorspkg.NewTypeMismatch("id", "Long", nil), 400, ErrorTypeInvalidRequest, "Invalid request parameter: id must be a valid Long", ""},
		{"business", errorspkg.NewBusiness("Business rule violation", "BUSINESS_RULE_VIOLATION"), 422, ErrorTypeApplication, "Business rule violation", "BUSINESS_RULE_VIOLATION"},
		{"downstream", errorspkg.NewClient("Rates service unreachable", io.ErrUnexpectedEOF), 503, ErrorTypeServiceUnavailable, "Rates service unreachable", ""},
		{"unavailable", errorspkg.NewServiceUnavailable("Service temporarily unavailable"), 503, ErrorTypeServiceUnavailable, "Service temporarily unavailable", ""},
		{"service fault", errorspkg.NewService("db password rejected", nil), 500, ErrorTypeInternal, InternalErrorMessage, ""},
		{"panic", errorspkg.FromPanic("nil pointer"), 500, ErrorTypeInternal, InternalErrorMessage, ""},
		{"plain error", errors.New("secret internal detail"), 500, ErrorTypeInternal, InternalErrorMessage, ""},
		{"unnamed errdef", errdef.New("anonymous"), 500, ErrorTypeInternal, InternalErrorMessage, ""},
		{"nil", nil, 500, ErrorTypeInternal, InternalErrorMessage, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResponseBuilder{}.Resolve(tt.err)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.typ, res.Type())
			assert.Equal(t, tt.message, res.Response.Message)
			assert.Equal(t, tt.code, res.Response.Code)
			assert.Nil(t, res.Response.FieldErrors)
		})
	}
}

func TestResolveMatchesDefinitionStatus(t *testing.T) {
	for _, err := range []error{
		errorspkg.NewResourceNotFound("x"),
		errorspkg.NewInvalidRequest("x"),
		errorspkg.NewValidation(),
		errorspkg.NewBusiness("x", "C"),
		errorspkg.NewClient("x", nil),
		errorspkg.NewServiceUnavailable("x"),
		errorspkg.NewService("x", nil),
	} {
		status, ok := errdef.HTTPStatusFrom(err)
		require.True(t, ok)
		assert.Equal(t, status, ResponseBuilder{}.Resolve(err).Status, err.Error())
	}
}

func TestResolveWrappedTaxonomyError(t *testing.T) {
	inner := errorspkg.NewResourceNotFound("budget 42 not found")
	res := ResponseBuilder{}.Resolve(fmt.Errorf("load budget: %w", inner))
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Equal(t, "budget 42 not found", res.Response.Message)
}

func TestResolveValidation(t *testing.T) {
	err := errorspkg.NewValidation(
		FieldError{Field: "name", RejectedValue: "ab", Message: "size must be between 3 and 50"},
	)
	res := ResponseBuilder{}.Resolve(err)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, ErrorTypeValidation, res.Type())
	assert.Equal(t, "Validation failed for 1 field(s)", res.Response.Message)
	require.Len(t, res.Response.FieldErrors, 1)
	assert.Equal(t, "name", res.Response.FieldErrors[0].Field)
	assert.Empty(t, res.Response.Code)
}

func TestErrorResponseJSON(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain", errorspkg.NewResourceNotFound("gone"), `{"type":"NOT_FOUND","message":"gone"}`},
		{"business", errorspkg.NewBusiness("limit", "LIMIT_EXCEEDED"), `{"type":"APPLICATION_ERROR","message":"limit","code":"LIMIT_EXCEEDED"}`},
		{"validation", errorspkg.NewValidation(FieldError{Field: "name", RejectedValue: nil, Message: "must not be blank"}),
			`{"type":"VALIDATION_ERROR","message":"Validation failed for 1 field(s)","fieldErrors":[{"field":"name","rejectedValue":null,"message":"must not be blank"}]}`},
		{"internal", errors.New("boom"), `{"type":"INTERNAL_ERROR","message":"An unexpected error occurred"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := ResponseBuilder{}.Resolve(tt.err).Encode()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(body))
		})
	}
}

func TestBuilderDropsDisallowedFields(t *testing.T) {
	resp := NewErrorResponse(ErrorTypeNotFound).
		Message("x").
		Code("IGNORED").
		FieldErrors(FieldError{Field: "f"}).
		Build()
	assert.Empty(t, resp.Code)
	assert.Nil(t, resp.FieldErrors)

	app := NewErrorResponse(ErrorTypeApplication).Code("KEPT").FieldErrors(FieldError{Field: "f"}).Build()
	assert.Equal(t, "KEPT", app.Code)
	assert.Nil(t, app.FieldErrors)
}

func TestInternalMessageNeverLeaks(t *testing.T) {
	err := errorspkg.NewService("connection to postgres://admin:hunter2@db failed", nil)
	body, encErr := ResponseBuilder{}.Resolve(err).Encode()
	require.NoError(t, encErr)
	assert.NotContains(t, string(body), "hunter2")
}

func TestResolutionWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	res := ResponseBuilder{}.Resolve(errorspkg.NewBusiness("nope", "NOPE"))
	require.NoError(t, res.Write(rec))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, ContentType, rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"type":"APPLICATION_ERROR","message":"nope","code":"NOPE"}`, rec.Body.String())
}

func TestLogException(t *testing.T) {
	logger := logtest.NewRecorder()
	cause := io.ErrUnexpectedEOF
	err := errorspkg.NewClient("Rates service unreachable", fmt.Errorf("read: %w", cause))

	LogException(logger, ResponseBuilder{}.Resolve(err))

	warns := logger.Level("warn")
	require.Len(t, warns, 1)
	f := warns[0].Fields
	assert.Equal(t, "Handled exception", warns[0].Msg)
	assert.Equal(t, "SERVICE_UNAVAILABLE", f["type"])
	assert.Equal(t, 503, f["status"])
	assert.Equal(t, "downstream_client", f["exception"])
	assert.Equal(t, "*errors.errorString", f["root_cause"])
	assert.Equal(t, "unexpected EOF", f["root_cause_message"])
	assert.Equal(t, "Rates service unreachable", f["message"])
	_, hasCode := f["code"]
	assert.False(t, hasCode)
}

func TestLogExceptionBusinessAndValidation(t *testing.T) {
	logger := logtest.NewRecorder()
	LogException(logger, ResponseBuilder{}.Resolve(errorspkg.NewBusiness("x", "CODE_1")))
	LogException(logger, ResponseBuilder{}.Resolve(errorspkg.NewValidation(FieldError{Field: "a"}, FieldError{Field: "b"})))

	warns := logger.Level("warn")
	require.Len(t, warns, 2)
	assert.Equal(t, "CODE_1", warns[0].Fields["code"])
	assert.Equal(t, 2, warns[1].Fields["field_count"])
	_, hasRoot := warns[0].Fields["root_cause"]
	assert.False(t, hasRoot)
}

func TestLogExceptionCarriesTraceID(t *testing.T) {
	logger := logtest.NewRecorder()
	err := errorspkg.ErrResourceNotFound.WithOptions(errdef.TraceID("req_0011223344556677")).New("missing")
	LogException(logger, ResponseBuilder{}.Resolve(err))
	assert.Equal(t, "req_0011223344556677", logger.Level("warn")[0].Fields["trace_id"])
}

func TestLogExceptionNilLogger(t *testing.T) {
	assert.NotPanics(t, func() { LogException(nil, ResponseBuilder{}.Resolve(errors.New("x"))) })
}
