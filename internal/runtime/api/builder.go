package api

import (
	"errors"
	"net/http"

	"github.com/shiwano/errdef"

	errorspkg "github.com/budget-analyzer/service-common/internal/runtime/errors"
	"github.com/budget-analyzer/service-common/internal/runtime/jsoncodec"
	"github.com/budget-analyzer/service-common/internal/runtime/logging"
)

// ContentType is the media type of every error body.
const ContentType = "application/json"

// Resolution is the outcome of classifying a failure: what to send and how
// to log it.
type Resolution struct {
	Status   int
	Response ErrorResponse
	// Err is the error that reached the handler.
	Err error
}

// Type is shorthand for Response.Type.
func (r Resolution) Type() ErrorType { return r.Response.Type }

// ExceptionHandler is the capability both pipelines' exception handlers
// provide. ResponseBuilder implements every method; handlers embed it and add
// only their pipeline's glue.
type ExceptionHandler interface {
	BuildValidationError(fieldErrors []FieldError) ErrorResponse
	BuildNotFoundError(err error) ErrorResponse
	BuildInvalidRequestError(err error) ErrorResponse
	BuildBusinessError(err error) ErrorResponse
	BuildServiceUnavailableError(err error) ErrorResponse
	BuildInternalError(err error) ErrorResponse
	Resolve(err error) Resolution
}

// ResponseBuilder turns failures into ErrorResponses. The zero value is ready
// to use and holds no state.
type ResponseBuilder struct{}

var _ ExceptionHandler = ResponseBuilder{}

func (ResponseBuilder) BuildValidationError(fieldErrors []FieldError) ErrorResponse {
	return NewErrorResponse(ErrorTypeValidation).
		Message(errorspkg.ValidationMessage(len(fieldErrors))).
		FieldErrors(fieldErrors...).
		Build()
}

func (ResponseBuilder) BuildNotFoundError(err error) ErrorResponse {
	return NewErrorResponse(ErrorTypeNotFound).Message(err.Error()).Build()
}

func (ResponseBuilder) BuildInvalidRequestError(err error) ErrorResponse {
	return NewErrorResponse(ErrorTypeInvalidRequest).Message(err.Error()).Build()
}

// BuildBusinessError copies the business code carried by err.
func (ResponseBuilder) BuildBusinessError(err error) ErrorResponse {
	code, _ := errorspkg.BusinessCodeFrom(err)
	return NewErrorResponse(ErrorTypeApplication).Message(err.Error()).Code(code).Build()
}

func (ResponseBuilder) BuildServiceUnavailableError(err error) ErrorResponse {
	return NewErrorResponse(ErrorTypeServiceUnavailable).Message(err.Error()).Build()
}

// BuildInternalError ignores err entirely.
func (ResponseBuilder) BuildInternalError(error) ErrorResponse {
	return NewErrorResponse(ErrorTypeInternal).Message(InternalErrorMessage).Build()
}

// Resolve classifies err by the outermost taxonomy error in its chain. Errors
// outside the taxonomy, and generic server faults, resolve to a 500 with the
// fixed internal message.
func (b ResponseBuilder) Resolve(err error) Resolution {
	res := Resolution{Err: err}
	var defined errdef.Error
	if err == nil || !errors.As(err, &defined) {
		res.Status = http.StatusInternalServerError
		res.Response = b.BuildInternalError(err)
		return res
	}

	switch defined.Kind() {
	case errorspkg.KindResourceNotFound, errorspkg.KindNoRoute:
		res.Status = http.StatusNotFound
		res.Response = b.BuildNotFoundError(defined)
	case errorspkg.KindInvalidRequest:
		res.Status = http.StatusBadRequest
		res.Response = b.BuildInvalidRequestError(defined)
	case errorspkg.KindValidation:
		fields, _ := errorspkg.FieldErrorsFrom(defined)
		res.Status = http.StatusBadRequest
		res.Response = b.BuildValidationError(fields)
	case errorspkg.KindBusiness:
		res.Status = http.StatusUnprocessableEntity
		res.Response = b.BuildBusinessError(defined)
	case errorspkg.KindClient, errorspkg.KindServiceUnavailable:
		res.Status = http.StatusServiceUnavailable
		res.Response = b.BuildServiceUnavailableError(defined)
	default:
		res.Status = http.StatusInternalServerError
		res.Response = b.BuildInternalError(defined)
	}
	return res
}

// Encode renders the response body.
func (r Resolution) Encode() ([]byte, error) {
	return jsoncodec.Marshal(r.Response)
}

// Write sends the resolution on w.
func (r Resolution) Write(w http.ResponseWriter) error {
	body, err := r.Encode()
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(r.Status)
	_, err = w.Write(body)
	return err
}

// LogException writes the single warn line recorded for every handled
// failure. The root cause is named when it differs from the handled error.
func LogException(logger logging.ServiceLogger, res Resolution) {
	if logger == nil {
		return
	}
	fields := logging.LogFields{
		"type":   string(res.Response.Type),
		"status": res.Status,
	}
	if res.Response.Code != "" {
		fields["code"] = res.Response.Code
	}
	if res.Response.Type == ErrorTypeValidation {
		fields["field_count"] = len(res.Response.FieldErrors)
	}
	if res.Err != nil {
		fields["exception"] = errorspkg.Describe(res.Err)
		fields["message"] = res.Err.Error()
		if root := errorspkg.RootCause(res.Err); root != nil && root != res.Err {
			fields["root_cause"] = errorspkg.Describe(root)
			fields["root_cause_message"] = root.Error()
		}
		if traceID, ok := errdef.TraceIDFrom(res.Err); ok && traceID != "" {
			fields["trace_id"] = traceID
		}
	}
	logger.Warn("Handled exception", fields)
}
