package errors

import (
	sterrors "errors"
	"fmt"
	"net/http"

	"github.com/shiwano/errdef"
)

// Fault says which side of the exchange caused a failure.
type Fault string

const (
	FaultClient Fault = "client"
	FaultServer Fault = "server"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field         string `json:"field"`
	RejectedValue any    `json:"rejectedValue"`
	Message       string `json:"message"`
}

var (
	fault, faultFrom = errdef.DefineField[Fault]("fault")

	// BusinessCode attaches the machine-readable code of a business rule
	// violation.
	BusinessCode, BusinessCodeFrom = errdef.DefineField[string]("business_code")

	// FieldErrors attaches the per-field failures of a validation error.
	FieldErrors, FieldErrorsFrom = errdef.DefineField[[]FieldError]("field_errors")
)

// Kinds of the failures recognised by the exception handlers.
const (
	KindResourceNotFound   errdef.Kind = "resource_not_found"
	KindNoRoute            errdef.Kind = "no_route"
	KindInvalidRequest     errdef.Kind = "invalid_request"
	KindValidation         errdef.Kind = "validation"
	KindBusiness           errdef.Kind = "business"
	KindClient             errdef.Kind = "downstream_client"
	KindServiceUnavailable errdef.Kind = "service_unavailable"
	KindService            errdef.Kind = "service"
	KindPanic              errdef.Kind = "panic"
)

var (
	ErrResourceNotFound = errdef.Define(KindResourceNotFound,
		errdef.HTTPStatus(http.StatusNotFound), errdef.Public(), fault(FaultClient))
	ErrNoRoute = errdef.Define(KindNoRoute,
		errdef.HTTPStatus(http.StatusNotFound), errdef.Public(), fault(FaultClient), errdef.NoTrace())
	ErrInvalidRequest = errdef.Define(KindInvalidRequest,
		errdef.HTTPStatus(http.StatusBadRequest), errdef.Public(), fault(FaultClient))
	ErrValidation = errdef.Define(KindValidation,
		errdef.HTTPStatus(http.StatusBadRequest), errdef.Public(), fault(FaultClient))
	ErrBusiness = errdef.Define(KindBusiness,
		errdef.HTTPStatus(http.StatusUnprocessableEntity), errdef.Public(), fault(FaultClient))

	// ErrClient marks a failed call from this service to a downstream one.
	ErrClient = errdef.Define(KindClient,
		errdef.HTTPStatus(http.StatusServiceUnavailable), errdef.Public(), fault(FaultServer), errdef.Retryable())
	ErrServiceUnavailable = errdef.Define(KindServiceUnavailable,
		errdef.HTTPStatus(http.StatusServiceUnavailable), errdef.Public(), fault(FaultServer), errdef.Retryable())

	// ErrService is a generic server fault. Its message is never exposed.
	ErrService = errdef.Define(KindService,
		errdef.HTTPStatus(http.StatusInternalServerError), fault(FaultServer))
	ErrPanic = errdef.Define(KindPanic,
		errdef.HTTPStatus(http.StatusInternalServerError), fault(FaultServer))
)

func NewResourceNotFound(message string) error {
	return ErrResourceNotFound.New(message)
}

// NewNoRoute reports a request that matched no registered route.
func NewNoRoute(method, path string) error {
	return ErrNoRoute.Errorf("No endpoint %s %s.", method, path)
}

func NewInvalidRequest(message string) error {
	return ErrInvalidRequest.New(message)
}

// NewTypeMismatch reports a request parameter that could not be converted.
func NewTypeMismatch(name, requiredType string, cause error) error {
	msg := fmt.Sprintf("Invalid request parameter: %s must be a valid %s", name, requiredType)
	if cause == nil {
		return ErrInvalidRequest.New(msg)
	}
	return ErrInvalidRequest.Wrapf(cause, "%s", msg)
}

// NewMissingParameter reports an absent required query or form parameter.
func NewMissingParameter(name, paramType string) error {
	return ErrInvalidRequest.Errorf("Required request parameter '%s' for method parameter type %s is not present", name, paramType)
}

// NewMissingPart reports an absent required multipart part.
func NewMissingPart(name string) error {
	return ErrInvalidRequest.Errorf("Required part '%s' is not present.", name)
}

// NewMalformedBody reports a request body that could not be decoded.
func NewMalformedBody(cause error) error {
	if cause == nil {
		return ErrInvalidRequest.New("Malformed request body")
	}
	return ErrInvalidRequest.Wrapf(cause, "Malformed request body: %s", cause.Error())
}

// NewMethodNotAllowed reports a route that exists without the requested method.
func NewMethodNotAllowed(method string) error {
	return ErrInvalidRequest.Errorf("Request method '%s' is not supported", method)
}

// NewValidation reports one or more rejected fields.
func NewValidation(fieldErrors ...FieldError) error {
	return ErrValidation.WithOptions(FieldErrors(fieldErrors)).New(ValidationMessage(len(fieldErrors)))
}

// ValidationMessage is the summary message of a validation error.
func ValidationMessage(count int) string {
	return fmt.Sprintf("Validation failed for %d field(s)", count)
}

// NewBusiness reports a violated business rule identified by code.
func NewBusiness(message, code string) error {
	return ErrBusiness.WithOptions(BusinessCode(code)).New(message)
}

func NewServiceUnavailable(message string) error {
	return ErrServiceUnavailable.New(message)
}

// WrapServiceUnavailable keeps cause for logging and reports message to callers.
func WrapServiceUnavailable(cause error, message string) error {
	if cause == nil {
		return ErrServiceUnavailable.New(message)
	}
	return ErrServiceUnavailable.Wrapf(cause, "%s", message)
}

// NewClient reports a failed downstream call.
func NewClient(message string, cause error) error {
	if cause == nil {
		return ErrClient.New(message)
	}
	return ErrClient.Wrapf(cause, "%s", message)
}

// NewService reports a generic server fault.
func NewService(message string, cause error) error {
	if cause == nil {
		return ErrService.New(message)
	}
	return ErrService.Wrapf(cause, "%s", message)
}

// FromPanic converts a recovered panic value into an error. When the value is
// itself an error it is kept as the cause.
func FromPanic(value any) error {
	if err, ok := value.(error); ok {
		return ErrPanic.Wrapf(err, "panic: %v", err)
	}
	return ErrPanic.Errorf("panic: %v", value)
}

// FaultOf returns the fault recorded on err. Errors outside the taxonomy are
// server faults.
func FaultOf(err error) Fault {
	if f, ok := faultFrom(err); ok {
		return f
	}
	return FaultServer
}

// KindOf returns the kind of the outermost taxonomy error in err's chain.
func KindOf(err error) (errdef.Kind, bool) {
	var e errdef.Error
	if !sterrors.As(err, &e) {
		return "", false
	}
	return e.Kind(), true
}

// RootCause follows the wrap chain to its innermost error, taking the first
// branch of joined errors. It returns err when nothing is wrapped.
func RootCause(err error) error {
	for err != nil {
		var next error
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			next = u.Unwrap()
		case interface{ Unwrap() []error }:
			if causes := u.Unwrap(); len(causes) > 0 {
				next = causes[0]
			}
		}
		if next == nil {
			return err
		}
		err = next
	}
	return nil
}

// Describe names err for log output: the kind for taxonomy errors, the Go type
// otherwise.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := err.(errdef.Error); ok && e.Kind() != "" {
		return string(e.Kind())
	}
	return fmt.Sprintf("%T", err)
}
