package servicecommon

import (
	runtimepkg "github.com/budget-analyzer/service-common/internal/runtime"
	"github.com/budget-analyzer/service-common/internal/runtime/api"
	"github.com/budget-analyzer/service-common/internal/runtime/blocking"
	configpkg "github.com/budget-analyzer/service-common/internal/runtime/config"
	"github.com/budget-analyzer/service-common/internal/runtime/domain"
	errspkg "github.com/budget-analyzer/service-common/internal/runtime/errors"
	"github.com/budget-analyzer/service-common/internal/runtime/events"
	idspkg "github.com/budget-analyzer/service-common/internal/runtime/ids"
	jsoncodec "github.com/budget-analyzer/service-common/internal/runtime/jsoncodec"
	loggingpkg "github.com/budget-analyzer/service-common/internal/runtime/logging"
	"github.com/budget-analyzer/service-common/internal/runtime/observability"
	"github.com/budget-analyzer/service-common/internal/runtime/streaming"
)

type (
	Config              = configpkg.Config
	HTTPLoggingConfig   = configpkg.HTTPLoggingConfig
	Stack               = configpkg.Stack
	WebStack            = runtimepkg.WebStack
	ServiceDependencies = runtimepkg.ServiceDependencies

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLogger               = loggingpkg.EntryLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	ErrorResponse         = api.ErrorResponse
	ErrorType             = api.ErrorType
	FieldError            = errspkg.FieldError
	Resolution            = api.Resolution
	ResponseBuilder       = api.ResponseBuilder
	ExceptionHandler      = api.ExceptionHandler
	ConfigValidationError = errspkg.ConfigValidationError

	// Request lifecycle hooks
	RequestInfo = observability.RequestInfo
	Hooks       = observability.Hooks
	Metrics     = observability.Metrics

	FailureEvent = events.FailureEvent

	// Blocking pipeline
	BlockingRouter      = blocking.Router
	BlockingHandlerFunc = blocking.HandlerFunc

	// Streaming pipeline
	StreamingRouter      = streaming.Router
	Exchange             = streaming.Exchange
	Request              = streaming.Request
	Response             = streaming.Response
	Stream               = streaming.Stream
	Chunk                = streaming.Chunk
	Deferred[T any]      = streaming.Deferred[T]
	WebFilter            = streaming.WebFilter
	StreamingHandler     = streaming.Handler
	StreamingHandlerFunc = streaming.HandlerFunc

	AuditableEntity     = domain.AuditableEntity
	SoftDeletableEntity = domain.SoftDeletableEntity
	Clock               = domain.Clock
)

var (
	NewWebStack    = runtimepkg.NewWebStack
	TryNewWebStack = runtimepkg.TryNewWebStack
	DefaultConfig  = configpkg.Default
	LoadConfig     = configpkg.Load
	ValidateConfig = configpkg.ValidateConfig

	DefaultHTTPLogging = configpkg.DefaultHTTPLogging

	// Failure constructors
	NewResourceNotFound    = errspkg.NewResourceNotFound
	NewInvalidRequest      = errspkg.NewInvalidRequest
	NewTypeMismatch        = errspkg.NewTypeMismatch
	NewMissingParameter    = errspkg.NewMissingParameter
	NewMissingPart         = errspkg.NewMissingPart
	NewMalformedBody       = errspkg.NewMalformedBody
	NewValidation          = errspkg.NewValidation
	NewBusiness            = errspkg.NewBusiness
	NewServiceUnavailable  = errspkg.NewServiceUnavailable
	WrapServiceUnavailable = errspkg.WrapServiceUnavailable
	NewClient              = errspkg.NewClient
	NewService             = errspkg.NewService
	RootCause              = errspkg.RootCause

	BusinessCodeFrom = errspkg.BusinessCodeFrom
	FieldErrorsFrom  = errspkg.FieldErrorsFrom

	// Hooks
	LoggingHooks  = observability.LoggingHooks
	AlertingHooks = observability.AlertingHooks

	// Streaming helpers
	FromReader = streaming.FromReader
	FromChunks = streaming.FromChunks
	Just       = streaming.Just
	Empty      = streaming.Empty
	Completed  = streaming.Completed
	Join       = streaming.Join

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrConfigRequired    = errspkg.ErrConfigRequired
	ErrLoggerRequired    = errspkg.ErrLoggerRequired
	ErrPublisherRequired = errspkg.ErrPublisherRequired
	ErrTopicRequired     = errspkg.ErrTopicRequired
	ErrStreamConsumed    = streaming.ErrStreamConsumed

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewWatermillAdapter       = loggingpkg.NewWatermillAdapter
	NewCorrelationHandler     = loggingpkg.NewCorrelationHandler
	CorrelationIDFromContext  = loggingpkg.CorrelationIDFromContext
	MaskHeaders               = loggingpkg.MaskHeaders

	NewCorrelationID = idspkg.NewCorrelationID
	NewRequestID     = idspkg.NewRequestID
)

// Stack names accepted by Config.Stack.
const (
	StackBlocking  = configpkg.StackBlocking
	StackStreaming = configpkg.StackStreaming
)

// Wire-format constants.
const (
	HeaderCorrelationID  = api.HeaderCorrelationID
	InternalErrorMessage = api.InternalErrorMessage
	MaskedValue          = loggingpkg.MaskedValue

	ErrorTypeInvalidRequest     = api.ErrorTypeInvalidRequest
	ErrorTypeValidation         = api.ErrorTypeValidation
	ErrorTypeNotFound           = api.ErrorTypeNotFound
	ErrorTypeApplication        = api.ErrorTypeApplication
	ErrorTypeServiceUnavailable = api.ErrorTypeServiceUnavailable
	ErrorTypeInternal           = api.ErrorTypeInternal
)

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}

// Resolved returns a Deferred already holding v.
func Resolved[T any](v T) *Deferred[T] {
	return streaming.Resolved(v)
}

// Failed returns a Deferred already holding err.
func Failed[T any](err error) *Deferred[T] {
	return streaming.Failed[T](err)
}

// Then maps the successful result of d through fn.
func Then[T, U any](d *Deferred[T], fn func(T) (U, error)) *Deferred[U] {
	return streaming.Then(d, fn)
}

// AndThen continues the successful result of d with another asynchronous step.
func AndThen[T, U any](d *Deferred[T], fn func(T) *Deferred[U]) *Deferred[U] {
	return streaming.AndThen(d, fn)
}
