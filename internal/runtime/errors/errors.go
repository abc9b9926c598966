package errors

import sterrors "errors"

var (
	ErrConfigRequired    = sterrors.New("servicecommon: configuration is required")
	ErrLoggerRequired    = sterrors.New("servicecommon: logger is required")
	ErrHandlerRequired   = sterrors.New("servicecommon: handler is required")
	ErrPublisherRequired = sterrors.New("servicecommon: publisher is required")
	ErrTopicRequired     = sterrors.New("servicecommon: topic is required")
)

// ConfigValidationError wraps every problem found while validating
// configuration at startup.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "servicecommon: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
