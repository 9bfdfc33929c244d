package chat

import (
	"errors"

	"github.com/dainotech/beespace-demo/internal/telemetry"
)

// ConfigurationError and QueryError are shared with the telemetry client so
// both layers classify the same values.
type (
	ConfigurationError = telemetry.ConfigurationError
	QueryError         = telemetry.QueryError
)

// ProtocolError means the model broke the tool contract: an unknown tool or
// a missing or malformed argument.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return e.Message
}

// SystemError is any failure that ends a turn other than configuration. The
// message of the underlying cause is kept.
type SystemError struct {
	Message string
	Err     error
}

func (e *SystemError) Error() string {
	return e.Message
}

func (e *SystemError) Unwrap() error {
	return e.Err
}

// asTurnError folds any error into the two kinds a turn may end with.
func asTurnError(err error) error {
	if err == nil {
		return nil
	}
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return ce
	}
	var se *SystemError
	if errors.As(err, &se) {
		return se
	}
	return &SystemError{Message: err.Error(), Err: err}
}
