package services

import (
	"errors"
	"fmt"

	"github.com/googleapis/gax-go/v2/apierror"
)

var (
	// ErrEmptyResponse means the generation service returned no text payload.
	ErrEmptyResponse = errors.New("generation service returned no data")

	// ErrMalformedResponse means the payload was not JSON or failed shape validation.
	ErrMalformedResponse = errors.New("malformed generation response")
)

// ServiceError wraps a transport, auth or quota failure of the generation service.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: generation service error: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// HTTPCode returns the upstream HTTP status when the cause is a Google API
// error, 0 otherwise.
func (e *ServiceError) HTTPCode() int {
	var apiErr *apierror.APIError
	if errors.As(e.Err, &apiErr) {
		return apiErr.HTTPCode()
	}
	return 0
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

const (
	KindEmptyResponse     = "empty_response"
	KindMalformedResponse = "malformed_response"
	KindServiceError      = "service_error"
	KindUnknown           = "unknown"
)

// ErrorKind classifies a generation failure for logging.
func ErrorKind(err error) string {
	var svcErr *ServiceError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyResponse):
		return KindEmptyResponse
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	case errors.As(err, &svcErr):
		return KindServiceError
	default:
		return KindUnknown
	}
}
