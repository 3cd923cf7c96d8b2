package bmlt

import (
	"errors"
	"fmt"
)

// ErrorType classifies a failure. It is the only discriminator; there is a
// single Error type for every kind.
type ErrorType string

const (
	NetworkError    ErrorType = "NETWORK_ERROR"
	TimeoutError    ErrorType = "TIMEOUT_ERROR"
	ValidationError ErrorType = "VALIDATION_ERROR"
	GeocodingError  ErrorType = "GEOCODING_ERROR"
	ResponseError   ErrorType = "RESPONSE_ERROR"
	RateLimitError  ErrorType = "RATE_LIMIT_ERROR"
)

// Sentinels for errors.Is. They match any *Error of the same type.
var (
	ErrNetwork    = &Error{Type: NetworkError}
	ErrTimeout    = &Error{Type: TimeoutError}
	ErrValidation = &Error{Type: ValidationError}
	ErrGeocoding  = &Error{Type: GeocodingError}
	ErrResponse   = &Error{Type: ResponseError}
	ErrRateLimit  = &Error{Type: RateLimitError}
)

// Error is returned by every operation in this package.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports type equality when target is a bare sentinel (no message).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" && t.Err == nil {
		return e.Type == t.Type
	}
	return e == t
}

// UserMessage is a short explanation suitable for end users.
func (e *Error) UserMessage() string {
	switch e.Type {
	case NetworkError:
		return "Unable to reach the meeting server. Please check your connection and try again."
	case TimeoutError:
		return "The meeting server took too long to respond. Please try again."
	case ValidationError:
		return "The request was invalid: " + e.Message
	case GeocodingError:
		return "The location could not be found. Please check the address and try again."
	case ResponseError:
		if e.StatusCode >= 500 {
			return "The meeting server is having problems. Please try again later."
		}
		return "The meeting server returned an unexpected response."
	case RateLimitError:
		return "Too many requests. Please wait a moment and try again."
	}
	return "An unexpected error occurred."
}

// Summary renders every field for logs.
func (e *Error) Summary() string {
	s := fmt.Sprintf("type=%s retryable=%t msg=%q", e.Type, e.Retryable, e.Message)
	if e.StatusCode != 0 {
		s += fmt.Sprintf(" status=%d", e.StatusCode)
	}
	if e.Err != nil {
		s += fmt.Sprintf(" cause=%q", e.Err.Error())
	}
	return s
}

func NewValidationError(msg string) *Error {
	return &Error{Type: ValidationError, Message: msg}
}

func NewNetworkError(msg string, cause error) *Error {
	return &Error{Type: NetworkError, Message: msg, Retryable: true, Err: cause}
}

func NewTimeoutError(msg string, cause error) *Error {
	return &Error{Type: TimeoutError, Message: msg, Retryable: true, Err: cause}
}

func NewGeocodingError(msg string, cause error) *Error {
	return &Error{Type: GeocodingError, Message: msg, Retryable: true, Err: cause}
}

// NewResponseError is retryable only for server-side (5xx) statuses.
func NewResponseError(msg string, status int, cause error) *Error {
	return &Error{
		Type:       ResponseError,
		Message:    msg,
		Retryable:  status >= 500,
		StatusCode: status,
		Err:        cause,
	}
}

func NewRateLimitError(msg string, cause error) *Error {
	return &Error{Type: RateLimitError, Message: msg, Retryable: true, StatusCode: 429, Err: cause}
}

// IsRetryable reports whether err carries a retryable *Error.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// TypeOf returns the ErrorType of err, or "" for foreign errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}
