// ABOUTME: Error taxonomy for the chat-completion backend client: transient transport/timeout
// ABOUTME: failures are retryable, HTTP 4xx (except 408) are fatal for the turn (spec §4.7, §7).
package llm

import (
	"encoding/json"
	"net/http"
)

// clientError is the shared base for every error this package produces.
type clientError struct {
	Message string
	Cause   error
}

func (e *clientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *clientError) Unwrap() error { return e.Cause }

// TimeoutError is a request or read deadline expiring, including an HTTP
// 408 from the backend. Retryable.
type TimeoutError struct{ clientError }

func (e *TimeoutError) retryable() bool { return true }

// TransportError is a connection-level failure: DNS, refused connection,
// reset mid-body. Retryable.
type TransportError struct{ clientError }

func (e *TransportError) retryable() bool { return true }

// DecodeError is a 200 response whose body did not parse as the expected
// JSON shape. Treated as transient (a truncated proxy response looks the
// same as a malformed one), so retryable.
type DecodeError struct{ clientError }

func (e *DecodeError) retryable() bool { return true }

// RequestError is a local failure building or marshalling the request.
// Retrying cannot help.
type RequestError struct{ clientError }

func (e *RequestError) retryable() bool { return false }

// BackendError is a non-2xx response from the backend, carrying the status
// code and raw body for the TurnError record. 5xx is transient; every 4xx,
// 429 included, is fatal for the turn per spec §4.7 (408 never reaches
// here, it becomes a TimeoutError).
type BackendError struct {
	clientError
	StatusCode int
	Raw        json.RawMessage
}

func (e *BackendError) retryable() bool {
	switch {
	case e.StatusCode >= 500 && e.StatusCode <= 599:
		return true
	case e.StatusCode >= 400 && e.StatusCode <= 499:
		return false
	default:
		// Unknown status classes are assumed transient.
		return true
	}
}

func newTimeoutError(msg string, cause error) *TimeoutError {
	return &TimeoutError{clientError{Message: msg, Cause: cause}}
}

func newTransportError(msg string, cause error) *TransportError {
	return &TransportError{clientError{Message: msg, Cause: cause}}
}

func newDecodeError(msg string, cause error) *DecodeError {
	return &DecodeError{clientError{Message: msg, Cause: cause}}
}

func newRequestError(msg string, cause error) *RequestError {
	return &RequestError{clientError{Message: msg, Cause: cause}}
}

// ErrorFromStatus maps a non-2xx backend response to the taxonomy: 408 to
// TimeoutError, everything else to a BackendError whose retryability
// follows from the status code.
func ErrorFromStatus(statusCode int, message string, raw []byte) error {
	if statusCode == http.StatusRequestTimeout {
		return newTimeoutError(message, nil)
	}
	return &BackendError{
		clientError: clientError{Message: message},
		StatusCode:  statusCode,
		Raw:         raw,
	}
}

// Retryable reports whether err is a transient failure worth retrying.
// Errors from outside this package are not retried.
func Retryable(err error) bool {
	type retryable interface{ retryable() bool }
	if r, ok := err.(retryable); ok {
		return r.retryable()
	}
	return false
}
