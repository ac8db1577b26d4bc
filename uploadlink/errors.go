package uploadlink

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoFetch is returned by New when no fetch capability could be resolved
// at construction time.
var ErrNoFetch = errors.New("uploadlink: no fetch capability available: pass Options.Fetch or ensure http.DefaultClient is not nil")

// SerializationError reports an operation that could not be turned into a
// wire body. No network call is attempted.
type SerializationError struct {
	OperationName string
	err           error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize operation %q: %v", e.OperationName, e.err)
}

func (e *SerializationError) Unwrap() error { return e.err }

// NetworkError reports a transport-level failure: the server answered with a
// non-2xx status, or the fetch itself failed before any status existed
// (StatusCode 0).
type NetworkError struct {
	StatusCode int
	Body       string
	// Result holds the parsed response body when it happened to be valid JSON.
	Result   map[string]any
	Response *http.Response
	err      error
}

func (e *NetworkError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("network error: %v", e.err)
	}

	return fmt.Sprintf("network error: response status %d", e.StatusCode)
}

func (e *NetworkError) Unwrap() error { return e.err }

// ParseError reports a response body that is not valid JSON.
type ParseError struct {
	StatusCode int
	Body       string
	Response   *http.Response
	err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse response: %v", e.err)
}

func (e *ParseError) Unwrap() error { return e.err }

// ServerDataError reports a 2xx response whose body is valid JSON but not a
// GraphQL envelope: it carries neither a data nor an errors field.
type ServerDataError struct {
	OperationName string
	StatusCode    int
	Result        map[string]any
	Response      *http.Response
}

func (e *ServerDataError) Error() string {
	return fmt.Sprintf("server returned no data and no errors for operation %q", e.OperationName)
}
