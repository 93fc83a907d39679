package chat

import (
	"fmt"
	"strings"
)

// UnknownModelError reports an unrecognized model family. It is advisory:
// lookup falls back to a permissive default profile, so callers may log it
// and proceed.
type UnknownModelError struct {
	ModelID string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model family for %q, using default capability profile", e.ModelID)
}

// InvalidToolSetError reports duplicate tool names within a single request.
// It is raised before any transport call is attempted.
type InvalidToolSetError struct {
	Duplicates []string
}

func (e *InvalidToolSetError) Error() string {
	return fmt.Sprintf("duplicate tool names in request: %s", strings.Join(e.Duplicates, ", "))
}

// OutputParserError reports a structured-output decode failure after a
// successful transport call. Raw carries the text that failed to parse so
// callers can retry with a relaxed schema or surface it to the user.
type OutputParserError struct {
	Raw string
	Err error
}

func (e *OutputParserError) Error() string {
	return fmt.Sprintf("parse structured output: %v (raw: %s)", e.Err, e.Raw)
}

func (e *OutputParserError) Unwrap() error { return e.Err }

// TransportError reports a failure at the transport boundary: the call to
// the hosted service itself failed. It is never produced for responses that
// arrived but could not be decoded against a caller schema.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %v", e.Err)
	}
	return fmt.Sprintf("transport: status %d: %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }
