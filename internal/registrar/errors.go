package registrar

import (
	"errors"
	"fmt"
	"strings"
)

// Failure taxonomy for the registrar HTTP API. Transport faults, empty and
// malformed bodies, and explicit API error envelopes are distinct so the
// orchestrator and retry layer can tell an outage from a refusal.

// ErrEmptyResponse means the API answered 200 with no body.
var ErrEmptyResponse = errors.New("registrar returned empty response")

// TransportError is an HTTP-layer failure: the request never produced a
// usable response.
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("registrar transport failure during %s: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// APIError is the registrar's explicit error envelope, with every error text
// folded into one message.
type APIError struct {
	Messages []string
}

func (e *APIError) Error() string {
	return "registrar api error: " + strings.Join(e.Messages, "; ")
}
