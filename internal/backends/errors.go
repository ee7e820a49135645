package backends

import (
	"errors"
	"fmt"
)

// SemanticError is a well-formed backend response reporting a business
// failure: the request reached the backend and was understood, but the
// operation was refused (domain taken, transfer rejected, bad auth code).
// These are expected outcomes, not faults; callers should not retry blindly.
type SemanticError struct {
	Provider string
	Message  string
	// Code is the backend's numeric result code when it has one, 0 otherwise.
	Code int
}

func (e *SemanticError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (code %d)", e.Provider, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// IsSemantic reports whether err is a backend business failure.
func IsSemantic(err error) bool {
	var se *SemanticError
	return errors.As(err, &se)
}
