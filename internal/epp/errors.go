package epp

import "fmt"

// ConnectionExhaustedError reports that every connection attempt failed.
type ConnectionExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ConnectionExhaustedError) Error() string {
	return fmt.Sprintf("registry connection failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ConnectionExhaustedError) Unwrap() error { return e.Last }

// ConnectionUnhealthyError reports a connected session that failed its
// liveness probe. The session is marked disconnected; the next command
// reconnects.
type ConnectionUnhealthyError struct {
	Reason string
	Cause  error
}

func (e *ConnectionUnhealthyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("registry session unhealthy: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("registry session unhealthy: %s", e.Reason)
}

func (e *ConnectionUnhealthyError) Unwrap() error { return e.Cause }

// CommandError reports a command that did not complete successfully, either
// because transport failed or because the registry answered with a non-1000
// result code. Code is 0 when no well-formed result arrived.
type CommandError struct {
	Code    int
	Message string
	Cause   error
}

func (e *CommandError) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("registry command failed: %s (code %d)", e.Message, e.Code)
	case e.Cause != nil:
		return fmt.Sprintf("registry command failed: %s: %v", e.Message, e.Cause)
	default:
		return fmt.Sprintf("registry command failed: %s", e.Message)
	}
}

func (e *CommandError) Unwrap() error { return e.Cause }
