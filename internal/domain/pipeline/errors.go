package pipeline

import (
	"errors"
	"fmt"
)

// TransportError is a network-level failure (timeout, connection refused)
// on a collaborator call. Transport failures are eligible for retry.
type TransportError struct {
	Service string
	Op      string
	Cause   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport failure: %v", e.Service, e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportError wraps a network failure from a collaborator call.
func NewTransportError(service, op string, cause error) *TransportError {
	return &TransportError{Service: service, Op: op, Cause: cause}
}

// CollaboratorError is a definitive non-2xx rejection from a collaborator.
// It is never retried and aborts the run.
type CollaboratorError struct {
	Service    string
	Op         string
	StatusCode int
	Message    string
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Service, e.Op, e.StatusCode, e.Message)
}

// NewCollaboratorError wraps an application-level rejection.
func NewCollaboratorError(service, op string, statusCode int, message string) *CollaboratorError {
	return &CollaboratorError{Service: service, Op: op, StatusCode: statusCode, Message: message}
}

// IsTransient reports whether err should be retried by the collaborator
// client. Only transport failures qualify; collaborator rejections are a
// definitive decision.
func IsTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ExecutionError wraps the first step failure that aborted a run. Steps
// recorded before the failure stay persisted for diagnosis.
type ExecutionError struct {
	SessionID string
	Step      string
	Cause     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("pipeline step %s failed for session %s: %v", e.Step, e.SessionID, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// NewExecutionError names the step that aborted the run.
func NewExecutionError(sessionID, step string, cause error) *ExecutionError {
	return &ExecutionError{SessionID: sessionID, Step: step, Cause: cause}
}
