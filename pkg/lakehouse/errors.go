package lakehouse

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents a structured remote-system failure. Op tags the operation
// that observed it (for example "analyze-table" or "get-statement") so
// diagnostics keep their context as the error propagates.
type Error struct {
	Op         string         // Operation context
	Message    string         // Remote human-readable message
	Code       string         // Remote error code if reported
	State      StatementState // Terminal statement state if applicable
	StatusCode int            // HTTP status code if applicable
	Cause      error          // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.State != "" {
		parts = append(parts, string(e.State))
	}
	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewStatementError builds an Error from a terminal statement status,
// tagging it with the operation that observed the failure. The remote error
// payload may be absent even for failed statements.
func NewStatementError(op string, status StatementStatus) *Error {
	e := &Error{
		Op:    op,
		State: status.State,
	}
	if status.Error != nil {
		e.Code = status.Error.Code
		e.Message = status.Error.Message
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("statement reached state %s", status.State)
	}
	return e
}

// AsError extracts a *Error from err's chain, or nil if there is none.
func AsError(err error) *Error {
	var lhErr *Error
	if errors.As(err, &lhErr) {
		return lhErr
	}
	return nil
}
