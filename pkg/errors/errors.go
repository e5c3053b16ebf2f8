package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// StandardError represents a standardized error response
type StandardError struct {
	Code    string `json:"error"`   // Error code/type (e.g., "NotFound", "InvalidTransition")
	Message string `json:"message"` // Human-readable error message
	Details string `json:"details"` // Additional details (current state, quantities, etc.)
}

// Error implements the error interface
func (e *StandardError) Error() string {
	return e.Message
}

// HTTPStatus returns the appropriate HTTP status code for the error
func (e *StandardError) HTTPStatus() int {
	switch e.Code {
	case "ValidationError", "InvalidTransition", "InsufficientStock":
		return http.StatusBadRequest
	case "Forbidden":
		return http.StatusForbidden
	case "NotFound":
		return http.StatusNotFound
	case "AlreadyClaimed", "Conflict":
		return http.StatusConflict
	case "InventoryUpdateFailed", "DatabaseError", "InternalError":
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewStandardError creates a new StandardError
func NewStandardError(errorCode, message, details string) *StandardError {
	return &StandardError{
		Code:    errorCode,
		Message: message,
		Details: details,
	}
}

// FromError normalizes any error into a StandardError. Unknown errors
// become InternalError so callers never leak unstructured failures.
func FromError(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewStandardError("InternalError", "internal error", err.Error())
}

// HasCode reports whether err is a StandardError with the given code.
func HasCode(err error, code string) bool {
	var stdErr *StandardError
	return errors.As(err, &stdErr) && stdErr.Code == code
}

// Common error constructors

func NewNotFound(resource, id string) *StandardError {
	return NewStandardError("NotFound", fmt.Sprintf("%s not found", resource), fmt.Sprintf("ID: %s", id))
}

func NewForbidden(message string) *StandardError {
	return NewStandardError("Forbidden", message, "")
}

func NewInvalidTransition(current, requested string) *StandardError {
	return NewStandardError("InvalidTransition", "transition not allowed from current status",
		fmt.Sprintf("Current: %s, Requested: %s", current, requested))
}

func NewInsufficientStock(available, requested int) *StandardError {
	return NewStandardError("InsufficientStock", "insufficient stock available",
		fmt.Sprintf("Available: %d, Requested: %d", available, requested))
}

func NewAlreadyClaimed(transferID string) *StandardError {
	return NewStandardError("AlreadyClaimed", "transfer already claimed by another courier",
		fmt.Sprintf("Transfer ID: %s", transferID))
}

func NewInventoryUpdateFailed(operation string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return NewStandardError("InventoryUpdateFailed",
		fmt.Sprintf("inventory update failed during %s", operation), details)
}

func NewValidationError(message, field string) *StandardError {
	return NewStandardError("ValidationError", message, fmt.Sprintf("Field: %s", field))
}

func NewDatabaseError(operation string, err error) *StandardError {
	return NewStandardError("DatabaseError", fmt.Sprintf("database operation failed: %s", operation), err.Error())
}

func NewInternalError(message string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return NewStandardError("InternalError", message, details)
}
