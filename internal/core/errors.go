package core

import (
	"errors"
	"fmt"

	"reservecore/pkg/domain"
)

// ErrorCode is a stable machine-readable classification carried by every
// service error. Codes are part of the API surface; messages are not.
type ErrorCode string

// Service error codes.
const (
	CodeValidation     ErrorCode = "validation"
	CodeForbidden      ErrorCode = "forbidden"
	CodeNotFound       ErrorCode = "not_found"
	CodeConflict       ErrorCode = "conflict"
	CodeStatusConflict ErrorCode = "status_conflict"
	CodeInternal       ErrorCode = "internal"
)

// Error is the taxonomy every service operation reports failures through.
// Details carries structured context (ids, quantities, statuses) safe to
// surface to callers.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.cause }

// CodeOf extracts the service error code, or CodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return CodeInternal
}

func newValidationError(message string, details map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: message, Details: details}
}

func newForbiddenError(role string) *Error {
	return &Error{
		Code:    CodeForbidden,
		Message: "role is not permitted to manage reservations",
		Details: map[string]string{"role": role},
	}
}

// newNotFoundError covers both genuinely missing records and records owned by
// another organization; the two cases are indistinguishable to the caller.
func newNotFoundError(entity domain.EntityType, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", entity),
		Details: map[string]string{"entity": string(entity), "id": id},
	}
}

func newConflictError(message string, details map[string]string, cause error) *Error {
	return &Error{Code: CodeConflict, Message: message, Details: details, cause: cause}
}

func newStatusConflictError(status domain.WorkOrderStatus) *Error {
	return &Error{
		Code:    CodeStatusConflict,
		Message: "work order status does not allow reservation changes",
		Details: map[string]string{"status": string(status)},
	}
}

func newInternalError(message string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: message, cause: cause}
}
