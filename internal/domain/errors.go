package domain

import (
	"errors"
	"fmt"
)

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Error codes the engine surfaces to callers.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeValidation        = "VALIDATION_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeIneligible        = "INELIGIBLE"
	CodePersistence       = "PERSISTENCE_ERROR"
	CodeProviderExhausted = "PROVIDER_EXHAUSTED"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeDuplicateRequest  = "DUPLICATE_REQUEST"
	CodeInternal          = "INTERNAL_ERROR"
)

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: CodeConflict, Message: msg, Status: 409}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: CodeValidation, Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: CodeForbidden, Message: msg, Status: 403}
}

// ErrIneligible is returned by WatchAd when the eligibility gate refuses the request.
// Re-checking eligibility tells the caller when to try again.
func ErrIneligible(reason string) *AppError {
	return &AppError{Code: CodeIneligible, Message: reason, Status: 403}
}

// ErrPersistence means the ad was watched but durable storage failed.
// Retry the write, never the ad.
func ErrPersistence(cause error) *AppError {
	return &AppError{Code: CodePersistence, Message: "session outcome not persisted", Status: 503, Cause: cause}
}

// ErrProviderExhausted means every adapter in the chain failed. With a
// simulation floor configured this is unreachable.
func ErrProviderExhausted() *AppError {
	return &AppError{Code: CodeProviderExhausted, Message: "no ad provider produced a result", Status: 500}
}

func ErrInvalidTransition(from, to SessionState) *AppError {
	return &AppError{Code: CodeInvalidTransition, Message: fmt.Sprintf("cannot move session from %s to %s", from, to), Status: 409}
}

func ErrDuplicateRequest(msg string) *AppError {
	return &AppError{Code: CodeDuplicateRequest, Message: msg, Status: 409}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: msg, Status: 500, Cause: cause}
}

// HasCode reports whether err wraps an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
