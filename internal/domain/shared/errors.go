package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError carrying the same code, so wrapped
// or re-messaged errors still match the sentinels below with errors.Is.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if !errors.As(target, &de) {
		return false
	}
	return de.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes
const (
	CodeNotFound           = "NOT_FOUND"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidDelta       = "INVALID_DELTA"
	CodeInvalidState       = "INVALID_STATE"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodeConcurrencyTimeout = "CONCURRENCY_TIMEOUT"
	CodeConcurrency        = "CONCURRENCY_CONFLICT"
	CodeAdapterFailure     = "ADAPTER_FAILURE"
	CodeIntegrity          = "INTEGRITY_VIOLATION"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrInvalidDelta        = NewDomainError(CodeInvalidDelta, "Invalid ledger delta")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInsufficientStock   = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrConcurrencyTimeout  = NewDomainError(CodeConcurrencyTimeout, "Timed out waiting for stock unit lock")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrency, "Resource was modified by another process")
	ErrAdapterFailure      = NewDomainError(CodeAdapterFailure, "Platform adapter call failed")
	ErrIntegrityViolation  = NewDomainError(CodeIntegrity, "Data integrity violation detected")
)

// IsDomainError reports whether err (or anything it wraps) is a DomainError with the given code.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
