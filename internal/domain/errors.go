package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the outermost DomainError in err's chain,
// or an empty string when there is none.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrCodeConfiguration     = "CONFIGURATION_ERROR"
	ErrCodeExternalProvider  = "EXTERNAL_PROVIDER_ERROR"
	ErrCodePersistence       = "PERSISTENCE_ERROR"
	ErrCodeInvalidJobState   = "INVALID_JOB_STATE"
	ErrCodeModelMismatch     = "EMBEDDING_MODEL_MISMATCH"
)

// Validation errors
var (
	ErrInvalidJobStatus     = NewDomainError(ErrCodeValidation, "invalid job status")
	ErrInvalidSourceKind    = NewDomainError(ErrCodeValidation, "invalid source kind")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyDocument        = NewDomainError(ErrCodeValidation, "document contains no extractable text")
	ErrEmptyQuery           = NewDomainError(ErrCodeValidation, "query text is empty")
)

// Not found errors
var (
	ErrJobNotFound            = NewDomainError(ErrCodeNotFound, "knowledge job not found")
	ErrSourceNotFound         = NewDomainError(ErrCodeNotFound, "source not found")
	ErrSourceFileNotFound     = NewDomainError(ErrCodeNotFound, "source file not found")
	ErrKnowledgeItemNotFound  = NewDomainError(ErrCodeNotFound, "knowledge item not found")
	ErrKnowledgeQueryNotFound = NewDomainError(ErrCodeNotFound, "knowledge query not found")
)

// Authorization errors
var (
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Pipeline errors
var (
	ErrUnsupportedFormat    = NewDomainError(ErrCodeUnsupportedFormat, "unsupported source format")
	ErrInvalidChunkConfig   = NewDomainError(ErrCodeConfiguration, "invalid chunking configuration")
	ErrInvalidJobState      = NewDomainError(ErrCodeInvalidJobState, "job is not in the expected state")
	ErrModelMismatch        = NewDomainError(ErrCodeModelMismatch, "embedding model does not match stored corpus")
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)
