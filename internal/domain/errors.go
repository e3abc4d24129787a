package domain

import "fmt"

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
		Err:     nil,
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

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeExtraction       = "EXTRACTION_ERROR"
	ErrCodeConfiguration    = "CONFIGURATION_ERROR"
	ErrCodeBuildTimeout     = "BUILD_TIMEOUT"
)

// Validation errors
var (
	ErrInvalidDocumentCategory = NewDomainError(ErrCodeValidation, "invalid document category")
	ErrInvalidDocumentStatus   = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrInvalidModelCategory    = NewDomainError(ErrCodeValidation, "invalid model category")
	ErrMissingRequiredField    = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrProjectNotFound  = NewDomainError(ErrCodeNotFound, "project not found")
	ErrBundleNotFound   = NewDomainError(ErrCodeNotFound, "context bundle not found")
	ErrPolicyNotFound   = NewDomainError(ErrCodeNotFound, "allocation policy not found")
)

// Already exists errors
var (
	ErrDocumentAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "document already exists")
	ErrProjectAlreadyExists  = NewDomainError(ErrCodeAlreadyExists, "project already exists")
)

// Build errors
var (
	ErrExtractionFailed = NewDomainError(ErrCodeExtraction, "document text extraction failed")
	ErrBuildTimeout     = NewDomainError(ErrCodeBuildTimeout, "context build exceeded time limit")
	ErrStaleBuildResult = NewDomainError(ErrCodeInvalidOperation, "build result is stale, document set changed")
	ErrStorageOperation = NewDomainError(ErrCodeInternalError, "storage operation failed")
)
