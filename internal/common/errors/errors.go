// Package errors provides standardized error handling for the screening pipeline.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeJobResolutionFailed ErrorCode = "JOB_RESOLUTION_FAILED"
	ErrCodeJobNotFound         ErrorCode = "JOB_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeMediaFetchFailed    ErrorCode = "MEDIA_FETCH_FAILED"
	ErrCodeUnsupportedFormat   ErrorCode = "UNSUPPORTED_FORMAT"
	ErrCodeEmptyDocument       ErrorCode = "EMPTY_DOCUMENT"
	ErrCodeResumeParsingFailed ErrorCode = "RESUME_PARSING_FAILED"
	ErrCodeArchivalFailed      ErrorCode = "ARCHIVAL_FAILED"

	ErrCodeDialogueFailed     ErrorCode = "DIALOGUE_FAILED"
	ErrCodeDialogueTimeout    ErrorCode = "DIALOGUE_TIMEOUT"
	ErrCodeEvaluationFailed   ErrorCode = "EVALUATION_FAILED"
	ErrCodeSummaryFailed      ErrorCode = "SUMMARY_FAILED"
	ErrCodeMessageSendFailed  ErrorCode = "MESSAGE_SEND_FAILED"
	ErrCodeDecryptionFailed   ErrorCode = "DECRYPTION_FAILED"
	ErrCodeCredentialsMissing ErrorCode = "CREDENTIALS_MISSING"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsCode reports whether err is a StandardError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := err.(*StandardError)
	return ok && stdErr.Code == code
}

// ==========================
// 2. Error Constructors
// ==========================

// NewJobResolutionFailedError creates a retryable routing error.
func NewJobResolutionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeJobResolutionFailed,
		Message:   "Failed to resolve inbound message to a job",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewJobNotFoundError creates a non-retryable job lookup error.
func NewJobNotFoundError(jobID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeJobNotFound,
		Message:   "Job not found",
		Details:   fmt.Sprintf("jobId: %s", jobID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMediaFetchFailedError creates a retryable media download error.
func NewMediaFetchFailedError(url string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMediaFetchFailed,
		Message:   "Failed to download media attachment",
		Details:   fmt.Sprintf("url: %s, error: %s", url, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnsupportedFormatError creates a non-retryable document format error.
func NewUnsupportedFormatError(contentType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsupportedFormat,
		Message:   "Unsupported document format",
		Details:   fmt.Sprintf("contentType: %s", contentType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmptyDocumentError creates a non-retryable empty document error.
func NewEmptyDocumentError(length int) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyDocument,
		Message:   "Document contains no extractable text",
		Details:   fmt.Sprintf("extractedLength: %d", length),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewResumeParsingFailedError creates a retryable résumé extraction error.
func NewResumeParsingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeResumeParsingFailed,
		Message:   "Failed to extract structured data from résumé",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewArchivalFailedError creates a retryable blob archival error.
func NewArchivalFailedError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeArchivalFailed,
		Message:   "Failed to archive document",
		Details:   fmt.Sprintf("key: %s, error: %s", key, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDialogueFailedError creates a retryable dialogue generation error.
func NewDialogueFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDialogueFailed,
		Message:   "Dialogue generation error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDialogueTimeoutError creates a retryable dialogue timeout error.
func NewDialogueTimeoutError(step string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDialogueTimeout,
		Message:   "Dialogue generation timeout",
		Details:   fmt.Sprintf("step: %s", step),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEvaluationFailedError creates a retryable criterion evaluation error.
func NewEvaluationFailedError(criterion string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEvaluationFailed,
		Message:   "Criterion evaluation error",
		Details:   fmt.Sprintf("criterion: %s, error: %s", criterion, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSummaryFailedError creates a retryable summary generation error.
func NewSummaryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSummaryFailed,
		Message:   "Summary generation error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMessageSendFailedError creates a retryable outbound message error.
func NewMessageSendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMessageSendFailed,
		Message:   "Failed to send outbound message",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDecryptionFailedError creates a non-retryable vault error.
func NewDecryptionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDecryptionFailed,
		Message:   "Failed to decrypt stored value",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCredentialsMissingError creates a non-retryable credentials error.
func NewCredentialsMissingError(orgID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCredentialsMissing,
		Message:   "No usable messaging credentials for organization",
		Details:   fmt.Sprintf("orgId: %s", orgID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
