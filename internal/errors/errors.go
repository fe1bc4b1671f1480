package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the page translation worker
 *
 * Every stage failure that ends a page is reported as a PageError so the
 * orchestrator can record a short human-readable reason next to the page.
 * Degraded results (fallback font, unmodified bitmap) are not errors.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Page-fatal errors
	ErrorInput               ErrorCode = "INPUT_ERROR"
	ErrorNoContent           ErrorCode = "NO_CONTENT"
	ErrorCollaboratorFailed  ErrorCode = "COLLABORATOR_FAILED"
	ErrorProcessingTimeout   ErrorCode = "PROCESSING_TIMEOUT"
	ErrorStorageFailed       ErrorCode = "STORAGE_FAILED"
	ErrorInvalidStatusChange ErrorCode = "INVALID_STATUS_CHANGE"
)

// PageError represents a structured page processing error
type PageError struct {
	Code      ErrorCode
	Message   string
	PageID    string
	Stage     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *PageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PageError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewInputError(pageID string, reason string, cause error) *PageError {
	return &PageError{
		Code:      ErrorInput,
		Message:   reason,
		PageID:    pageID,
		Stage:     "load",
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewNoContentError(pageID string, detections int) *PageError {
	return &PageError{
		Code:      ErrorNoContent,
		Message:   "No text detected in image",
		PageID:    pageID,
		Stage:     "detection",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"raw_detections": detections,
		},
	}
}

func NewCollaboratorError(pageID string, collaborator string, cause error) *PageError {
	return &PageError{
		Code:      ErrorCollaboratorFailed,
		Message:   fmt.Sprintf("%s is unavailable", collaborator),
		PageID:    pageID,
		Stage:     collaborator,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"collaborator": collaborator,
		},
		Cause: cause,
	}
}

func NewProcessingTimeoutError(pageID string, duration time.Duration, cause error) *PageError {
	return &PageError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		PageID:    pageID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewStorageFailedError(pageID string, stage string, cause error) *PageError {
	return &PageError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store processing results",
		PageID:    pageID,
		Stage:     stage,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewInvalidStatusChangeError(pageID string, from, to string) *PageError {
	return &PageError{
		Code:      ErrorInvalidStatusChange,
		Message:   fmt.Sprintf("Cannot move page from %s to %s", from, to),
		PageID:    pageID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"from": from,
			"to":   to,
		},
	}
}

// WithStage returns the error annotated with the pipeline stage it came from.
func (e *PageError) WithStage(stage string) *PageError {
	e.Stage = stage
	return e
}

// CodeOf returns the code of the first PageError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var pe *PageError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Reason returns the user-facing failure reason for err.
func Reason(err error) string {
	var pe *PageError
	if stderrors.As(err, &pe) {
		return pe.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// ToMap converts error to map for database storage
func (e *PageError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.Stage != "" {
		result["stage"] = e.Stage
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
