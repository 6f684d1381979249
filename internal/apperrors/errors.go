package apperrors

import (
	"errors"
	"fmt"
)

// Standard application errors
var (
	ErrStorageUnavailable = New("storage_unavailable", "The local store could not be reached.")
	ErrFileRejected       = New("file_rejected", "The file has an unsupported extension or exceeds the size limit.")
	ErrReadError          = New("read_error", "The file could not be read.")
	ErrParseError         = New("parse_error", "The file could not be parsed as a spreadsheet.")
	ErrEmptyWorkbook      = New("empty_workbook", "No sheet in the workbook contains data rows.")
	ErrUserCancelled      = New("user_cancelled", "The operation was cancelled before overwriting existing data.")
	ErrTransactionError   = New("transaction_error", "The store write failed; no partial data was committed.")
	ErrSearchError        = New("search_error", "The search query could not be executed.")
)

// AppError defines a standard application error
type AppError struct {
	Code    string `json:"code"`    // Machine-readable error code
	Message string `json:"message"` // Human-readable message
	Err     error  `json:"-"`       // Underlying error, not exposed in JSON by default
}

// Error builds and returns an error string
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (code: %s, original_error: %v)", e.Message, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (code: %s)", e.Message, e.Code)
}

// Unwrap returns the underlying error so errors.Is/As can walk the chain
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with an AppError, providing additional context.
// If customMessage is provided, it overrides the default message of baseAppErr.
func Wrap(err error, baseAppErr *AppError, customMessage ...string) *AppError {
	msg := baseAppErr.Message
	if len(customMessage) > 0 && customMessage[0] != "" {
		msg = customMessage[0]
	}
	return &AppError{
		Code:    baseAppErr.Code,
		Message: msg,
		Err:     err,
	}
}

// Is checks if an error is of a specific AppError type by comparing codes
func Is(err error, target *AppError) bool {
	var e *AppError
	if errors.As(err, &e) {
		return e.Code == target.Code
	}
	return false
}

// CodeOf returns the error code for err, or "internal_error" when err carries
// no AppError classification.
func CodeOf(err error) string {
	var e *AppError
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal_error"
}
