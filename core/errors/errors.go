package errors

import "fmt"

type ErrorCode string

const (
	// Generic codes
	ErrInternalServer     ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrInvalidRequestData ErrorCode = "INVALID_REQUEST_DATA"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrAlreadyExists      ErrorCode = "ALREADY_EXISTS"
	ErrForbidden          ErrorCode = "FORBIDDEN"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"

	// Scheduling codes
	ErrConflict       ErrorCode = "CONFLICT"
	ErrSlotAtCapacity ErrorCode = "SLOT_AT_CAPACITY"
	ErrStepExecution  ErrorCode = "STEP_EXECUTION_FAILED"
	ErrSyncFailed     ErrorCode = "SYNC_FAILED"
)

// AppError is the error type returned by all services. Code drives the HTTP
// mapping in the base controller, Err keeps the underlying cause for logs.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	Details any
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewConflictError carries structured conflict details (and suggested
// alternatives) back to the caller alongside the CONFLICT code.
func NewConflictError(message string, details any) *AppError {
	return &AppError{Code: ErrConflict, Message: message, Details: details}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ConflictDetail describes one detected scheduling conflict. Severity "error"
// blocks admission, "warning" is advisory.
type ConflictDetail struct {
	Type         string `json:"type"`
	Severity     string `json:"severity"`
	Description  string `json:"description"`
	AttendeeID   string `json:"attendee_id,omitempty"`
	Alternatives []any  `json:"alternatives,omitempty"`
}
