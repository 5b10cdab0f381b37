package errors

import (
	"net/http"
	"sort"
	"strings"

	"parkshare/internal/errors"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// FieldErrors is implemented by errors that carry per-field validation messages.
type FieldErrors interface {
	Fields() map[string]string
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	return e.message
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() string {
	return e.details
}

// WithDetails adds detailed error information
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// Is matches any BaseError with the same business code, so copies made by WithDetails
// still satisfy errors.Is against the predefined value.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)
	if !ok {
		return false
	}

	return e.errorCode == t.errorCode
}

// Predefined error types
var (
	// Validation errors
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"Input validation failed",
		"",
	)

	ErrPasswordPolicy = NewBaseError(
		http.StatusBadRequest,
		"PASSWORD_POLICY",
		"Password does not meet the security requirements",
		"",
	)

	// Authentication errors
	ErrIncorrectCredentials = NewBaseError(
		http.StatusUnauthorized,
		"INCORRECT_CREDENTIALS",
		"Incorrect credentials",
		"",
	)

	ErrInvalidPin = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_PIN",
		"The PIN code is invalid or has expired",
		"",
	)

	ErrNotAuthenticated = NewBaseError(
		http.StatusUnauthorized,
		"NOT_AUTHENTICATED",
		"You are not logged in",
		"",
	)

	ErrInvalidToken = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_TOKEN",
		"Invalid session token",
		"",
	)

	ErrTokenExpired = NewBaseError(
		http.StatusUnauthorized,
		"TOKEN_EXPIRED",
		"Your session has expired",
		"",
	)

	ErrAccountGone = NewBaseError(
		http.StatusUnauthorized,
		"ACCOUNT_GONE",
		"The account belonging to this session no longer exists",
		"",
	)

	ErrPasswordChangedSince = NewBaseError(
		http.StatusUnauthorized,
		"PASSWORD_CHANGED",
		"The password was changed recently, please log in again",
		"",
	)

	ErrIncorrectCurrentPassword = NewBaseError(
		http.StatusUnauthorized,
		"INCORRECT_CURRENT_PASSWORD",
		"The current password is incorrect",
		"",
	)

	// Authorization errors
	ErrForbidden = NewBaseError(
		http.StatusForbidden,
		"FORBIDDEN",
		"You do not have permission to perform this action",
		"",
	)

	ErrEmailAlreadyVerified = NewBaseError(
		http.StatusForbidden,
		"EMAIL_ALREADY_VERIFIED",
		"The email address is already confirmed",
		"",
	)

	// Not found errors
	ErrNotFound = NewBaseError(
		http.StatusNotFound,
		"NOT_FOUND",
		"Resource not found",
		"",
	)

	ErrAccountNotFound = NewBaseError(
		http.StatusNotFound,
		"ACCOUNT_NOT_FOUND",
		"Account not found",
		"",
	)

	ErrParkingNotFound = NewBaseError(
		http.StatusNotFound,
		"PARKING_NOT_FOUND",
		"Parking not found",
		"",
	)

	ErrConfirmationLinkInvalid = NewBaseError(
		http.StatusNotFound,
		"CONFIRMATION_LINK_INVALID",
		"The confirmation link is invalid or has expired",
		"",
	)

	// Conflict errors
	ErrAlreadyOccupied = NewBaseError(
		http.StatusBadRequest,
		"ALREADY_OCCUPIED",
		"This parking is already occupied",
		"",
	)

	ErrSelfReservation = NewBaseError(
		http.StatusBadRequest,
		"SELF_RESERVATION",
		"You cannot reserve your own parking",
		"",
	)

	ErrNoActiveReservation = NewBaseError(
		http.StatusBadRequest,
		"NO_ACTIVE_RESERVATION",
		"You have no active reservation on this parking",
		"",
	)

	ErrNoPendingReservation = NewBaseError(
		http.StatusBadRequest,
		"NO_PENDING_RESERVATION",
		"There is no reservation awaiting confirmation on this parking",
		"",
	)

	ErrAlreadyValidated = NewBaseError(
		http.StatusBadRequest,
		"ALREADY_VALIDATED",
		"This parking is already validated",
		"",
	)

	ErrResetTokenInvalid = NewBaseError(
		http.StatusBadRequest,
		"RESET_TOKEN_INVALID",
		"The password reset link is invalid or has expired",
		"",
	)

	// Timeout errors
	ErrConfirmationTimeout = NewBaseError(
		http.StatusRequestTimeout,
		"CONFIRMATION_TIMEOUT",
		"The parking sensor did not confirm the reservation in time",
		"",
	)

	ErrTooManyRequests = NewBaseError(
		http.StatusTooManyRequests,
		"TOO_MANY_REQUESTS",
		"Too many attempts, please try again later",
		"",
	)

	// Dependency errors
	ErrNotificationDelivery = NewBaseError(
		http.StatusInternalServerError,
		"NOTIFICATION_DELIVERY_FAILED",
		"There was an error sending the message, please try again later",
		"",
	)

	// General errors
	ErrInternalError = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"Internal server error",
		"",
	)
)

// ValidationError reports every invalid input field with its message.
type ValidationError struct {
	fields map[string]string
}

// NewValidationError creates a validation error for the given field messages.
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{fields: fields}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.fields[k])
	}

	return "invalid input data. " + strings.Join(parts, ". ")
}

func (e *ValidationError) HTTPCode() int     { return http.StatusBadRequest }
func (e *ValidationError) ErrorCode() string { return "VALIDATION_FAILED" }
func (e *ValidationError) Message() string   { return "Invalid input data" }
func (e *ValidationError) Details() string   { return e.Error() }

// Fields returns the per-field messages.
func (e *ValidationError) Fields() map[string]string {
	return e.fields
}

// Is lets errors.Is(err, ErrValidationFailed) match field-level validation errors.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// DuplicateKeyError reports a uniqueness violation on a named field.
type DuplicateKeyError struct {
	field string
}

// NewDuplicateKeyError creates a duplicate key error for the field.
func NewDuplicateKeyError(field string) *DuplicateKeyError {
	return &DuplicateKeyError{field: field}
}

// Error implements the error interface
func (e *DuplicateKeyError) Error() string {
	return "duplicate value for field " + e.field
}

func (e *DuplicateKeyError) HTTPCode() int     { return http.StatusBadRequest }
func (e *DuplicateKeyError) ErrorCode() string { return "DUPLICATE_KEY" }
func (e *DuplicateKeyError) Details() string   { return e.field }

// Message returns the user-friendly error message
func (e *DuplicateKeyError) Message() string {
	return "This " + e.field + " is already in use, please use another value"
}

// Field returns the offending field name.
func (e *DuplicateKeyError) Field() string {
	return e.field
}

// Fields exposes the offending field in the same shape as validation errors.
func (e *DuplicateKeyError) Fields() map[string]string {
	return map[string]string{e.field: "already in use"}
}

// DatabaseExecuteError represents a database execution error, implementing the AppError interface
type DatabaseExecuteError struct {
	err     error
	details string
}

// NewDatabaseExecuteError creates a database-related error
func NewDatabaseExecuteError(err error, details string) AppError {
	return &DatabaseExecuteError{
		err:     err,
		details: details,
	}
}

// Error implements the error interface
func (e *DatabaseExecuteError) Error() string {
	return errors.Wrap(e.err, "database execution failed").Error()
}

// Unwrap exposes the driver error.
func (e *DatabaseExecuteError) Unwrap() error {
	return e.err
}

// HTTPCode returns the HTTP status code
func (e *DatabaseExecuteError) HTTPCode() int {
	return http.StatusInternalServerError
}

// ErrorCode returns the business error code
func (e *DatabaseExecuteError) ErrorCode() string {
	return "DATABASE_EXECUTE_FAILED"
}

// Message returns the user-friendly error message
func (e *DatabaseExecuteError) Message() string {
	return "Database operation failed"
}

// Details returns detailed error information
func (e *DatabaseExecuteError) Details() string {
	return e.details
}
