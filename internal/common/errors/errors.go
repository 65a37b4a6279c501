package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	// Generic codes
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"

	// Registration pipeline
	ErrCodeValidation            ErrorCode = "VALIDATION_ERROR"
	ErrCodeDuplicateRegistration ErrorCode = "DUPLICATE_REGISTRATION"
	ErrCodeOwnershipConflict     ErrorCode = "ACCOUNT_OWNERSHIP_CONFLICT"
	ErrCodeMembershipRequired    ErrorCode = "MEMBERSHIP_REQUIRED"
	ErrCodeMaxAttempts           ErrorCode = "MAX_ATTEMPTS_REACHED"

	// Concurrency
	ErrCodeLockTimeout       ErrorCode = "LOCK_TIMEOUT"
	ErrCodeAlreadyInProgress ErrorCode = "ALREADY_IN_PROGRESS"

	// Payment workflow
	ErrCodePaymentStateConflict ErrorCode = "PAYMENT_STATE_CONFLICT"

	// Infrastructure
	ErrCodeStorage     ErrorCode = "STORAGE_ERROR"
	ErrCodeCache       ErrorCode = "CACHE_ERROR"
	ErrCodeTelegramAPI ErrorCode = "TELEGRAM_API_ERROR"
	ErrCodeTradingAPI  ErrorCode = "TRADING_API_ERROR"
)

// Reasons qualify a code. Account validation kinds:
const (
	ReasonNotFound            = "not_found"
	ReasonNotLive             = "not_live"
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonUnknown             = "unknown"
)

// Duplicate registration kinds:
const (
	ReasonPeriod = "period"
	ReasonToday  = "today"
)

// Ownership conflict kinds:
const (
	ReasonUsedToday    = "used_today"
	ReasonOwnedByOther = "owned_by_other"
)

// Payment state conflict kinds:
const (
	ReasonAlreadyProcessed = "already_processed"
	ReasonUnexpectedStatus = "unexpected_status"
)

// AppError is the typed application error carried across layers.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Reason    string                 `json:"reason,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    int64                  `json:"user_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	switch {
	case e.Cause != nil && e.Reason != "":
		return fmt.Sprintf("[%s/%s] %s: %v", e.Code, e.Reason, e.Message, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	case e.Reason != "":
		return fmt.Sprintf("[%s/%s] %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the registration pipeline may consume an attempt
// and let the user resubmit. Terminal and concurrency errors are not.
func (e *AppError) Retryable() bool {
	return e.Code == ErrCodeValidation || e.Code == ErrCodeOwnershipConflict
}

// Terminal reports whether the failure ends the registration flow outright.
func (e *AppError) Terminal() bool {
	return e.Code == ErrCodeDuplicateRegistration ||
		e.Code == ErrCodeMembershipRequired ||
		e.Code == ErrCodeMaxAttempts
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithUserID(userID int64) *AppError {
	e.UserID = userID
	return e
}

// New creates a new application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewWithReason creates a new application error with a qualifying reason.
func NewWithReason(code ErrorCode, reason, message string) *AppError {
	e := New(code, message)
	e.Reason = reason
	return e
}

// Wrap attaches a cause to a new application error.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Constructors for the taxonomy.

// NewValidationError reports an external account validation failure.
// Kind is one of the account validation reasons.
func NewValidationError(kind string, accountID string) *AppError {
	return NewWithReason(ErrCodeValidation, kind,
		fmt.Sprintf("Account validation failed: %s", kind)).
		WithDetail("account_id", accountID)
}

// NewDuplicateRegistrationError reports that the user already holds an active
// registration for the period or already registered today.
func NewDuplicateRegistrationError(kind string, giveawayType string) *AppError {
	return NewWithReason(ErrCodeDuplicateRegistration, kind,
		fmt.Sprintf("Already registered for this %s", kind)).
		WithDetail("giveaway_type", giveawayType)
}

// NewOwnershipConflictError reports that the account belongs to, or was used
// today by, another user.
func NewOwnershipConflictError(kind string, accountID string) *AppError {
	return NewWithReason(ErrCodeOwnershipConflict, kind,
		fmt.Sprintf("Account %s is not available: %s", accountID, kind)).
		WithDetail("account_id", accountID)
}

// NewMembershipRequiredError reports a failed community membership gate.
func NewMembershipRequiredError(userID int64) *AppError {
	return New(ErrCodeMembershipRequired, "Community membership is required to participate").
		WithUserID(userID)
}

// NewMaxAttemptsError reports an exhausted attempt budget.
func NewMaxAttemptsError(userID int64, giveawayType string) *AppError {
	return New(ErrCodeMaxAttempts, "Maximum registration attempts reached, start over").
		WithUserID(userID).
		WithDetail("giveaway_type", giveawayType)
}

// NewLockTimeoutError reports a bounded lock wait that expired.
func NewLockTimeoutError(key string, timeout time.Duration) *AppError {
	return New(ErrCodeLockTimeout, "Operation timed out waiting for lock, try again").
		WithDetail("key", key).
		WithDetail("timeout", timeout.String())
}

// NewAlreadyInProgressError reports a duplicate in-flight invocation detected
// before any lock wait.
func NewAlreadyInProgressError(key string) *AppError {
	return New(ErrCodeAlreadyInProgress, "Operation already in progress").
		WithDetail("key", key)
}

// NewPaymentStateConflictError reports a confirmation against a winner that is
// missing, already processed, or in an unexpected status.
func NewPaymentStateConflictError(kind string, winnerID string) *AppError {
	return NewWithReason(ErrCodePaymentStateConflict, kind,
		fmt.Sprintf("Payment confirmation rejected: %s", kind)).
		WithDetail("winner_id", winnerID)
}

// NewStorageError wraps a record-store failure.
func NewStorageError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStorage, fmt.Sprintf("Storage operation failed: %s", operation)).
		WithDetail("operation", operation)
}

// AsAppError extracts an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the error code of err, or ErrCodeInternal when err is not
// an AppError.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// ReasonOf returns the qualifying reason of err, if any.
func ReasonOf(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Reason
	}
	return ""
}
