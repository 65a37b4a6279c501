package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryableClassification(t *testing.T) {
	assert.True(t, NewValidationError(ReasonNotFound, "123456").Retryable())
	assert.True(t, NewOwnershipConflictError(ReasonUsedToday, "123456").Retryable())

	assert.False(t, NewDuplicateRegistrationError(ReasonPeriod, "daily").Retryable())
	assert.False(t, NewMembershipRequiredError(42).Retryable())
	assert.False(t, NewMaxAttemptsError(42, "daily").Retryable())
}

func TestTerminalClassification(t *testing.T) {
	assert.True(t, NewDuplicateRegistrationError(ReasonToday, "daily").Terminal())
	assert.True(t, NewMembershipRequiredError(42).Terminal())
	assert.True(t, NewMaxAttemptsError(42, "daily").Terminal())

	assert.False(t, NewValidationError(ReasonNotLive, "123456").Terminal())
	assert.False(t, NewOwnershipConflictError(ReasonOwnedByOther, "123456").Terminal())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(cause, ErrCodeStorage, "Append failed")

	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, ErrCodeStorage, CodeOf(err))
	assert.Contains(t, err.Error(), "Append failed")
	assert.Contains(t, err.Error(), "disk full")
}

func TestAsAppError(t *testing.T) {
	appErr, ok := AsAppError(NewLockTimeoutError("draw:daily", 15*time.Second))
	require.True(t, ok)
	assert.Equal(t, ErrCodeLockTimeout, appErr.Code)

	wrapped := fmt.Errorf("outer: %w", NewAlreadyInProgressError("k"))
	appErr, ok = AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeAlreadyInProgress, appErr.Code)

	_, ok = AsAppError(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestCodeAndReasonOfPlainError(t *testing.T) {
	err := fmt.Errorf("plain")
	assert.Equal(t, ErrCodeInternal, CodeOf(err))
	assert.Empty(t, ReasonOf(err))
}

func TestWithDetailChaining(t *testing.T) {
	err := NewValidationError(ReasonInsufficientBalance, "123456").
		WithDetail("balance", 50.0).
		WithDetail("min_balance", 100.0).
		WithUserID(42)

	assert.Equal(t, int64(42), err.UserID)
	assert.Equal(t, 50.0, err.Details["balance"])
	assert.Equal(t, "123456", err.Details["account_id"])
}
