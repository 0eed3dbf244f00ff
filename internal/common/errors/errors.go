package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode is a stable, client-visible error identifier
type ErrorCode string

const (
	// Generic
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"

	// Users
	ErrCodeUserNotFound         ErrorCode = "USER_NOT_FOUND"
	ErrCodeUserBanned           ErrorCode = "USER_BANNED"
	ErrCodeOnboardingIncomplete ErrorCode = "ONBOARDING_INCOMPLETE"

	// Your Turn
	ErrCodeSlotNotFound     ErrorCode = "SLOT_NOT_FOUND"
	ErrCodeSlotNotOpen      ErrorCode = "SLOT_NOT_OPEN"
	ErrCodeSlotArchived     ErrorCode = "SLOT_ARCHIVED"
	ErrCodeNotWinner        ErrorCode = "NOT_WINNER"
	ErrCodeQuestionNotFound ErrorCode = "QUESTION_NOT_FOUND"
	ErrCodeAlreadyVoted     ErrorCode = "ALREADY_VOTED"

	// Feed, rewards
	ErrCodeOpinionNotFound ErrorCode = "OPINION_NOT_FOUND"
	ErrCodeCouponNotFound  ErrorCode = "COUPON_NOT_FOUND"
	ErrCodeAlreadyClaimed  ErrorCode = "ALREADY_CLAIMED"
	ErrCodeOutOfStock      ErrorCode = "OUT_OF_STOCK"

	// Infrastructure
	ErrCodeDatabaseError    ErrorCode = "DATABASE_ERROR"
	ErrCodeCacheError       ErrorCode = "CACHE_ERROR"
	ErrCodeExternalAPI      ErrorCode = "EXTERNAL_API_ERROR"
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
)

// AppError is the typed error carried from services to the HTTP layer
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Context   map[string]string      `json:"context,omitempty"`
	Stack     []string               `json:"-"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	UserID    int64                  `json:"user_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches two AppErrors by code so errors.Is works against sentinels
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *AppError) IsNotFound() bool {
	switch e.Code {
	case ErrCodeNotFound, ErrCodeUserNotFound, ErrCodeSlotNotFound,
		ErrCodeQuestionNotFound, ErrCodeOpinionNotFound, ErrCodeCouponNotFound:
		return true
	}
	return false
}

func (e *AppError) IsValidation() bool {
	return e.Code == ErrCodeValidation || e.Code == ErrCodeBadRequest
}

func (e *AppError) IsUnauthorized() bool {
	switch e.Code {
	case ErrCodeUnauthorized, ErrCodeForbidden, ErrCodeNotWinner,
		ErrCodeUserBanned, ErrCodeOnboardingIncomplete:
		return true
	}
	return false
}

// IsConflict reports "already happened" results. These are final and are
// never retried.
func (e *AppError) IsConflict() bool {
	switch e.Code {
	case ErrCodeConflict, ErrCodeSlotArchived, ErrCodeSlotNotOpen, ErrCodeAlreadyVoted, ErrCodeAlreadyClaimed, ErrCodeOutOfStock:
		return true
	}
	return false
}

func (e *AppError) IsInternal() bool {
	switch e.Code {
	case ErrCodeInternal, ErrCodeDatabaseError, ErrCodeCacheError,
		ErrCodeExternalAPI, ErrCodeConnectionFailed:
		return true
	}
	return false
}

func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

func (e *AppError) WithUserID(userID int64) *AppError {
	e.UserID = userID
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Stack:     getStackTrace(),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func getStackTrace() []string {
	var stack []string
	for i := 2; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		if strings.Contains(fn.Name(), "internal/common/errors") {
			continue
		}
		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		if len(stack) >= 10 {
			break
		}
	}
	return stack
}

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewUserNotFoundError(userID int64) *AppError {
	return New(ErrCodeUserNotFound, fmt.Sprintf("User not found: %d", userID)).
		WithDetail("user_id", userID)
}

func NewSlotNotFoundError(slotID string) *AppError {
	return New(ErrCodeSlotNotFound, fmt.Sprintf("Slot not found: %s", slotID)).
		WithDetail("slot_id", slotID)
}

func NewQuestionNotFoundError(questionID string) *AppError {
	return New(ErrCodeQuestionNotFound, fmt.Sprintf("Question not found: %s", questionID)).
		WithDetail("question_id", questionID)
}

func NewOpinionNotFoundError(opinionID string) *AppError {
	return New(ErrCodeOpinionNotFound, fmt.Sprintf("Opinion not found: %s", opinionID)).
		WithDetail("opinion_id", opinionID)
}

func NewCouponNotFoundError(couponID string) *AppError {
	return New(ErrCodeCouponNotFound, fmt.Sprintf("Coupon not found: %s", couponID)).
		WithDetail("coupon_id", couponID)
}

func NewUnauthorizedError(reason string) *AppError {
	return New(ErrCodeUnauthorized, fmt.Sprintf("Unauthorized: %s", reason)).
		WithDetail("reason", reason)
}

func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, fmt.Sprintf("Forbidden: %s", reason)).
		WithDetail("reason", reason)
}

func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseError, fmt.Sprintf("Database operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewCacheError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeCacheError, fmt.Sprintf("Cache operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewExternalAPIError(service string, err error) *AppError {
	return Wrap(err, ErrCodeExternalAPI, fmt.Sprintf("External service call failed: %s", service)).
		WithDetail("service", service)
}

func NewConflictError(resource, reason string) *AppError {
	return New(ErrCodeConflict, fmt.Sprintf("Conflict with %s: %s", resource, reason)).
		WithDetail("resource", resource).
		WithDetail("reason", reason)
}

// AsAppError finds an AppError anywhere in err's chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
