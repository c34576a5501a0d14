package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/GoPolymarket/tradevault/internal/chain"
	"github.com/GoPolymarket/tradevault/internal/vault"
)

type ErrorType string

const (
	ErrUnauthorized                ErrorType = "UNAUTHORIZED"
	ErrReentrantCall               ErrorType = "REENTRANT_CALL"
	ErrInvalidController           ErrorType = "INVALID_CONTROLLER"
	ErrInvalidPercent              ErrorType = "INVALID_PERCENT"
	ErrInvalidTolerance            ErrorType = "INVALID_TOLERANCE"
	ErrAssetNotAllowed             ErrorType = "ASSET_NOT_ALLOWED"
	ErrInvalidTradeAmount          ErrorType = "INVALID_TRADE_AMOUNT"
	ErrDeadlineExpired             ErrorType = "DEADLINE_EXPIRED"
	ErrVenueCallFailed             ErrorType = "VENUE_CALL_FAILED"
	ErrProfitBelowThreshold        ErrorType = "PROFIT_BELOW_THRESHOLD"
	ErrInsufficientRecordedBalance ErrorType = "INSUFFICIENT_RECORDED_BALANCE"
	ErrTransferFailed              ErrorType = "TRANSFER_FAILED"

	ErrNotRunning      ErrorType = "NOT_RUNNING"
	ErrNoTradeConfig   ErrorType = "NO_TRADE_CONFIG"
	ErrFeeCeiling      ErrorType = "FEE_ABOVE_CEILING"
	ErrAuthFailed      ErrorType = "AUTH_FAILED"
	ErrRateLimited     ErrorType = "RATE_LIMITED"
	ErrSystemPanic     ErrorType = "SYSTEM_PANIC"
	ErrInvalidRequest  ErrorType = "INVALID_REQUEST"
	ErrInternal        ErrorType = "INTERNAL_ERROR"
	ErrNotFound        ErrorType = "NOT_FOUND"
	ErrUpstream        ErrorType = "UPSTREAM_ERROR"
	ErrIdempotencyBusy ErrorType = "IDEMPOTENCY_IN_PROGRESS"
	ErrReadOnly        ErrorType = "READ_ONLY"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func NewAuthFailed(msg string) *AppError {
	return New(ErrAuthFailed, msg, nil)
}

func NewNotFound(msg string) *AppError {
	return New(ErrNotFound, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if mapped := FromVault(err); mapped != nil {
		return mapped
	}
	return New(ErrInternal, err.Error(), err)
}

var vaultErrors = []struct {
	target error
	kind   ErrorType
}{
	{vault.ErrUnauthorized, ErrUnauthorized},
	{vault.ErrReentrantCall, ErrReentrantCall},
	{vault.ErrInvalidController, ErrInvalidController},
	{vault.ErrInvalidDestination, ErrInvalidController},
	{vault.ErrInvalidPercent, ErrInvalidPercent},
	{vault.ErrInvalidTolerance, ErrInvalidTolerance},
	{vault.ErrAssetNotAllowed, ErrAssetNotAllowed},
	{vault.ErrInvalidTradeAmount, ErrInvalidTradeAmount},
	{vault.ErrInvalidAmount, ErrInvalidTradeAmount},
	{vault.ErrDeadlineExpired, ErrDeadlineExpired},
	{vault.ErrProfitBelowThreshold, ErrProfitBelowThreshold},
	{vault.ErrInsufficientRecordedBalance, ErrInsufficientRecordedBalance},
	{chain.ErrFeeAboveCeiling, ErrFeeCeiling},
	{chain.ErrGasAboveCeiling, ErrFeeCeiling},
	{vault.ErrVenueCallFailed, ErrVenueCallFailed},
	{vault.ErrTransferFailed, ErrTransferFailed},
	{vault.ErrNotRunning, ErrNotRunning},
	{vault.ErrNoTradeConfig, ErrNoTradeConfig},
	{vault.ErrUnknownBound, ErrNotFound},
	{vault.ErrInvalidBoundValue, ErrInvalidRequest},
	{vault.ErrPersist, ErrInternal},
}

// FromVault maps a vault or chain sentinel to its AppError, or returns nil.
func FromVault(err error) *AppError {
	if err == nil {
		return nil
	}
	for _, m := range vaultErrors {
		if errors.Is(err, m.target) {
			return New(m.kind, err.Error(), err)
		}
	}
	return nil
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrUnauthorized:
		return http.StatusForbidden
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrReentrantCall, ErrIdempotencyBusy:
		return http.StatusConflict
	case ErrInvalidController, ErrInvalidPercent, ErrInvalidTolerance, ErrInvalidTradeAmount, ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrAssetNotAllowed, ErrDeadlineExpired, ErrProfitBelowThreshold, ErrInsufficientRecordedBalance,
		ErrNotRunning, ErrNoTradeConfig, ErrFeeCeiling:
		return http.StatusUnprocessableEntity
	case ErrVenueCallFailed, ErrTransferFailed, ErrUpstream:
		return http.StatusBadGateway
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrSystemPanic, ErrReadOnly:
		return http.StatusServiceUnavailable
	case ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrUnauthorized:
		return "Only the controller may call this operation."
	case ErrAuthFailed:
		return "Check the caller address, timestamp and signature headers."
	case ErrReentrantCall:
		return "Retry once the in-flight operation completes."
	case ErrInvalidPercent, ErrInvalidTolerance, ErrInvalidTradeAmount:
		return "Check the value against the configured risk bounds."
	case ErrAssetNotAllowed:
		return "Add both assets to the allow-list first."
	case ErrDeadlineExpired:
		return "Set a new trade config with a later deadline."
	case ErrInsufficientRecordedBalance:
		return "Update or sync the recorded balance."
	case ErrNotRunning:
		return "Start the vault first."
	case ErrNoTradeConfig:
		return "Set a trade config first."
	case ErrFeeCeiling:
		return "Raise the fee or gas ceiling, or wait for cheaper blocks."
	case ErrRateLimited, ErrIdempotencyBusy:
		return "Retry the request later."
	case ErrSystemPanic:
		return "Wait for system recovery."
	case ErrReadOnly:
		return "Control requests are disabled; only stop and emergency withdraw are accepted."
	default:
		return ""
	}
}
