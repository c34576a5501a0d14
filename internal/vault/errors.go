package vault

import "errors"

var (
	ErrUnauthorized                = errors.New("unauthorized")
	ErrReentrantCall               = errors.New("reentrant call")
	ErrInvalidController           = errors.New("invalid controller")
	ErrInvalidPercent              = errors.New("invalid percent")
	ErrInvalidTolerance            = errors.New("invalid tolerance")
	ErrAssetNotAllowed             = errors.New("asset not allowed")
	ErrInvalidTradeAmount          = errors.New("invalid trade amount")
	ErrDeadlineExpired             = errors.New("deadline expired")
	ErrVenueCallFailed             = errors.New("venue call failed")
	ErrProfitBelowThreshold        = errors.New("profit below threshold")
	ErrInsufficientRecordedBalance = errors.New("insufficient recorded balance")
	ErrTransferFailed              = errors.New("transfer failed")

	ErrNotRunning         = errors.New("vault not running")
	ErrNoTradeConfig      = errors.New("no trade config set")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidDestination = errors.New("invalid sweep destination")
	ErrUnknownBound       = errors.New("unknown risk bound")
	ErrInvalidBoundValue  = errors.New("invalid risk bound value")
	ErrPersist            = errors.New("state persist failed")
)
