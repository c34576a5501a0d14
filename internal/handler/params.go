package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/GoPolymarket/tradevault/internal/chain"
	"github.com/GoPolymarket/tradevault/internal/middleware"
	"github.com/GoPolymarket/tradevault/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
)

// parseAsset accepts a hex address, or "" / "native" for the native coin.
func parseAsset(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "native") {
		return chain.NativeAsset, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, apperrors.NewInvalidRequest(fmt.Sprintf("invalid asset address %q", raw))
	}
	return common.HexToAddress(raw), nil
}

func parseAddress(field, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, apperrors.NewInvalidRequest(fmt.Sprintf("invalid %s address %q", field, raw))
	}
	return common.HexToAddress(raw), nil
}

// parseAmount reads a non-negative base-10 integer. Empty means zero.
func parseAmount(field, raw string) (*uint256.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, apperrors.NewInvalidRequest(fmt.Sprintf("invalid %s %q", field, raw))
	}
	return v, nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time format")
}

func decimalOrEmpty(x *uint256.Int) string {
	if x == nil {
		return ""
	}
	return x.Dec()
}

func decimalOrZero(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return x.Dec()
}

// callerOf returns the authenticated caller. Routes that reach a handler
// without one are a wiring bug, reported as an auth failure.
func callerOf(c *gin.Context) (common.Address, bool) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		_ = c.Error(apperrors.NewAuthFailed("unauthorized: missing caller context"))
	}
	return caller, ok
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(apperrors.NewInvalidRequest(err.Error()))
		return false
	}
	return true
}
