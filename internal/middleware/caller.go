package middleware

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/GoPolymarket/tradevault/internal/pkg/apperrors"
	"github.com/GoPolymarket/tradevault/internal/signer"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
)

const (
	HeaderCallerAddress   = "X-Caller-Address"
	HeaderCallerTimestamp = "X-Caller-Timestamp"
	HeaderCallerSignature = "X-Caller-Signature"
	ContextCallerKey      = "caller"
)

// ContractSignatureVerifier checks an EIP-1271 signature against a contract
// wallet.
type ContractSignatureVerifier interface {
	Verify(ctx context.Context, contract common.Address, hash common.Hash, signature []byte) (bool, error)
}

// CallerAuthMiddleware authenticates the caller address from a personal
// signature over the request. When contracts is set, a signature that does
// not recover to the claimed address is checked against it as a contract
// wallet. It does not decide whether the caller is the controller; the vault
// does that.
func CallerAuthMiddleware(window time.Duration, now func() time.Time, contracts ContractSignatureVerifier) gin.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(c *gin.Context) {
		addrHeader := strings.TrimSpace(c.GetHeader(HeaderCallerAddress))
		tsHeader := strings.TrimSpace(c.GetHeader(HeaderCallerTimestamp))
		sigHeader := strings.TrimSpace(c.GetHeader(HeaderCallerSignature))
		if addrHeader == "" || tsHeader == "" || sigHeader == "" {
			abortWith(c, apperrors.NewAuthFailed("missing caller signature headers"))
			return
		}
		if !common.IsHexAddress(addrHeader) {
			abortWith(c, apperrors.NewAuthFailed("invalid caller address"))
			return
		}
		ts, err := strconv.ParseInt(tsHeader, 10, 64)
		if err != nil {
			abortWith(c, apperrors.NewAuthFailed("invalid caller timestamp"))
			return
		}
		if window > 0 {
			skew := now().Sub(time.Unix(ts, 0))
			if skew > window || skew < -window {
				abortWith(c, apperrors.NewAuthFailed("caller timestamp outside the accepted window"))
				return
			}
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		msg := signer.RequestMessage(c.Request.Method, c.Request.URL.Path, ts, body)
		claimed := common.HexToAddress(addrHeader)
		recovered, recoverErr := signer.RecoverMessageSigner(msg, sigHeader)
		if recoverErr != nil || recovered != claimed {
			if !verifyContractSignature(c.Request.Context(), contracts, claimed, msg, sigHeader) {
				if recoverErr != nil {
					abortWith(c, apperrors.NewAuthFailed("invalid caller signature"))
				} else {
					abortWith(c, apperrors.NewAuthFailed("signature does not match caller address"))
				}
				return
			}
		}

		c.Set(ContextCallerKey, claimed)
		c.Next()
	}
}

func verifyContractSignature(ctx context.Context, contracts ContractSignatureVerifier, claimed common.Address, msg []byte, sigHex string) bool {
	if contracts == nil {
		return false
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return false
	}
	ok, err := contracts.Verify(ctx, claimed, common.BytesToHash(accounts.TextHash(msg)), sig)
	return err == nil && ok
}

// CallerFrom returns the authenticated caller, if any.
func CallerFrom(c *gin.Context) (common.Address, bool) {
	val, exists := c.Get(ContextCallerKey)
	if !exists {
		return common.Address{}, false
	}
	addr, ok := val.(common.Address)
	return addr, ok
}

func abortWith(c *gin.Context, err *apperrors.AppError) {
	_ = c.Error(err)
	c.Abort()
}
