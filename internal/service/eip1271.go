package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var eip1271MagicValue = [4]byte{0x16, 0x26, 0xba, 0x7e}

var eip1271ABI = mustParseABI(`[{"constant":true,"inputs":[{"name":"_hash","type":"bytes32"},{"name":"_signature","type":"bytes"}],"name":"isValidSignature","outputs":[{"name":"magicValue","type":"bytes4"}],"payable":false,"stateMutability":"view","type":"function"}]`)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EIP1271Verifier lets a contract wallet (a Safe, for example) act as the
// vault controller by asking the contract whether it accepts a signature.
type EIP1271Verifier struct {
	caller   ethereum.ContractCaller
	mu       sync.Mutex
	cacheTTL time.Duration
	cache    map[string]cacheEntry
	timeout  time.Duration
	retries  int
}

type cacheEntry struct {
	valid   bool
	expires time.Time
}

func NewEIP1271Verifier(caller ethereum.ContractCaller, ttl time.Duration, timeout time.Duration, retries int) *EIP1271Verifier {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &EIP1271Verifier{
		caller:   caller,
		cacheTTL: ttl,
		cache:    make(map[string]cacheEntry),
		timeout:  timeout,
		retries:  retries,
	}
}

func (v *EIP1271Verifier) Verify(ctx context.Context, contract common.Address, hash common.Hash, signature []byte) (bool, error) {
	if v.caller == nil {
		return false, fmt.Errorf("contract caller not configured")
	}
	cacheKey := v.cacheKey(contract, hash, signature)
	if hit, ok := v.cacheGet(cacheKey); ok {
		return hit, nil
	}

	data, err := eip1271ABI.Pack("isValidSignature", [32]byte(hash), signature)
	if err != nil {
		return false, fmt.Errorf("failed to pack call data: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= v.retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, v.timeout)
		output, err := v.caller.CallContract(attemptCtx, ethereum.CallMsg{To: &contract, Data: data}, nil)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("rpc call failed: %w", err)
			if !shouldRetry(ctx, attempt, v.retries) {
				break
			}
			continue
		}
		valid := len(output) >= 4 && [4]byte(output[:4]) == eip1271MagicValue
		v.cacheSet(cacheKey, valid)
		return valid, nil
	}
	return false, lastErr
}

func (v *EIP1271Verifier) cacheKey(contract common.Address, hash common.Hash, signature []byte) string {
	return strings.ToLower(contract.Hex()) + ":" + hash.Hex() + ":" + hexutil.Encode(signature)
}

func (v *EIP1271Verifier) cacheGet(key string) (bool, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	entry, ok := v.cache[key]
	if !ok {
		return false, false
	}
	if time.Now().After(entry.expires) {
		delete(v.cache, key)
		return false, false
	}
	return entry.valid, true
}

func (v *EIP1271Verifier) cacheSet(key string, valid bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cache[key] = cacheEntry{
		valid:   valid,
		expires: time.Now().Add(v.cacheTTL),
	}
}

func shouldRetry(ctx context.Context, attempt, max int) bool {
	if attempt >= max {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	default:
	}
	time.Sleep(time.Duration(attempt+1) * 200 * time.Millisecond)
	return true
}
