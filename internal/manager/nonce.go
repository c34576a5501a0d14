package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/GoPolymarket/tradevault/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
)

// NonceSource is the subset of ethclient.Client the manager needs.
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// NonceManager hands out transaction nonces optimistically, fetching from the
// chain only on first use or after a reset.
type NonceManager struct {
	client NonceSource
	mu     sync.Mutex
	nonces map[common.Address]uint64
}

func NewNonceManager(client NonceSource) *NonceManager {
	return &NonceManager{
		client: client,
		nonces: make(map[common.Address]uint64),
	}
}

// Next returns the nonce to use for the next transaction from addr.
func (m *NonceManager) Next(ctx context.Context, addr common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if nonce, ok := m.nonces[addr]; ok {
		return nonce, nil
	}
	// Pending, so transactions still in the mempool are accounted for.
	fetched, err := m.client.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending nonce: %w", err)
	}
	m.nonces[addr] = fetched
	return fetched, nil
}

// Increment advances the local nonce. Call it after a successful broadcast.
func (m *NonceManager) Increment(addr common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nonces[addr]; ok {
		m.nonces[addr]++
	}
}

// Reset forces a re-sync from the chain, e.g. after "nonce too low".
func (m *NonceManager) Reset(ctx context.Context, addr common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fetched, err := m.client.PendingNonceAt(ctx, addr)
	if err != nil {
		return err
	}
	m.nonces[addr] = fetched
	logger.Info("Reset TX nonce", "address", addr.Hex(), "nonce", fetched)
	return nil
}
