package manager

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNonceSource struct {
	nonce uint64
	calls int
	err   error
}

func (f *fakeNonceSource) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.calls++
	return f.nonce, f.err
}

func TestNonceManager_NextCachesAndIncrements(t *testing.T) {
	src := &fakeNonceSource{nonce: 5}
	m := NewNonceManager(src)
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	n, err := m.Next(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)

	m.Increment(addr)
	n, err = m.Next(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), n)
	assert.Equal(t, 1, src.calls)
}

func TestNonceManager_Reset(t *testing.T) {
	src := &fakeNonceSource{nonce: 3}
	m := NewNonceManager(src)
	addr := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	_, err := m.Next(context.Background(), addr)
	require.NoError(t, err)
	m.Increment(addr)
	m.Increment(addr)

	src.nonce = 4
	require.NoError(t, m.Reset(context.Background(), addr))
	n, err := m.Next(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)
}

func TestNonceManager_IncrementUnknownIsNoop(t *testing.T) {
	src := &fakeNonceSource{nonce: 9}
	m := NewNonceManager(src)
	addr := common.HexToAddress("0x00000000000000000000000000000000000000cc")

	m.Increment(addr)
	n, err := m.Next(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), n)
}

func TestNonceManager_FetchError(t *testing.T) {
	m := NewNonceManager(&fakeNonceSource{err: errors.New("rpc down")})
	_, err := m.Next(context.Background(), common.Address{})
	assert.Error(t, err)
}
