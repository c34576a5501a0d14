package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContractCaller struct {
	calls  int
	output []byte
	errs   []error
}

func (f *fakeContractCaller) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.output, nil
}

func magicOutput() []byte {
	out := make([]byte, 32)
	copy(out, eip1271MagicValue[:])
	return out
}

func TestEIP1271Verifier_AcceptsMagicValueAndCaches(t *testing.T) {
	caller := &fakeContractCaller{output: magicOutput()}
	v := NewEIP1271Verifier(caller, 0, 0, 0)
	contract := common.HexToAddress("0x00000000000000000000000000000000000005af")
	hash := crypto.Keccak256Hash([]byte("msg"))

	ok, err := v.Verify(context.Background(), contract, hash, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify(context.Background(), contract, hash, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, caller.calls)
}

func TestEIP1271Verifier_RejectsOtherOutput(t *testing.T) {
	caller := &fakeContractCaller{output: make([]byte, 32)}
	v := NewEIP1271Verifier(caller, 0, 0, 0)

	ok, err := v.Verify(context.Background(), common.HexToAddress("0x01"), common.Hash{}, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEIP1271Verifier_RetriesRPCErrors(t *testing.T) {
	caller := &fakeContractCaller{output: magicOutput(), errs: []error{errors.New("timeout")}}
	v := NewEIP1271Verifier(caller, 0, 0, 1)

	ok, err := v.Verify(context.Background(), common.HexToAddress("0x01"), common.Hash{}, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, caller.calls)

	failing := &fakeContractCaller{errs: []error{errors.New("down")}}
	_, err = NewEIP1271Verifier(failing, 0, 0, 0).Verify(context.Background(), common.HexToAddress("0x01"), common.Hash{}, nil)
	assert.Error(t, err)
}
