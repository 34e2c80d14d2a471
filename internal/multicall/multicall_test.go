package multicall

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const erc20ABI = `[{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"payable":false,"stateMutability":"view","type":"function"}]`

type resultRow struct {
	Success    bool
	ReturnData []byte
}

// fakeCaller returns a canned tryAggregate payload and records the request.
type fakeCaller struct {
	resp []byte
	err  error
	got  ethereum.CallMsg
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	f.got = msg
	return f.resp, f.err
}

func packResults(t *testing.T, rows []resultRow) []byte {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(multicallABI))
	require.NoError(t, err)
	data, err := parsed.Methods["tryAggregate"].Outputs.Pack(rows)
	require.NoError(t, err)
	return data
}

func TestAggregate_DecodesResults(t *testing.T) {
	erc20, err := abi.JSON(strings.NewReader(erc20ABI))
	require.NoError(t, err)
	decData, err := erc20.Methods["decimals"].Outputs.Pack(uint8(6))
	require.NoError(t, err)

	fc := &fakeCaller{resp: packResults(t, []resultRow{
		{Success: true, ReturnData: decData},
		{Success: false, ReturnData: []byte{}},
	})}
	mcAddr := common.HexToAddress("0x5BA1e12693Dc8F9c48aAD8770482f4739bEeD696")
	mc, err := New(fc, mcAddr)
	require.NoError(t, err)

	callData, err := erc20.Pack("decimals")
	require.NoError(t, err)
	token := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")

	res, err := mc.Aggregate(context.Background(), []Call{
		{Target: token, CallData: callData},
		{Target: token, CallData: callData},
	})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.True(t, res[0].Success)
	assert.False(t, res[1].Success)
	assert.Equal(t, mcAddr, *fc.got.To)

	outs, err := erc20.Methods["decimals"].Outputs.Unpack(res[0].Data)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), outs[0])
}

func TestAggregate_LengthMismatch(t *testing.T) {
	fc := &fakeCaller{resp: packResults(t, []resultRow{{Success: true, ReturnData: big.NewInt(1).Bytes()}})}
	mc, err := New(fc, common.HexToAddress("0x01"))
	require.NoError(t, err)

	_, err = mc.Aggregate(context.Background(), []Call{{}, {}})
	assert.Error(t, err)
}

func TestAggregate_TransportError(t *testing.T) {
	fc := &fakeCaller{err: errors.New("connection refused")}
	mc, err := New(fc, common.HexToAddress("0x01"))
	require.NoError(t, err)

	_, err = mc.Aggregate(context.Background(), []Call{{}})
	assert.ErrorContains(t, err, "connection refused")
}

func TestAggregate_Empty(t *testing.T) {
	mc, err := New(&fakeCaller{}, common.HexToAddress("0x01"))
	require.NoError(t, err)
	res, err := mc.Aggregate(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestNew_RequiresAddress(t *testing.T) {
	_, err := New(&fakeCaller{}, common.Address{})
	assert.Error(t, err)
}
