package chain

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/config"
	"github.com/you/swap-estimator/internal/multicall"
)

// mockBackend is a scripted ethclient stand-in.
type mockBackend struct {
	callErrs  []error // consumed one per CallContract attempt
	callResp  []byte
	callCount atomic.Int32

	gasPrice *big.Int
	baseFee  *big.Int
	tip      *big.Int
	tipErr   error
}

func (m *mockBackend) CallContract(_ context.Context, _ ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	n := int(m.callCount.Add(1)) - 1
	if n < len(m.callErrs) && m.callErrs[n] != nil {
		return nil, m.callErrs[n]
	}
	return m.callResp, nil
}
func (m *mockBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 21000, nil
}
func (m *mockBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return big.NewInt(7), nil
}
func (m *mockBackend) HeaderByNumber(context.Context, *big.Int) (*gethtypes.Header, error) {
	return &gethtypes.Header{BaseFee: m.baseFee}, nil
}
func (m *mockBackend) SuggestGasPrice(context.Context) (*big.Int, error) { return m.gasPrice, nil }
func (m *mockBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return m.tip, m.tipErr
}
func (m *mockBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 3, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Chain.MaxRetries = 3
	cfg.Chain.RetryMaxElapsedMs = 5000
	cfg.Chain.FallbackTipGwei = 1
	return cfg
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	mb := &mockBackend{callErrs: []error{errors.New("connection reset by peer")}, callResp: []byte{0x01}}
	c, err := NewClient(mb, testConfig(), zap.NewNop())
	require.NoError(t, err)

	to := common.HexToAddress("0x01")
	out, err := c.CallContract(context.Background(), ethereum.CallMsg{To: &to})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, out)
	assert.Equal(t, int32(2), mb.callCount.Load())
}

func TestClient_DoesNotRetryReverts(t *testing.T) {
	mb := &mockBackend{callErrs: []error{errors.New("execution reverted: Mint amount lower than minimum")}}
	c, err := NewClient(mb, testConfig(), zap.NewNop())
	require.NoError(t, err)

	to := common.HexToAddress("0x01")
	_, err = c.CallContract(context.Background(), ethereum.CallMsg{To: &to})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mint amount lower than minimum")
	assert.Equal(t, int32(1), mb.callCount.Load())
}

func TestClient_FeeData(t *testing.T) {
	mb := &mockBackend{gasPrice: big.NewInt(30e9), baseFee: big.NewInt(25e9), tip: big.NewInt(2e9)}
	c, err := NewClient(mb, testConfig(), zap.NewNop())
	require.NoError(t, err)

	fd, err := c.FeeData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(30e9), fd.GasPrice)
	assert.Equal(t, big.NewInt(2e9), fd.MaxPriorityFeePerGas)
	assert.Equal(t, 0, big.NewInt(52e9).Cmp(fd.MaxFeePerGas))
}

func TestClient_FeeDataTipFallback(t *testing.T) {
	mb := &mockBackend{gasPrice: big.NewInt(30e9), baseFee: big.NewInt(10e9), tipErr: errors.New("method not found")}
	c, err := NewClient(mb, testConfig(), zap.NewNop())
	require.NoError(t, err)

	fd, err := c.FeeData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, big.NewInt(1e9).Cmp(fd.MaxPriorityFeePerGas))
	assert.Equal(t, 0, big.NewInt(21e9).Cmp(fd.MaxFeePerGas))
}

func TestClient_FeeDataLegacyChain(t *testing.T) {
	mb := &mockBackend{gasPrice: big.NewInt(5e9)}
	c, err := NewClient(mb, testConfig(), zap.NewNop())
	require.NoError(t, err)

	fd, err := c.FeeData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5e9), fd.GasPrice)
	assert.Nil(t, fd.MaxFeePerGas)
}

func TestIsPermanent(t *testing.T) {
	assert.False(t, IsPermanent(nil))
	assert.False(t, IsPermanent(errors.New("429 Too Many Requests")))
	assert.True(t, IsPermanent(errors.New("execution reverted")))
	assert.True(t, IsPermanent(context.Canceled))
	assert.True(t, IsPermanent(errors.New("insufficient funds for gas * price + value")))
}

func TestToWeiFromWei(t *testing.T) {
	wei := ToWei(decimal.RequireFromString("1000.123456789"), 6)
	assert.Equal(t, "1000123456", wei.String())

	back := FromWei(big.NewInt(1_500_000), 6)
	assert.True(t, back.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, FromWei(nil, 18).IsZero())
	assert.InDelta(t, 1.5, ToFloat(big.NewInt(1_500_000), 6), 1e-12)
}

func TestApplySlippage_Exact(t *testing.T) {
	wei := ToWei(decimal.NewFromInt(1000), 18)
	minOut := ApplySlippage(wei, decimal.RequireFromString("0.01"))
	assert.Equal(t, ToWei(decimal.NewFromInt(990), 18).String(), minOut.String())

	// round-trip: min + wei*tol == wei
	odd := big.NewInt(1001)
	tol := decimal.RequireFromString("0.003")
	got := ApplySlippage(odd, tol)
	cut := decimal.NewFromBigInt(odd, 0).Mul(tol).Truncate(0).BigInt()
	assert.Equal(t, 0, odd.Cmp(new(big.Int).Add(got, cut)))
	assert.Equal(t, int64(998), got.Int64())
}

func TestGweiToWei(t *testing.T) {
	assert.Equal(t, "1500000000", GweiToWei(decimal.RequireFromString("1.5")).String())
	assert.Equal(t, "2000000000", GweiToWeiFloat(2).String())
}

// batchReader answers every multicall with the scripted results.
type batchReader struct {
	results []multicall.Result
}

func (b *batchReader) CallContract(context.Context, ethereum.CallMsg) ([]byte, error) {
	return nil, errors.New("unbatched call")
}
func (b *batchReader) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) { return 0, nil }
func (b *batchReader) BalanceAt(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (b *batchReader) FeeData(context.Context) (FeeData, error) { return FeeData{}, nil }
func (b *batchReader) Batch(context.Context, []multicall.Call) ([]multicall.Result, error) {
	return b.results, nil
}

func revertData(t *testing.T, reason string) []byte {
	t.Helper()
	str, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	enc, err := abi.Arguments{{Type: str}}.Pack(reason)
	require.NoError(t, err)
	return append([]byte{0x08, 0xc3, 0x79, 0xa0}, enc...)
}

func TestReadERC20_BatchedRevertKeepsReason(t *testing.T) {
	dec, err := ERC20ABI.Methods["decimals"].Outputs.Pack(uint8(18))
	require.NoError(t, err)
	token := common.HexToAddress("0x856c4Efb76C1D1AE02e20CEB03A2A6a08b0b8dC3")

	r := &batchReader{results: []multicall.Result{
		{Success: true, Data: dec},
		{Success: false, Data: revertData(t, "Asset is not supported")},
	}}
	_, err = ReadERC20(context.Background(), r, token, common.Address{}, common.Address{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution reverted: Asset is not supported")
	assert.Contains(t, err.Error(), "balanceOf")

	r.results[1] = multicall.Result{Success: false}
	_, err = ReadERC20(context.Background(), r, token, common.Address{}, common.Address{})
	assert.ErrorContains(t, err, "balanceOf on "+token.Hex()+": execution reverted")
}
