package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeMint, ParseMode(" mint "))
	assert.Equal(t, ModeUnwrap, ParseMode("unwrap"))
	assert.True(t, ParseMode("redeem").Valid())
	assert.False(t, ParseMode("swap").Valid())
}

func TestErrorKind_Severity(t *testing.T) {
	assert.Less(t, ErrNotEnoughBalance.Severity(), ErrUnknown.Severity())
	assert.Less(t, ErrUnknown.Severity(), ErrUnsupported.Severity())
	assert.Equal(t, len(severity), ErrorKind("SOMETHING_ELSE").Severity())
}

func TestToken_Kinds(t *testing.T) {
	addr := common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	dai := Token{Symbol: "DAI", Address: &addr, Decimals: 18}
	eth := Token{Symbol: "ETH", Decimals: 18}
	mix := Token{Symbol: "MIX", Mix: []string{"USDT", "USDC", "DAI"}}

	assert.False(t, dai.IsNative())
	assert.True(t, eth.IsNative())
	assert.False(t, mix.IsNative())
	assert.True(t, mix.IsMix())
	assert.Equal(t, addr, dai.Addr())
	assert.Equal(t, common.Address{}, eth.Addr())
}

func TestToken_WithBalanceCopies(t *testing.T) {
	b := big.NewInt(10)
	tok := Token{Symbol: "DAI"}.WithBalance(b)
	b.SetInt64(99)
	assert.Equal(t, int64(10), tok.Balance.Int64())
}
