package registry

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens(t *testing.T) {
	usdc, ok := GetToken("USDC")
	require.True(t, ok)
	assert.Equal(t, uint8(6), usdc.Decimals)
	assert.False(t, usdc.IsNative())

	eth := MustToken("ETH")
	assert.True(t, eth.IsNative())

	mix := MustToken("OETH_MIX")
	assert.True(t, mix.IsMix())
	assert.False(t, mix.IsNative())
	assert.Len(t, mix.Mix, 4)

	_, ok = GetToken("PEPE")
	assert.False(t, ok)
	_, err := LookupToken("pepe")
	assert.ErrorIs(t, err, ErrUnknownToken)

	dai, err := LookupToken("dai")
	require.NoError(t, err)
	assert.Equal(t, "DAI", dai.Symbol)
}

func TestGetToken_ReturnsCopy(t *testing.T) {
	a := MustToken("DAI")
	*a.Address = common.Address{}
	b := MustToken("DAI")
	assert.NotEqual(t, common.Address{}, *b.Address)
}

func TestTokenByAddress(t *testing.T) {
	tok, ok := TokenByAddress(common.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec7"))
	require.True(t, ok)
	assert.Equal(t, "USDT", tok.Symbol)
}

func TestContracts(t *testing.T) {
	v := MustContract(OETHVault)
	assert.True(t, v.HasMethod("priceUnitMint"))
	assert.False(t, v.HasMethod("priceUSDMint"))
	assert.True(t, MustContract(OUSDVault).HasMethod("priceUSDMint"))

	for _, m := range []string{"mint", "redeem", "rebaseThreshold", "autoAllocateThreshold", "redeemFeeBps", "calculateRedeemOutputs", "getAllAssets"} {
		assert.True(t, v.HasMethod(m), m)
	}
	_, ok := GetContract("Balancer")
	assert.False(t, ok)
	assert.Panics(t, func() { MustContract("Balancer") })
}
