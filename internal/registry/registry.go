// Package registry is the read-only mainnet token and contract book.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/you/swap-estimator/internal/dex/core"
	"github.com/you/swap-estimator/internal/types"
)

var (
	ErrUnknownToken    = errors.New("unknown token")
	ErrUnknownContract = errors.New("unknown contract")
)

// Canonical contract names.
const (
	OETHVault             = "OETHVaultProxy"
	OUSDVault             = "VaultProxy"
	OETHZapper            = "OETHZapper"
	CurveAddressProvider  = "CurveAddressProvider"
	CurveRegistryExchange = "CurveRegistryExchange"
	CurveFactory          = "CurveFactory"
	CurveOUSDMetaPool     = "CurveOUSDMetaPool"
	CurveOETHPool         = "CurveOETHPool"
	Flipper               = "Flipper"
	UniswapV2Router       = "UniswapV2Router"
	UniswapV3Router       = "UniswapV3Router"
	UniswapV3Factory      = "UniswapV3Factory"
	SushiSwapRouter       = "SushiSwapRouter"
	ChainlinkETHUSD       = "ChainlinkETH_USD"
	WOETH                 = "woETH"
	WOUSD                 = "wOUSD"
)

// Curve address provider ids.
const (
	CurveRegistryExchangeID = 2
	CurveFactoryID          = 3
)

var (
	OETHVaultABI             = mustABI(oethVaultABI)
	OUSDVaultABI             = mustABI(ousdVaultABI)
	ZapperABI                = mustABI(zapperABI)
	CurveAddressProviderABI  = mustABI(curveAddressProviderABI)
	CurveRegistryExchangeABI = mustABI(curveRegistryExchangeABI)
	CurveFactoryABI          = mustABI(curveFactoryABI)
	CurvePoolABI             = mustABI(curvePoolABI)
	ERC4626ABI               = mustABI(erc4626ABI)
	ChainlinkFeedABI         = mustABI(chainlinkFeedABI)
	EmptyABI                 = mustABI(emptyABI)
)

func mustABI(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("registry: bad abi: %v", err))
	}
	return a
}

func addr(hex string) *common.Address {
	a := common.HexToAddress(hex)
	return &a
}

var tokens = map[string]types.Token{
	"ETH":     {Symbol: "ETH", Name: "Ether", Decimals: 18},
	"WETH":    {Symbol: "WETH", Name: "Wrapped Ether", Address: addr("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Decimals: 18},
	"stETH":   {Symbol: "stETH", Name: "Lido Staked Ether", Address: addr("0xae7ab96520DE3A18E5e111B5EaAb095312D7fE84"), Decimals: 18},
	"rETH":    {Symbol: "rETH", Name: "Rocket Pool ETH", Address: addr("0xae78736Cd615f374D3085123A210448E74Fc6393"), Decimals: 18},
	"frxETH":  {Symbol: "frxETH", Name: "Frax Ether", Address: addr("0x5E8422345238F34275888049021821E8E08CAa1f"), Decimals: 18},
	"sfrxETH": {Symbol: "sfrxETH", Name: "Staked Frax Ether", Address: addr("0xac3E018457B222d93114458476f3E3416Abbe38F"), Decimals: 18},
	"OETH":    {Symbol: "OETH", Name: "Origin Ether", Address: addr("0x856c4Efb76C1D1AE02e20CEB03A2A6a08b0b8dC3"), Decimals: 18},
	"woETH":   {Symbol: "woETH", Name: "Wrapped OETH", Address: addr("0xDcEe70654261AF21C44c093C300eD3Bb97b78192"), Decimals: 18},
	"DAI":     {Symbol: "DAI", Name: "Dai Stablecoin", Address: addr("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Decimals: 18},
	"USDC":    {Symbol: "USDC", Name: "USD Coin", Address: addr("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Decimals: 6},
	"USDT":    {Symbol: "USDT", Name: "Tether USD", Address: addr("0xdAC17F958D2ee523a2206206994597C13D831ec7"), Decimals: 6},
	"OUSD":    {Symbol: "OUSD", Name: "Origin Dollar", Address: addr("0x2A8e1E676Ec238d8A992307B495b45B3fEAa5e86"), Decimals: 18},
	"wOUSD":   {Symbol: "wOUSD", Name: "Wrapped OUSD", Address: addr("0xD2af830E8CBdFed6CC11Bab697bB25496ed6FA62"), Decimals: 18},

	// корзины для redeem, адреса нет
	"MIX":      {Symbol: "MIX", Name: "Mixed Redeem", Decimals: 18, Mix: []string{"USDT", "USDC", "DAI"}},
	"OETH_MIX": {Symbol: "OETH_MIX", Name: "Mixed Redeem", Decimals: 18, Mix: []string{"frxETH", "rETH", "stETH", "WETH"}},
}

var contracts = map[string]*core.Contract{
	OETHVault:             {Name: OETHVault, Address: common.HexToAddress("0x39254033945AA2E4809Cc2977E7087BEE48bd7Ab"), ABI: OETHVaultABI},
	OUSDVault:             {Name: OUSDVault, Address: common.HexToAddress("0xE75D77B1865Ae93c7eaa3040B038D7aA7BC02F70"), ABI: OUSDVaultABI},
	OETHZapper:            {Name: OETHZapper, Address: common.HexToAddress("0x9858e47BCbBe6fBAC040519B02d7cd4B2C470C66"), ABI: ZapperABI},
	CurveAddressProvider:  {Name: CurveAddressProvider, Address: common.HexToAddress("0x0000000022D53366457F9d5E68Ec105046FC4383"), ABI: CurveAddressProviderABI},
	CurveOUSDMetaPool:     {Name: CurveOUSDMetaPool, Address: common.HexToAddress("0x87650D7bbfC3A9F10587d7778206671719d9910D"), ABI: CurvePoolABI},
	CurveOETHPool:         {Name: CurveOETHPool, Address: common.HexToAddress("0x94B17476A93b3262d87B9a326965D1E91f9c13E7"), ABI: CurvePoolABI},
	Flipper:               {Name: Flipper, Address: common.HexToAddress("0xcecaD69d7D4Ed6D52eFcFA028aF8732F27e08F70"), ABI: EmptyABI},
	UniswapV2Router:       {Name: UniswapV2Router, Address: common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"), ABI: EmptyABI},
	UniswapV3Router:       {Name: UniswapV3Router, Address: common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564"), ABI: EmptyABI},
	UniswapV3Factory:      {Name: UniswapV3Factory, Address: common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984"), ABI: EmptyABI},
	SushiSwapRouter:       {Name: SushiSwapRouter, Address: common.HexToAddress("0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F"), ABI: EmptyABI},
	ChainlinkETHUSD:       {Name: ChainlinkETHUSD, Address: common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"), ABI: ChainlinkFeedABI},
	WOETH:                 {Name: WOETH, Address: common.HexToAddress("0xDcEe70654261AF21C44c093C300eD3Bb97b78192"), ABI: ERC4626ABI},
	WOUSD:                 {Name: WOUSD, Address: common.HexToAddress("0xD2af830E8CBdFed6CC11Bab697bB25496ed6FA62"), ABI: ERC4626ABI},
}

var byAddress = func() map[common.Address]string {
	m := make(map[common.Address]string, len(tokens))
	for sym, t := range tokens {
		if t.Address != nil {
			m[*t.Address] = sym
		}
	}
	return m
}()

// GetToken returns a copy of the token, so callers may attach balances freely.
func GetToken(symbol string) (types.Token, bool) {
	t, ok := tokens[symbol]
	if !ok {
		return types.Token{}, false
	}
	return clone(t), true
}

// MustToken is GetToken for symbols known at compile time.
func MustToken(symbol string) types.Token {
	t, ok := GetToken(symbol)
	if !ok {
		panic(fmt.Sprintf("registry: %s: %v", symbol, ErrUnknownToken))
	}
	return t
}

// LookupToken is GetToken with a case-insensitive fallback and a wrapped error.
func LookupToken(symbol string) (types.Token, error) {
	if t, ok := GetToken(symbol); ok {
		return t, nil
	}
	for sym, t := range tokens {
		if strings.EqualFold(sym, symbol) {
			return clone(t), nil
		}
	}
	return types.Token{}, fmt.Errorf("%w: %q", ErrUnknownToken, symbol)
}

func TokenByAddress(a common.Address) (types.Token, bool) {
	sym, ok := byAddress[a]
	if !ok {
		return types.Token{}, false
	}
	return GetToken(sym)
}

// GetContract returns the shared immutable contract record.
func GetContract(name string) (*core.Contract, bool) {
	c, ok := contracts[name]
	return c, ok
}

func MustContract(name string) *core.Contract {
	c, ok := GetContract(name)
	if !ok {
		panic(fmt.Sprintf("registry: %s: %v", name, ErrUnknownContract))
	}
	return c
}

func clone(t types.Token) types.Token {
	if t.Address != nil {
		a := *t.Address
		t.Address = &a
	}
	if t.Mix != nil {
		t.Mix = append([]string(nil), t.Mix...)
	}
	return t
}
