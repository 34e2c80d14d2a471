// Package product defines the venue sets and eligibility predicates for OETH and OUSD.
package product

import (
	"fmt"
	"slices"

	"github.com/you/swap-estimator/internal/dex/core"
	"github.com/you/swap-estimator/internal/registry"
	"github.com/you/swap-estimator/internal/types"
)

type Product struct {
	Name string
	// Token is the product's own token (OETH, OUSD).
	Token types.Token
	// Wrapped is the ERC-4626 share.
	Wrapped types.Token
	Mix     types.Token
	Venues  core.Set
	// Tokens users may pick in a swap.
	Tokens []string
}

func ByName(name string) (Product, error) {
	switch name {
	case "oeth":
		return OETH(), nil
	case "ousd":
		return OUSD(), nil
	}
	return Product{}, fmt.Errorf("unknown product %q", name)
}

// swapping is the rule every AMM-ish venue shares: any known swap mode except a
// redeem into the basket, which only the vault can produce.
func swapping(mix string) core.Predicate {
	return func(mode types.Mode, _, to types.Token) bool {
		switch mode {
		case types.ModeMint:
			return true
		case types.ModeRedeem:
			return to.Symbol != mix
		}
		return false
	}
}

func vaultPredicate(mintable []string, mix string) core.Predicate {
	return func(mode types.Mode, from, to types.Token) bool {
		switch mode {
		case types.ModeMint:
			return slices.Contains(mintable, from.Symbol)
		case types.ModeRedeem:
			return to.Symbol == mix
		}
		return false
	}
}

func wrapPredicate(base, wrapped string) core.Predicate {
	return func(mode types.Mode, from, to types.Token) bool {
		switch mode {
		case types.ModeWrap:
			return from.Symbol == base && to.Symbol == wrapped
		case types.ModeUnwrap:
			return from.Symbol == wrapped && to.Symbol == base
		}
		return false
	}
}

// OETH vault takes LSTs directly; ETH and sfrxETH go through the zapper.
func OETH() Product {
	oeth := registry.MustToken("OETH")
	swap := swapping("OETH_MIX")
	return Product{
		Name:    "oeth",
		Token:   oeth,
		Wrapped: registry.MustToken("woETH"),
		Mix:     registry.MustToken("OETH_MIX"),
		Tokens:  []string{"OETH", "ETH", "WETH", "stETH", "rETH", "frxETH", "sfrxETH"},
		Venues: core.NewSet(
			venue(core.VenueVault, registry.OETHVault, &oeth, vaultPredicate([]string{"WETH", "stETH", "rETH", "frxETH"}, "OETH_MIX")),
			venue(core.VenueZapper, registry.OETHZapper, &oeth, func(mode types.Mode, from, _ types.Token) bool {
				return mode == types.ModeMint && (from.Symbol == "ETH" || from.Symbol == "sfrxETH")
			}),
			venue(core.VenueCurve, registry.CurveAddressProvider, nil, swap),
			venue(core.VenueFlipper, registry.Flipper, nil, swap),
			venue(core.VenueUniswapV3, registry.UniswapV3Router, nil, swap),
			venue(core.VenueUniswapV2, registry.UniswapV2Router, nil, swap),
			venue(core.VenueSushiswap, registry.SushiSwapRouter, nil, swap),
			venue(core.VenueWrapper, registry.WOETH, &oeth, wrapPredicate("OETH", "woETH")),
		),
	}
}

func OUSD() Product {
	ousd := registry.MustToken("OUSD")
	swap := swapping("MIX")
	return Product{
		Name:    "ousd",
		Token:   ousd,
		Wrapped: registry.MustToken("wOUSD"),
		Mix:     registry.MustToken("MIX"),
		Tokens:  []string{"OUSD", "DAI", "USDC", "USDT"},
		Venues: core.NewSet(
			venue(core.VenueVault, registry.OUSDVault, &ousd, vaultPredicate([]string{"DAI", "USDT", "USDC"}, "MIX")),
			venue(core.VenueCurve, registry.CurveAddressProvider, nil, swap),
			venue(core.VenueFlipper, registry.Flipper, nil, swap),
			venue(core.VenueUniswapV3, registry.UniswapV3Router, nil, swap),
			venue(core.VenueUniswapV2, registry.UniswapV2Router, nil, swap),
			venue(core.VenueSushiswap, registry.SushiSwapRouter, nil, swap),
			venue(core.VenueWrapper, registry.WOUSD, &ousd, wrapPredicate("OUSD", "wOUSD")),
		),
	}
}

func venue(id core.VenueID, contract string, token *types.Token, p core.Predicate) core.Venue {
	c, _ := registry.GetContract(contract)
	return core.Venue{ID: id, Contract: c, Token: token, Eligible: p}
}

// Resolve looks up a symbol in the product's catalog, including the basket and wrapped share.
func (p Product) Resolve(symbol string) (types.Token, error) {
	switch symbol {
	case p.Mix.Symbol:
		return p.Mix, nil
	case p.Wrapped.Symbol:
		return p.Wrapped, nil
	}
	if !slices.Contains(p.Tokens, symbol) {
		return types.Token{}, fmt.Errorf("%w: %q not offered by %s", registry.ErrUnknownToken, symbol, p.Name)
	}
	return registry.LookupToken(symbol)
}
