package core

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/you/swap-estimator/internal/types"
)

// VenueID - закрытый набор площадок; диспатч идёт switch-ем в adapters.
type VenueID string

const (
	VenueVault     VenueID = "vault"
	VenueZapper    VenueID = "zapper"
	VenueCurve     VenueID = "curve"
	VenueFlipper   VenueID = "flipper"
	VenueUniswapV3 VenueID = "uniswapV3"
	VenueUniswapV2 VenueID = "uniswapV2"
	VenueSushiswap VenueID = "sushiswap"
	VenueWrapper   VenueID = "wrapper"
)

// AllVenues lists every known venue id.
var AllVenues = []VenueID{
	VenueVault, VenueZapper, VenueCurve, VenueFlipper,
	VenueUniswapV3, VenueUniswapV2, VenueSushiswap, VenueWrapper,
}

func (id VenueID) Valid() bool {
	for _, v := range AllVenues {
		if v == id {
			return true
		}
	}
	return false
}

type Contract struct {
	Name    string         `json:"name"`
	Address common.Address `json:"address"`
	ABI     abi.ABI        `json:"-"`
}

// HasMethod reports whether the contract interface exposes name.
func (c *Contract) HasMethod(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.ABI.Methods[name]
	return ok
}

// Predicate decides whether a venue can serve (mode, from, to) at all. No I/O.
type Predicate func(mode types.Mode, from, to types.Token) bool

// Venue is one configured liquidity source for a product.
type Venue struct {
	ID       VenueID
	Contract *Contract // nil → UNKNOWN
	Token    *types.Token
	Eligible Predicate
}

// Estimator quotes one venue. Implementations never return chain errors, only failed Estimates.
type Estimator interface {
	Estimate(ctx context.Context, v Venue, req types.SwapRequest) Estimate
}
