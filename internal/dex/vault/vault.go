// Package vault quotes direct mint and redeem against an OETH/OUSD vault.
package vault

import (
	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/chain"
	"github.com/you/swap-estimator/internal/config"
	"github.com/you/swap-estimator/internal/dex/core"
	"github.com/you/swap-estimator/internal/types"
)

// Gas tiers for a mint that still needs approval; the real mint can't be simulated yet.
type Params struct {
	ChainID     int64
	BaseGas     uint64
	RebaseGas   uint64
	AllocateGas uint64
}

func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		ChainID:     cfg.Chain.ChainID,
		BaseGas:     cfg.Estimator.VaultBaseGas,
		RebaseGas:   cfg.Estimator.VaultRebaseGas,
		AllocateGas: cfg.Estimator.VaultAllocateGas,
	}
}

type Estimator struct {
	r   chain.Reader
	p   Params
	log *zap.Logger
}

func New(r chain.Reader, p Params, log *zap.Logger) *Estimator {
	return &Estimator{r: r, p: p, log: log}
}

// oracle methods, in lookup order
var priceMethods = []string{"priceUnitMint", "priceUSDMint"}

func (e *Estimator) fail(v core.Venue, req types.SwapRequest, op string, err error) core.Estimate {
	kind := core.Classify(err)
	e.log.Debug("vault estimate failed",
		zap.String("op", op),
		zap.String("mode", string(req.Mode)),
		zap.String("kind", string(kind)),
		zap.Error(err))
	return core.Failure(v.ID, v.Contract, req, kind)
}
