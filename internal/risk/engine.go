// Package risk holds the post-ranking guards applied before an estimate is offered.
package risk

import (
	"github.com/you/swap-estimator/internal/aggregator"
	"github.com/you/swap-estimator/internal/config"
	"github.com/you/swap-estimator/internal/types"
)

type Engine struct {
	maxGasUSD         float64
	maxEffectivePrice float64
}

func NewEngine(cfg *config.Config) *Engine {
	return &Engine{maxGasUSD: cfg.Risk.MaxGasUSD, maxEffectivePrice: cfg.Risk.MaxEffectivePrice}
}

// Allow rejects executable estimates whose gas or all-in price is beyond the configured limits.
// Anything that is not a successful quote passes through untouched.
func (e *Engine) Allow(r aggregator.Ranked) (types.ErrorKind, bool) {
	if e == nil || !r.Estimate.OK() {
		return "", true
	}
	if e.maxGasUSD > 0 && r.GasCostUSD > e.maxGasUSD {
		return types.ErrPriceTooHigh, false
	}
	if e.maxEffectivePrice > 0 && r.EffectivePrice > e.maxEffectivePrice {
		return types.ErrPriceTooHigh, false
	}
	return "", true
}
