// Package selector picks what to show the user out of a ranked round.
package selector

import (
	"github.com/you/swap-estimator/internal/aggregator"
	"github.com/you/swap-estimator/internal/types"
)

// Guard vetoes an otherwise executable estimate; *risk.Engine implements it.
type Guard interface {
	Allow(r aggregator.Ranked) (types.ErrorKind, bool)
}

type Choice struct {
	Best  *aggregator.Ranked `json:"best,omitempty"`
	Error types.ErrorKind    `json:"error,omitempty"`
}

func (c Choice) OK() bool { return c.Best != nil }

// Pick returns the cheapest executable estimate the guard accepts. When there is none it
// reports the most actionable error among the failures, vetoes and unsupported venues.
func Pick(res aggregator.Result, g Guard) Choice {
	var worst types.ErrorKind
	consider := func(k types.ErrorKind) {
		if worst == "" || k.Severity() < worst.Severity() {
			worst = k
		}
	}

	for i := range res.Ranked {
		r := res.Ranked[i]
		if kind, failed := r.Estimate.Err(); failed {
			consider(kind)
			continue
		}
		if !r.Executable() {
			consider(types.ErrNotEnoughLiquidity)
			continue
		}
		if g != nil {
			if kind, ok := g.Allow(r); !ok {
				consider(kind)
				continue
			}
		}
		return Choice{Best: &r}
	}
	for _, f := range res.Failures {
		consider(f.Error)
	}
	if worst == "" {
		worst = types.ErrUnknown
	}
	return Choice{Error: worst}
}
