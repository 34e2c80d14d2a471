// Package stub covers venues that take part in every round but cannot quote yet
// (flipper, Uniswap v2/v3, SushiSwap).
package stub

import (
	"context"

	"github.com/you/swap-estimator/internal/dex/core"
	"github.com/you/swap-estimator/internal/types"
)

// Estimate applies the usual gates, then reports UNIMPLEMENTED. No chain I/O.
func Estimate(_ context.Context, v core.Venue, req types.SwapRequest) core.Estimate {
	if est, ok := core.Gate(v, req); !ok {
		return est
	}
	return core.Failure(v.ID, v.Contract, req, types.ErrUnimplemented)
}
