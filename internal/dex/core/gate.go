package core

import "github.com/you/swap-estimator/internal/types"

// Gate runs the two checks every estimator does before touching the chain.
// ok=false means the returned Estimate is final.
func Gate(v Venue, req types.SwapRequest) (Estimate, bool) {
	if v.Contract == nil {
		return Failure(v.ID, nil, req, types.ErrUnknown), false
	}
	if v.Eligible != nil && !v.Eligible(req.Mode, req.From, req.To) {
		return Failure(v.ID, v.Contract, req, types.ErrUnsupported), false
	}
	return Estimate{}, true
}
