package aggregator

import (
	"encoding/json"
	"math"
	"math/big"
	"sort"

	"github.com/you/swap-estimator/internal/chain"
	"github.com/you/swap-estimator/internal/dex/core"
	"github.com/you/swap-estimator/internal/types"
)

// Prices: USD - цена единицы торгуемого актива, NativeUSD - цена нативной монеты для газа.
// NativeUSD == 0 means "same as USD".
type Prices struct {
	USD       float64 `json:"usd"`
	NativeUSD float64 `json:"nativeUsd"`
}

func (p Prices) native() float64 {
	if p.NativeUSD > 0 {
		return p.NativeUSD
	}
	return p.USD
}

// Sentinels keep non-prices out of the real ordering:
// zero-receive quotes sit after every real price, UNSUPPORTED after everything.
var (
	SentinelZeroReceive = math.MaxFloat64
	SentinelUnsupported = math.Inf(1)
)

type Ranked struct {
	Estimate         core.Estimate
	GasCostUSD       float64
	ValueInUSD       float64
	ReceiveAmountUSD float64
	EffectivePrice   float64
}

func (r Ranked) MarshalJSON() ([]byte, error) {
	type view struct {
		Estimate         core.Estimate `json:"estimate"`
		GasCostUSD       float64       `json:"gasCostUsd"`
		ValueInUSD       float64       `json:"valueInUsd"`
		ReceiveAmountUSD float64       `json:"receiveAmountUsd"`
		EffectivePrice   *float64      `json:"effectivePrice"`
		Sentinel         string        `json:"sentinel,omitempty"`
	}
	v := view{
		Estimate:         r.Estimate,
		GasCostUSD:       r.GasCostUSD,
		ValueInUSD:       r.ValueInUSD,
		ReceiveAmountUSD: r.ReceiveAmountUSD,
	}
	switch r.EffectivePrice {
	case SentinelUnsupported:
		v.Sentinel = "unsupported"
	case SentinelZeroReceive:
		v.Sentinel = "zero_receive"
	default:
		p := r.EffectivePrice
		v.EffectivePrice = &p
	}
	return json.Marshal(v)
}

// Failure is a hard venue error, kept out of the ranking.
type Failure struct {
	Venue    core.VenueID    `json:"venue"`
	Contract *core.Contract  `json:"contract,omitempty"`
	Error    types.ErrorKind `json:"error"`
}

type Result struct {
	Ranked   []Ranked  `json:"ranked"`
	Failures []Failure `json:"failures"`
}

// Executable reports whether r is a success with a real price; a zero-receive quote is not.
func (r Ranked) Executable() bool {
	return r.Estimate.OK() && r.EffectivePrice != SentinelZeroReceive
}

// Best returns the top executable estimate, if any venue produced one.
func (r Result) Best() (Ranked, bool) {
	if len(r.Ranked) == 0 || !r.Ranked[0].Executable() {
		return Ranked{}, false
	}
	return r.Ranked[0], true
}

// Rank prices every successful estimate in USD and sorts ascending by effective price.
// UNSUPPORTED stays at the bottom with +Inf; every other error is dropped into Failures.
// Ties keep input order.
func Rank(estimates []core.Estimate, p Prices) Result {
	res := Result{Ranked: make([]Ranked, 0, len(estimates)), Failures: []Failure{}}
	for _, e := range estimates {
		if kind, failed := e.Err(); failed {
			if kind == types.ErrUnsupported {
				res.Ranked = append(res.Ranked, Ranked{Estimate: e, EffectivePrice: SentinelUnsupported})
				continue
			}
			res.Failures = append(res.Failures, Failure{Venue: e.Venue, Contract: e.Contract, Error: kind})
			continue
		}
		res.Ranked = append(res.Ranked, price(e, p))
	}
	sort.SliceStable(res.Ranked, func(i, j int) bool {
		return res.Ranked[i].EffectivePrice < res.Ranked[j].EffectivePrice
	})
	return res
}

func price(e core.Estimate, p Prices) Ranked {
	q, _ := e.Quote()

	gasPrice := q.FeeData.GasPrice
	if g := e.Request.Settings.Gwei; g.IsPositive() {
		gasPrice = chain.GweiToWei(g)
	}
	gasWei := new(big.Int)
	if gasPrice != nil {
		gasWei.Mul(gasPrice, new(big.Int).SetUint64(q.GasLimit))
	}

	amount, _ := e.Request.Amount.Float64()
	r := Ranked{
		Estimate:         e,
		GasCostUSD:       chain.ToFloat(gasWei, 18) * p.native(),
		ValueInUSD:       amount * p.USD,
		ReceiveAmountUSD: chain.ToFloat(q.ReceiveAmount, q.ReceiveDecimals) * p.USD,
	}
	if r.ReceiveAmountUSD <= 0 {
		r.EffectivePrice = SentinelZeroReceive
		return r
	}
	r.EffectivePrice = (r.ValueInUSD + r.GasCostUSD) / r.ReceiveAmountUSD
	if !chain.IsFinite(r.EffectivePrice) {
		r.EffectivePrice = SentinelZeroReceive
	}
	return r
}
