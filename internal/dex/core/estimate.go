package core

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/you/swap-estimator/internal/chain"
	"github.com/you/swap-estimator/internal/types"
)

// PrepareParams is everything a submitter needs to send the call without re-deriving anything.
type PrepareParams struct {
	Address      common.Address `json:"address"`
	ABI          abi.ABI        `json:"-"`
	FunctionName string         `json:"functionName"`
	Args         []interface{}  `json:"args"`
	ChainID      int64          `json:"chainId,omitempty"`
	Value        *big.Int       `json:"value,omitempty"`
}

// Split - одна позиция корзины при redeem в MIX.
type Split struct {
	Asset    common.Address `json:"asset"`
	Symbol   string         `json:"symbol"`
	Amount   *big.Int       `json:"amount"`
	Decimals uint8          `json:"decimals"`
}

type Quote struct {
	ReceiveAmount        *big.Int       `json:"receiveAmount"`
	ReceiveDecimals      uint8          `json:"receiveDecimals"`
	MinimumAmount        *big.Int       `json:"minimumAmount,omitempty"`
	GasLimit             uint64         `json:"gasLimit"`
	FeeData              chain.FeeData  `json:"feeData"`
	HasProvidedAllowance bool           `json:"hasProvidedAllowance"`
	Prepare              *PrepareParams `json:"prepareParams,omitempty"`
	Approval             *PrepareParams `json:"approval,omitempty"`
	Breakdown            []Split        `json:"breakdown,omitempty"`
	RedeemFeeBps         *big.Int       `json:"redeemFeeBps,omitempty"`
}

// Estimate is exactly one of a Quote or an ErrorKind, plus the venue identity and the request.
type Estimate struct {
	Venue    VenueID
	Contract *Contract
	Request  types.SwapRequest

	quote *Quote
	err   types.ErrorKind
}

func Success(id VenueID, c *Contract, req types.SwapRequest, q Quote) Estimate {
	return Estimate{Venue: id, Contract: c, Request: req, quote: &q}
}

func Failure(id VenueID, c *Contract, req types.SwapRequest, kind types.ErrorKind) Estimate {
	if kind == "" {
		kind = types.ErrUnknown
	}
	return Estimate{Venue: id, Contract: c, Request: req, err: kind}
}

func (e Estimate) Quote() (Quote, bool) {
	if e.quote == nil {
		return Quote{}, false
	}
	return *e.quote, true
}

func (e Estimate) Err() (types.ErrorKind, bool) {
	if e.quote != nil {
		return "", false
	}
	if e.err == "" {
		return types.ErrUnknown, true
	}
	return e.err, true
}

func (e Estimate) OK() bool { return e.quote != nil }

func (e Estimate) MarshalJSON() ([]byte, error) {
	type view struct {
		Venue    VenueID         `json:"venue"`
		Contract *Contract       `json:"contract,omitempty"`
		Mode     types.Mode      `json:"mode"`
		From     string          `json:"fromToken"`
		To       string          `json:"toToken"`
		Amount   string          `json:"amount"`
		Error    types.ErrorKind `json:"error,omitempty"`
		Quote    *Quote          `json:"quote,omitempty"`
	}
	v := view{
		Venue:    e.Venue,
		Contract: e.Contract,
		Mode:     e.Request.Mode,
		From:     e.Request.From.Symbol,
		To:       e.Request.To.Symbol,
		Amount:   e.Request.Amount.String(),
		Quote:    e.quote,
	}
	if kind, failed := e.Err(); failed {
		v.Error = kind
	}
	return json.Marshal(v)
}

// ApproveCall builds the ERC20 approve(spender, amount) call a submitter sends first.
func ApproveCall(token, spender common.Address, amount *big.Int, chainID int64) *PrepareParams {
	return &PrepareParams{
		Address:      token,
		ABI:          chain.ERC20ABI,
		FunctionName: "approve",
		Args:         []interface{}{spender, new(big.Int).Set(amount)},
		ChainID:      chainID,
	}
}
