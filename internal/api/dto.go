package api

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/you/swap-estimator/internal/orchestrator"
	"github.com/you/swap-estimator/internal/product"
	"github.com/you/swap-estimator/internal/selector"
	"github.com/you/swap-estimator/internal/types"
)

// EstimateRequest - тело POST /estimates и PUT /sessions/:id.
// Amount остаётся строкой: пустое или нулевое значение - валидный ввод, ответ без оценки.
type EstimateRequest struct {
	Mode        string `json:"mode"`
	FromToken   string `json:"fromToken"`
	ToToken     string `json:"toToken"`
	Amount      string `json:"amount"`
	Address     string `json:"address"`
	Tolerance   string `json:"tolerance,omitempty"`
	Gwei        string `json:"gwei,omitempty"`
	FromBalance string `json:"fromBalance,omitempty"` // wei
}

func (r EstimateRequest) Validate() error {
	if !types.ParseMode(r.Mode).Valid() {
		return fmt.Errorf("unsupported mode %q", r.Mode)
	}
	if r.FromToken == "" || r.ToToken == "" {
		return errors.New("fromToken and toToken are required")
	}
	if !common.IsHexAddress(r.Address) {
		return fmt.Errorf("invalid address %q", r.Address)
	}
	return nil
}

// Input resolves tokens against the product catalog and fills settings.
func (r EstimateRequest) Input(p product.Product, defaultTol decimal.Decimal) (orchestrator.Input, error) {
	from, err := p.Resolve(strings.TrimSpace(r.FromToken))
	if err != nil {
		return orchestrator.Input{}, err
	}
	to, err := p.Resolve(strings.TrimSpace(r.ToToken))
	if err != nil {
		return orchestrator.Input{}, err
	}

	tol := defaultTol
	if r.Tolerance != "" {
		if tol, err = decimal.NewFromString(r.Tolerance); err != nil || tol.IsNegative() || tol.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return orchestrator.Input{}, fmt.Errorf("tolerance must be a fraction in [0,1), got %q", r.Tolerance)
		}
	}
	gwei := decimal.Zero
	if r.Gwei != "" {
		if gwei, err = decimal.NewFromString(r.Gwei); err != nil || gwei.IsNegative() {
			return orchestrator.Input{}, fmt.Errorf("invalid gwei %q", r.Gwei)
		}
	}
	if r.FromBalance != "" {
		b, ok := new(big.Int).SetString(r.FromBalance, 10)
		if !ok || b.Sign() < 0 {
			return orchestrator.Input{}, fmt.Errorf("invalid fromBalance %q", r.FromBalance)
		}
		from = from.WithBalance(b)
	}

	return orchestrator.Input{
		Mode:     types.ParseMode(r.Mode),
		From:     from,
		To:       to,
		Amount:   r.Amount,
		Address:  common.HexToAddress(r.Address),
		Settings: types.Settings{Tolerance: tol, Gwei: gwei},
	}, nil
}

// RoundResponse wraps a delivered round with the pick to show.
type RoundResponse struct {
	orchestrator.Output
	Choice *selector.Choice `json:"choice,omitempty"`
}

type SessionResponse struct {
	SessionID string         `json:"sessionId"`
	Loading   bool           `json:"loading"`
	Round     uint64         `json:"round,omitempty"`
	Latest    *RoundResponse `json:"latest,omitempty"`
}
