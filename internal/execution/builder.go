// Package execution turns a prepared call from a quote into unsigned transactions.
// Signing and submission stay with the wallet.
package execution

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/chain"
	"github.com/you/swap-estimator/internal/dex/core"
)

var (
	ErrNotExecutable = errors.New("estimate has no quote")
	ErrNoCall        = errors.New("quote carries no prepared call")
)

type NonceReader interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

type Builder struct {
	r         chain.Reader
	nonces    NonceReader
	bufferBps uint64
	log       *zap.Logger
}

// NewBuilder: bufferBps - запас к газ-лимиту в б.п. (1000 = +10%).
func NewBuilder(r chain.Reader, nonces NonceReader, bufferBps uint64, log *zap.Logger) *Builder {
	return &Builder{r: r, nonces: nonces, bufferBps: bufferBps, log: log}
}

// Calldata packs the prepared call.
func Calldata(p *core.PrepareParams) ([]byte, error) {
	if p == nil {
		return nil, ErrNoCall
	}
	data, err := p.ABI.Pack(p.FunctionName, p.Args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", p.FunctionName, err)
	}
	return data, nil
}

// Plan - что подписать: approve (если allowance не хватает) или сам вызов.
// После approve котировку надо пересчитать, поэтому Call тогда пустой.
type Plan struct {
	Approval *gethtypes.Transaction
	Call     *gethtypes.Transaction
}

// Build prepares the next transaction for est on behalf of from.
func (b *Builder) Build(ctx context.Context, from common.Address, est core.Estimate) (Plan, error) {
	q, ok := est.Quote()
	if !ok {
		return Plan{}, ErrNotExecutable
	}
	nonce, err := b.nonces.PendingNonceAt(ctx, from)
	if err != nil {
		return Plan{}, fmt.Errorf("pending nonce: %w", err)
	}
	fee := q.FeeData
	if fee.GasPrice == nil && fee.MaxFeePerGas == nil {
		if fee, err = b.r.FeeData(ctx); err != nil {
			return Plan{}, fmt.Errorf("fee data: %w", err)
		}
	}

	if q.Approval != nil && !q.HasProvidedAllowance {
		data, err := Calldata(q.Approval)
		if err != nil {
			return Plan{}, err
		}
		to := q.Approval.Address
		gas, err := b.r.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
		if err != nil {
			return Plan{}, fmt.Errorf("estimate approve: %w", err)
		}
		tx := b.tx(q.Approval, data, nonce, gas, fee)
		b.log.Debug("approval prepared", zap.String("venue", string(est.Venue)), zap.Stringer("token", to), zap.Uint64("nonce", nonce))
		return Plan{Approval: tx}, nil
	}

	data, err := Calldata(q.Prepare)
	if err != nil {
		return Plan{}, err
	}
	tx := b.tx(q.Prepare, data, nonce, q.GasLimit, fee)
	b.log.Debug("call prepared",
		zap.String("venue", string(est.Venue)),
		zap.String("fn", q.Prepare.FunctionName),
		zap.Uint64("gas", tx.Gas()),
		zap.Uint64("nonce", nonce))
	return Plan{Call: tx}, nil
}

func (b *Builder) tx(p *core.PrepareParams, data []byte, nonce, gas uint64, fee chain.FeeData) *gethtypes.Transaction {
	gas = gas + gas*b.bufferBps/10_000
	to := p.Address
	value := new(big.Int)
	if p.Value != nil {
		value.Set(p.Value)
	}

	if fee.MaxFeePerGas == nil {
		gp := new(big.Int)
		if fee.GasPrice != nil {
			gp.Set(fee.GasPrice)
		}
		return gethtypes.NewTx(&gethtypes.LegacyTx{
			Nonce:    nonce,
			GasPrice: gp,
			Gas:      gas,
			To:       &to,
			Value:    value,
			Data:     data,
		})
	}
	tip := fee.MaxPriorityFeePerGas
	if tip == nil {
		tip = new(big.Int)
	}
	return gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   big.NewInt(p.ChainID),
		Nonce:     nonce,
		GasTipCap: new(big.Int).Set(tip),
		GasFeeCap: new(big.Int).Set(fee.MaxFeePerGas),
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})
}
