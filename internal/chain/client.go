package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/config"
	"github.com/you/swap-estimator/internal/multicall"
	"github.com/you/swap-estimator/internal/rate"
)

// Backend - методы ethclient, которыми пользуется Client. Позволяет подменять ноду в тестах.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Client is the production Reader: rate-limited, retried, multicall-batched.
type Client struct {
	b          Backend
	log        *zap.Logger
	limiter    *rate.Limiter
	mc         multicall.IClient
	maxTries   uint
	maxElapsed time.Duration
	tip        *big.Int
}

func Dial(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Client, error) {
	if cfg.Chain.RPCHTTP == "" {
		return nil, errors.New("chain.rpc_http is empty")
	}
	ec, err := ethclient.DialContext(ctx, cfg.Chain.RPCHTTP)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return NewClient(ec, cfg, log)
}

func NewClient(b Backend, cfg *config.Config, log *zap.Logger) (*Client, error) {
	c := &Client{
		b:   b,
		log: log,
		limiter: rate.New(rate.Config{
			RequestsPerSecond: cfg.Chain.RequestsPerSecond,
			Burst:             cfg.Chain.Burst,
		}),
		maxTries:   cfg.Chain.MaxRetries,
		maxElapsed: cfg.RetryMaxElapsed(),
		tip:        GweiToWeiFloat(cfg.Chain.FallbackTipGwei),
	}
	if cfg.Chain.Multicall != "" {
		mc, err := multicall.New(c, common.HexToAddress(cfg.Chain.Multicall))
		if err != nil {
			return nil, fmt.Errorf("new multicall client: %w", err)
		}
		c.mc = mc
	}
	return c, nil
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return retry(ctx, c, "eth_call", func() ([]byte, error) {
		return c.b.CallContract(ctx, msg, nil)
	})
}

func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return retry(ctx, c, "eth_estimateGas", func() (uint64, error) {
		return c.b.EstimateGas(ctx, msg)
	})
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return retry(ctx, c, "eth_getBalance", func() (*big.Int, error) {
		return c.b.BalanceAt(ctx, account, nil)
	})
}

func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return retry(ctx, c, "eth_getTransactionCount", func() (uint64, error) {
		return c.b.PendingNonceAt(ctx, account)
	})
}

// FeeData: gasPrice из ноды, maxFee = 2*baseFee + tip (как у кошельков).
// Если baseFee нет (не-1559 сеть) - только gasPrice.
func (c *Client) FeeData(ctx context.Context) (FeeData, error) {
	gp, err := retry(ctx, c, "eth_gasPrice", func() (*big.Int, error) {
		return c.b.SuggestGasPrice(ctx)
	})
	if err != nil {
		return FeeData{}, fmt.Errorf("suggest gas price: %w", err)
	}
	fd := FeeData{GasPrice: gp}

	h, err := retry(ctx, c, "eth_getBlockByNumber", func() (*gethtypes.Header, error) {
		return c.b.HeaderByNumber(ctx, nil)
	})
	if err != nil || h == nil || h.BaseFee == nil {
		return fd, nil
	}
	tip, err := c.b.SuggestGasTipCap(ctx)
	if err != nil || tip == nil {
		tip = new(big.Int).Set(c.tip)
	}
	fd.MaxPriorityFeePerGas = tip
	fd.MaxFeePerGas = new(big.Int).Add(new(big.Int).Mul(h.BaseFee, big.NewInt(2)), tip)
	return fd, nil
}

// Batch folds calls into one Multicall2 tryAggregate.
func (c *Client) Batch(ctx context.Context, calls []multicall.Call) ([]multicall.Result, error) {
	if c.mc == nil {
		out := make([]multicall.Result, len(calls))
		for i, call := range calls {
			to := call.Target
			raw, err := c.CallContract(ctx, ethereum.CallMsg{To: &to, Data: call.CallData})
			out[i] = multicall.Result{Success: err == nil, Data: raw}
		}
		return out, nil
	}
	return c.mc.Aggregate(ctx, calls)
}

func retry[T any](ctx context.Context, c *Client, op string, fn func() (T, error)) (T, error) {
	attempt := func() (T, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return *new(T), backoff.Permanent(err)
		}
		v, err := fn()
		if err != nil && IsPermanent(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithNotify(func(err error, d time.Duration) {
			c.log.Debug("rpc retry", zap.String("op", op), zap.Duration("in", d), zap.Error(err))
		}),
	}
	if c.maxTries > 0 {
		opts = append(opts, backoff.WithMaxTries(c.maxTries))
	}
	if c.maxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(c.maxElapsed))
	}
	return backoff.Retry(ctx, attempt, opts...)
}

// IsPermanent reports errors that retrying cannot fix: reverts and caller mistakes.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var de rpc.DataError
	if errors.As(err, &de) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"revert", "insufficient funds", "gas required exceeds", "invalid opcode", "out of gas"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// GweiToWeiFloat - для конфигов, где gwei задан float-ом.
func GweiToWeiFloat(gwei float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(gwei), big.NewFloat(1e9)).Int(nil)
	return wei
}
