// quote prints one ranked estimation round, and optionally the unsigned transaction for the winner.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/aggregator"
	"github.com/you/swap-estimator/internal/api"
	"github.com/you/swap-estimator/internal/app"
	"github.com/you/swap-estimator/internal/chain"
	"github.com/you/swap-estimator/internal/config"
	"github.com/you/swap-estimator/internal/execution"
	"github.com/you/swap-estimator/internal/orchestrator"
	"github.com/you/swap-estimator/internal/selector"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config")
	var req api.EstimateRequest
	flag.StringVar(&req.Mode, "mode", "mint", "mint | redeem | wrap | unwrap")
	flag.StringVar(&req.FromToken, "from", "", "token symbol to give")
	flag.StringVar(&req.ToToken, "to", "", "token symbol to receive")
	flag.StringVar(&req.Amount, "amount", "", "human amount")
	flag.StringVar(&req.Address, "address", common.Address{}.Hex(), "holder address")
	flag.StringVar(&req.Tolerance, "tolerance", "", "slippage fraction, e.g. 0.01")
	flag.StringVar(&req.Gwei, "gwei", "", "gas price override")
	buildTx := flag.Bool("tx", false, "print the unsigned transaction for the best venue")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fail("config", err)
	}
	log, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		fail("logger", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := chain.Dial(ctx, cfg, log.Named("chain"))
	if err != nil {
		fail("rpc", err)
	}
	a, err := app.New(cfg, client, log)
	if err != nil {
		fail("assemble", err)
	}

	if err := req.Validate(); err != nil {
		fail("request", err)
	}
	in, err := req.Input(a.Product, a.DefaultTolerance())
	if err != nil {
		fail("request", err)
	}
	amount, ok := orchestrator.ParseAmount(in.Amount)
	if !ok {
		fmt.Println("nothing to estimate: amount must be positive")
		return
	}
	prices, err := a.Feed.Prices(ctx)
	if err != nil {
		fail("price", err)
	}

	res := a.Aggregator.Estimate(ctx, in.Request(amount), prices)
	printTable(os.Stdout, res, prices)

	choice := selector.Pick(res, a.Risk)
	if !choice.OK() {
		fmt.Printf("\nno executable route: %s\n", choice.Error)
		return
	}
	fmt.Printf("\nbest: %s @ %.6f\n", choice.Best.Estimate.Venue, choice.Best.EffectivePrice)

	if !*buildTx {
		return
	}
	b := execution.NewBuilder(client, client, cfg.Estimator.GasBufferBps, log.Named("tx"))
	plan, err := b.Build(ctx, in.Address, choice.Best.Estimate)
	if err != nil {
		fail("build tx", err)
	}
	tx := plan.Call
	if plan.Approval != nil {
		fmt.Println("approval required first:")
		tx = plan.Approval
	}
	out, _ := json.MarshalIndent(tx, "", "  ")
	fmt.Println(string(out))
	log.Debug("tx built", zap.String("venue", string(choice.Best.Estimate.Venue)))
}

func printTable(w io.Writer, res aggregator.Result, p aggregator.Prices) {
	fmt.Fprintf(w, "USD price: %.4f  native: %.4f\n\n", p.USD, p.NativeUSD)
	fmt.Fprintf(w, "%-10s %-14s %-12s %-10s %s\n", "venue", "receive", "gas usd", "price", "note")
	for _, r := range res.Ranked {
		if kind, failed := r.Estimate.Err(); failed {
			fmt.Fprintf(w, "%-10s %-14s %-12s %-10s %s\n", r.Estimate.Venue, "-", "-", "-", kind)
			continue
		}
		q, _ := r.Estimate.Quote()
		price := "n/a"
		if r.EffectivePrice != math.MaxFloat64 {
			price = fmt.Sprintf("%.6f", r.EffectivePrice)
		}
		note := ""
		if !q.HasProvidedAllowance {
			note = "needs approval"
		}
		fmt.Fprintf(w, "%-10s %-14s %-12.4f %-10s %s\n",
			r.Estimate.Venue, chain.FromWei(q.ReceiveAmount, q.ReceiveDecimals).StringFixed(6), r.GasCostUSD, price, note)
	}
	for _, f := range res.Failures {
		fmt.Fprintf(w, "%-10s %-14s %-12s %-10s %s\n", f.Venue, "-", "-", "-", f.Error)
	}
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
