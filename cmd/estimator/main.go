package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/you/swap-estimator/internal/app"
	"github.com/you/swap-estimator/internal/chain"
	"github.com/you/swap-estimator/internal/config"
)

type options struct {
	configPath string
	product    string
	logLevel   string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("estimator", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "./config.yaml", "путь к конфигу")
	fs.StringVar(&o.product, "product", "", "oeth | ousd, перекрывает конфиг")
	fs.StringVar(&o.logLevel, "log-level", "", "debug | info | warn | error")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if opts.product != "" {
		cfg.Product = opts.product
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.Dial(ctx, cfg, logger.Named("chain"))
	if err != nil {
		logger.Fatal("rpc dial failed", zap.Error(err))
	}

	a, err := app.New(cfg, client, logger)
	if err != nil {
		logger.Fatal("assemble failed", zap.Error(err))
	}

	logger.Info("estimator starting",
		zap.String("product", cfg.Product),
		zap.Int64("chain_id", cfg.Chain.ChainID),
		zap.String("api", cfg.API.ListenAddr))
	if err := a.Run(ctx); err != nil {
		logger.Fatal("estimator failed", zap.Error(err))
	}
}
