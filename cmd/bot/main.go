// Command bot runs the automated forex trading controller.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dommurphy155/Very-last-try/internal/alerting"
	"github.com/dommurphy155/Very-last-try/internal/config"
	"github.com/dommurphy155/Very-last-try/internal/engine"
	"github.com/dommurphy155/Very-last-try/internal/executor"
	"github.com/dommurphy155/Very-last-try/internal/gateway"
	"github.com/dommurphy155/Very-last-try/internal/journal"
	"github.com/dommurphy155/Very-last-try/internal/lifecycle"
	"github.com/dommurphy155/Very-last-try/internal/metrics"
	"github.com/dommurphy155/Very-last-try/internal/risk"
	"github.com/dommurphy155/Very-last-try/internal/scorer"
	"github.com/dommurphy155/Very-last-try/internal/sizer"
	"github.com/dommurphy155/Very-last-try/internal/statestore"
	"github.com/dommurphy155/Very-last-try/internal/telegram"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := "run"
	if len(args) > 0 && args[0][0] != '-' {
		cmd = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("bot", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to configuration file")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch cmd {
	case "version":
		fmt.Println(version)
		return nil
	case "validate":
		if _, err := config.Load(*configPath); err != nil {
			return err
		}
		fmt.Println("configuration is valid")
		return nil
	case "run":
		return runBot(*configPath, *logLevel)
	default:
		return fmt.Errorf("unknown command %q (expected run, validate or version)", cmd)
	}
}

func runBot(configPath, logLevel string) error {
	logger := newLogger(logLevel)
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	secrets, err := config.LoadSecrets()
	if err != nil {
		return err
	}

	logger.Info("starting trading bot",
		"version", version,
		"instruments", cfg.Market.Instruments,
		"granularity", cfg.Market.Granularity,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gw := gateway.NewOandaClient(gateway.OandaConfig{
		BaseURL:            cfg.Gateway.BaseURL,
		APIKey:             secrets.OandaAPIKey,
		AccountID:          secrets.OandaAccountID,
		Granularity:        cfg.Market.Granularity,
		Timeout:            cfg.GatewayTimeout(),
		RateLimitPerSecond: cfg.Gateway.RateLimitPerSecond,
	}, logger)

	store := statestore.NewStore(cfg.State.Path, logger)

	var jnl journal.Journal
	if cfg.Journal.Enabled {
		sq, err := journal.NewSQLiteJournal(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer sq.Close()
		jnl = sq
	}

	alerter := buildAlerter(cfg, secrets, logger)

	registry := prometheus.NewRegistry()
	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewRecorder(registry)
	}

	eng := engine.New(engine.Deps{
		Config:  cfg,
		Gateway: gw,
		Store:   store,
		Journal: jnl,
		Risk: risk.NewManager(risk.Config{
			MaxDrawdownPct:       decimal.NewFromFloat(cfg.Risk.MaxDrawdownPct),
			MaxDailyLossPct:      decimal.NewFromFloat(cfg.Risk.MaxDailyLossPct),
			MaxConsecutiveLosses: cfg.Risk.MaxConsecutiveLosses,
			MinRiskFraction:      decimal.NewFromFloat(cfg.Risk.MinRiskFraction),
			MaxRiskFraction:      decimal.NewFromFloat(cfg.Risk.MaxRiskFraction),
		}),
		Scorer: scorer.NewScorer(scorer.Config{
			MinHistory:      cfg.Scoring.MinHistory,
			RSIPeriod:       cfg.Scoring.RSIPeriod,
			RSIOversold:     cfg.Scoring.RSIOversold,
			RSIOverbought:   cfg.Scoring.RSIOverbought,
			MACDFast:        cfg.Scoring.MACDFast,
			MACDSlow:        cfg.Scoring.MACDSlow,
			MACDSignal:      cfg.Scoring.MACDSignal,
			BandPeriod:      cfg.Scoring.BandPeriod,
			ATRPeriod:       cfg.Scoring.ATRPeriod,
			PerformanceBias: cfg.Scoring.PerformanceBias,
		}, logger),
		Sizer: sizer.NewPositionSizer(sizer.Config{
			ATRStopMultiple: decimal.NewFromFloat(cfg.Sizing.ATRStopMultiple),
			MinStopPips:     decimal.NewFromFloat(cfg.Sizing.MinStopPips),
			MaxStopPips:     decimal.NewFromFloat(cfg.Sizing.MaxStopPips),
			MinRewardRisk:   decimal.NewFromFloat(cfg.Sizing.MinRewardRisk),
		}),
		Executor: executor.NewExecutor(executor.Config{
			Cooldown:           cfg.ExecutionCooldown(),
			InstrumentCooldown: cfg.InstrumentCooldown(),
			MarginRate:         executor.DefaultConfig().MarginRate,
		}, gw, logger),
		Lifecycle: lifecycle.NewManager(lifecycle.Config{
			TrailingStopPips:   decimal.NewFromFloat(cfg.Lifecycle.TrailingStopPips),
			TrailingArmPips:    decimal.NewFromFloat(cfg.Lifecycle.TrailingArmPips),
			MaxLossPips:        decimal.NewFromFloat(cfg.Lifecycle.MaxLossPips),
			MaxTradeDuration:   cfg.MaxTradeDuration(),
			CloseRetryEscalate: cfg.Lifecycle.CloseRetryEscalate,
		}, gw, logger),
		Alerter:  alerter,
		Recorder: recorder,
		Logger:   logger,
		Stop:     cancel,
	})

	bootCtx, bootCancel := context.WithTimeout(ctx, 30*time.Second)
	defer bootCancel()
	if err := eng.Bootstrap(bootCtx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.Run(gctx)
	})

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(fmt.Sprintf(":%d", cfg.Metrics.Port), registry, logger)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	if secrets.HasTelegram() {
		poller, err := telegram.NewPoller(secrets.TelegramBotToken, secrets.TelegramChatID, eng.Commands(), logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return poller.Run(gctx)
		})
	} else {
		logger.Info("telegram credentials not set, operator commands disabled")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildAlerter(cfg *config.Config, secrets *config.Secrets, logger *slog.Logger) alerting.Alerter {
	if !cfg.Alerting.Enabled {
		return nil
	}
	console := alerting.NewConsoleAlerter(logger)
	if secrets.HasTelegram() {
		return alerting.NewMultiAlerter(
			console,
			alerting.NewTelegramAlerter(secrets.TelegramBotToken, secrets.TelegramChatID),
		)
	}
	return console
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
