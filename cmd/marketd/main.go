package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"otcmarket/config"
	"otcmarket/ledger"
	"otcmarket/native/market"
	"otcmarket/native/pricing"
	"otcmarket/observability"
	"otcmarket/observability/logging"
	"otcmarket/storage"
)

func main() {
	configPath := flag.String("config", "marketd.toml", "path to the marketd configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.ServiceName, cfg.Environment)

	rules, err := config.LoadPaymentPolicy(cfg.PolicyFile)
	if err != nil {
		logger.Error("load payment policy", "err", err)
		os.Exit(1)
	}
	policy, err := cfg.MarketPolicy(rules)
	if err != nil {
		logger.Error("build policy", "err", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "market"))
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Dynamic price feeds and the production asset ledgers are wired by the
	// embedding deployment; the standalone daemon starts with an in-process
	// book and fixed-mode pricing only.
	resolver := pricing.NewResolver(nil)
	resolver.SetMaxSampleAge(cfg.MaxSampleAgeSecs)

	engine := market.NewEngine()
	engine.SetState(market.NewStore(db))
	engine.SetLedger(ledger.NewBook())
	engine.SetPricer(resolver)
	engine.SetPolicy(policy)
	engine.SetPauses(cfg.Pauses())
	engine.SetMetrics(observability.Market())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: cfg.MetricsAddress, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "err", err)
		}
	}()

	logger.Info("market engine ready",
		"dataDir", cfg.DataDir,
		"metrics", cfg.MetricsAddress,
		"paymentAssets", len(rules.PaymentAssets),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown", "err", err)
	}
	logger.Info("market engine stopped")
}
