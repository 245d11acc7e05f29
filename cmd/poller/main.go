package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lotus-reconciler/internal/core/config"
	"lotus-reconciler/internal/core/logger"
	orderadapter "lotus-reconciler/internal/features/orders/adapters"
	orderservice "lotus-reconciler/internal/features/orders/service"
	provideradapter "lotus-reconciler/internal/features/provider/adapters"

	"go.uber.org/zap"
)

// Runs a single reconciliation cycle and exits. Meant for cron-style
// deployments where the API process does not poll in the background.
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()

	lotusClient, err := provideradapter.NewLotusClient(cfg.Provider)
	if err != nil {
		l.Fatal("Provider client misconfigured", zap.Error(err))
	}

	store, err := orderadapter.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		l.Fatal("Failed to open order store", zap.Error(err))
	}
	defer store.Close()

	svc := orderservice.NewReconciliationService(lotusClient, store, cfg.Poll.BatchSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := svc.PollPending(ctx, func(localOrderID int64, content string) {
		l.Info("Order delivered",
			zap.Int64("local_order_id", localOrderID),
			zap.Int("content_length", len(content)),
		)
	})
	if err != nil {
		l.Fatal("Poll cycle failed", zap.Error(err))
	}

	l.Info("Poll cycle done",
		zap.Int("polled", stats.Polled),
		zap.Int("completed", stats.Completed),
		zap.Int("failed", stats.Failed),
	)
}
