package main

import (
	"context"
	"log"

	"lotus-reconciler/internal/core/cache"
	"lotus-reconciler/internal/core/config"
	"lotus-reconciler/internal/core/logger"
	"lotus-reconciler/internal/core/scheduler"
	"lotus-reconciler/internal/core/server"
	orderadapter "lotus-reconciler/internal/features/orders/adapters"
	orderhandler "lotus-reconciler/internal/features/orders/handler"
	orderservice "lotus-reconciler/internal/features/orders/service"
	provideradapter "lotus-reconciler/internal/features/provider/adapters"
	providerhandler "lotus-reconciler/internal/features/provider/handler"
	providerservice "lotus-reconciler/internal/features/provider/service"

	"go.uber.org/zap"
)

// @title Lotus Reconciler API
// @version 1.0
// @description Places orders against the Lotus provider and reconciles their status.
// @contact.name API Support
// @license.name MIT
// @host localhost:8080
// @BasePath /
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
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
	)

	// Initialize the provider client and verify credentials up front.
	lotusClient, err := provideradapter.NewLotusClient(cfg.Provider)
	if err != nil {
		l.Fatal("Provider client misconfigured", zap.Error(err))
	}
	account, err := lotusClient.GetUser(context.Background())
	if err != nil {
		l.Fatal("Provider health check failed", zap.Error(err))
	}
	l.Info("Provider connection verified",
		zap.Float64("credit", account.Credit),
		zap.String("currency", account.Currency),
	)

	// Catalog cache is optional; without Redis every read hits the provider.
	var catalogCache cache.Cache
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisAdapter(cfg.Redis.URL)
		if err != nil {
			l.Fatal("Redis connection failed", zap.Error(err))
		}
		catalogCache = redisCache
		l.Info("Catalog cache enabled", zap.Duration("ttl", cfg.Redis.CatalogTTL()))
	}

	store, err := orderadapter.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		l.Fatal("Failed to open order store", zap.Error(err))
	}
	defer store.Close()

	providerSvc := providerservice.NewProviderService(lotusClient, catalogCache, cfg.Redis.CatalogTTL())
	providerHdl := providerhandler.NewProviderHandler(providerSvc)

	reconciliationSvc := orderservice.NewReconciliationService(lotusClient, store, cfg.Poll.BatchSize)
	onCompleted := func(localOrderID int64, content string) {
		l.Info("Order delivered",
			zap.Int64("local_order_id", localOrderID),
			zap.Int("content_length", len(content)),
		)
	}
	orderHdl := orderhandler.NewOrderHandler(reconciliationSvc, onCompleted)

	// Background reconciliation loop, stopped when the process exits.
	pollCtx, stopPolling := context.WithCancel(context.Background())
	defer stopPolling()

	poller := scheduler.New("reconcile-pending", cfg.Poll.Interval(), func(ctx context.Context) error {
		_, err := reconciliationSvc.PollPending(ctx, onCompleted)
		return err
	}, logger.Named("scheduler"))
	go func() {
		_ = poller.Run(pollCtx)
	}()

	srv := server.New(cfg)

	// Register Routes
	srv.App.Post("/orders", orderHdl.PlaceOrder)
	srv.App.Get("/orders/:id", orderHdl.GetOrder)
	srv.App.Post("/admin/poll", orderHdl.Poll)
	srv.App.Get("/provider/account", providerHdl.GetAccount)
	srv.App.Get("/provider/products", providerHdl.GetProducts)
	srv.App.Get("/provider/orders", providerHdl.ListOrders)

	if err := srv.Run(); err != nil {
		l.Fatal("Server failed to start", zap.Error(err))
	}
}
