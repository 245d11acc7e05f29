package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lotus-reconciler/internal/core/cache"
	"lotus-reconciler/internal/core/logger"
	"lotus-reconciler/internal/features/provider/domain"
	"lotus-reconciler/internal/features/provider/ports"

	"go.uber.org/zap"
)

const catalogCacheKey = "provider_catalog"

// ProviderService exposes read access to the upstream account, catalog and
// order list. The catalog is cached (cache-aside) because the panel reads it
// far more often than the provider changes it.
type ProviderService struct {
	client ports.Client
	// cache may be nil, in which case every read goes upstream.
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewProviderService creates a new ProviderService. Pass a nil cache to
// disable catalog caching.
func NewProviderService(client ports.Client, c cache.Cache, catalogTTL time.Duration) *ProviderService {
	return &ProviderService{
		client: client,
		cache:  c,
		ttl:    catalogTTL,
		logger: logger.Get(),
	}
}

// GetAccount retrieves the upstream account credit.
func (s *ProviderService) GetAccount(ctx context.Context) (*domain.Account, error) {
	account, err := s.client.GetUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get provider account: %w", err)
	}
	return account, nil
}

// GetProducts retrieves the product catalog, serving from cache when fresh.
// Cache failures degrade to an upstream read, never to a request failure.
func (s *ProviderService) GetProducts(ctx context.Context) ([]domain.Product, error) {
	if s.cache != nil {
		data, err := s.cache.Get(ctx, catalogCacheKey)
		if err == nil {
			var products []domain.Product
			if err := json.Unmarshal(data, &products); err == nil {
				return products, nil
			}
			s.logger.Warn("Discarding unreadable cached catalog", zap.Error(err))
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Catalog cache read failed", zap.Error(err))
		}
	}

	products, err := s.client.GetProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get provider catalog: %w", err)
	}

	if s.cache != nil {
		data, err := json.Marshal(products)
		if err == nil {
			if err := s.cache.Set(ctx, catalogCacheKey, data, s.ttl); err != nil {
				s.logger.Warn("Catalog cache write failed", zap.Error(err))
			}
		}
	}

	return products, nil
}

// ListOrders retrieves the upstream order list.
func (s *ProviderService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.client.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list provider orders: %w", err)
	}
	return orders, nil
}
